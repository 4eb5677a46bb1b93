package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aluiziolira/go-harvest/models"
)

// FinalURLHeader is set by the fetch proxy to the URL it finally landed on.
const FinalURLHeader = "sa-final-url"

type artistPayload struct {
	Results []artistResult `json:"results"`
}

type artistResult struct {
	ID          json.RawMessage `json:"id"`
	Name        string          `json:"name"`
	HomepageURL string          `json:"homepage_url"`
	Location    struct {
		City    string `json:"city"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"location"`
	Image        string   `json:"image"`
	Bio          string   `json:"bio"`
	Genres       []string `json:"genres"`
	FBShareURL   string   `json:"fb_share_url"`
	PublicEmail  string   `json:"public_email"`
	BookingEmail string   `json:"booking_email"`
	MngtEmail    string   `json:"mngt_email"`
}

// ArtistExtractor decodes an artist search payload of the form
// {"results":[...]} into one record per result.
type ArtistExtractor struct {
	// Now stamps the datetime field. Defaults to time.Now.
	Now func() time.Time
}

// NewArtistExtractor returns an extractor using the wall clock.
func NewArtistExtractor() *ArtistExtractor {
	return &ArtistExtractor{Now: time.Now}
}

// Extract implements Extractor.
func (e *ArtistExtractor) Extract(resp *models.Response) ([]models.Record, error) {
	if resp == nil {
		return nil, ErrNilResponse
	}
	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		return nil, nil
	}

	var payload artistPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("decode artist payload for %s: %w", resp.Target, err)
	}
	if len(payload.Results) == 0 {
		return nil, nil
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	stamp := now().UTC().Format(time.RFC3339)
	finalURL := ""
	if resp.Headers != nil {
		finalURL = resp.Headers.Get(FinalURLHeader)
	}

	records := make([]models.Record, 0, len(payload.Results))
	for _, r := range payload.Results {
		websites, emails := SplitContacts(r.Bio)
		records = append(records, models.Record{
			"id":             decodeID(r.ID),
			"name":           Nullable(r.Name),
			"homepage_url":   Nullable(StripSchemeSlashes(r.HomepageURL)),
			"city":           Nullable(r.Location.City),
			"state":          Nullable(r.Location.State),
			"country":        Nullable(r.Location.Country),
			"image":          Nullable(StripSchemeSlashes(r.Image)),
			"bio":            Nullable(r.Bio),
			"genres":         Nullable(strings.Join(r.Genres, "\n")),
			"public_fb":      Nullable(r.FBShareURL),
			"public_email":   Nullable(JoinLines(r.PublicEmail, r.BookingEmail, r.MngtEmail)),
			"other_websites": Nullable(strings.Join(websites, "\n")),
			"other_emails":   Nullable(strings.Join(emails, "\n")),
			"url":            resp.Target,
			"final_url":      Nullable(finalURL),
			"datetime":       stamp,
		})
	}
	return records, nil
}

// decodeID keeps numeric ids numeric and string ids as strings.
func decodeID(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return v
}
