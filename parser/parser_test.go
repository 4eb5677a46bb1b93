package parser

import (
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/aluiziolira/go-harvest/models"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestStripSchemeSlashes(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"//img.example.com/a.png", "img.example.com/a.png"},
		{"https://example.com", "https:example.com"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripSchemeSlashes(tt.in); got != tt.want {
			t.Fatalf("StripSchemeSlashes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNullable(t *testing.T) {
	if got := Nullable("  "); got != nil {
		t.Fatalf("Nullable(blank) = %v, want nil", got)
	}
	if got := Nullable("x"); got != "x" {
		t.Fatalf("Nullable(x) = %v, want x", got)
	}
}

func TestSplitContacts(t *testing.T) {
	websites, emails := SplitContacts("Book me at band@mail.com or visit band.com/tour and www.other.com. Thanks")
	if want := []string{"band.com/tour", "www.other.com."}; !reflect.DeepEqual(websites, want) {
		t.Fatalf("websites = %v, want %v", websites, want)
	}
	if want := []string{"band@mail.com"}; !reflect.DeepEqual(emails, want) {
		t.Fatalf("emails = %v, want %v", emails, want)
	}

	websites, emails = SplitContacts("no links here")
	if websites != nil || emails != nil {
		t.Fatalf("expected no contacts, got %v %v", websites, emails)
	}
}

func TestArtistExtractor(t *testing.T) {
	body := `{"results":[{
		"id": 42,
		"name": "The Band",
		"homepage_url": "//theband.com",
		"location": {"city": "Austin", "state": "TX", "country": ""},
		"image": "//img.theband.com/x.jpg",
		"bio": "Contact booking@theband.com or see theband.com/shows",
		"genres": ["rock", "indie"],
		"fb_share_url": "",
		"public_email": "hello@theband.com",
		"booking_email": "",
		"mngt_email": "mgmt@theband.com"
	}]}`
	resp := &models.Response{
		Target:     "https://catalog.example.com/search?id=42",
		StatusCode: 200,
		Headers:    http.Header{"Sa-Final-Url": []string{"https://catalog.example.com/final/42"}},
		Body:       []byte(body),
	}

	ex := &ArtistExtractor{Now: fixedNow}
	records, err := ex.Extract(resp)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}

	want := models.Record{
		"id":             int64(42),
		"name":           "The Band",
		"homepage_url":   "theband.com",
		"city":           "Austin",
		"state":          "TX",
		"country":        nil,
		"image":          "img.theband.com/x.jpg",
		"bio":            "Contact booking@theband.com or see theband.com/shows",
		"genres":         "rock\nindie",
		"public_fb":      nil,
		"public_email":   "hello@theband.com\n\nmgmt@theband.com",
		"other_websites": "theband.com/shows",
		"other_emails":   "booking@theband.com",
		"url":            "https://catalog.example.com/search?id=42",
		"final_url":      "https://catalog.example.com/final/42",
		"datetime":       "2024-03-01T12:00:00Z",
	}
	if !reflect.DeepEqual(records[0], want) {
		t.Fatalf("record mismatch\n got: %#v\nwant: %#v", records[0], want)
	}
	if id := records[0].Identifier("url"); id != resp.Target {
		t.Fatalf("identifier = %q, want target", id)
	}
}

func TestArtistExtractorEmptyResults(t *testing.T) {
	ex := &ArtistExtractor{Now: fixedNow}
	for _, body := range []string{`{"results":[]}`, `{}`, ``} {
		records, err := ex.Extract(&models.Response{Target: "t", Body: []byte(body)})
		if err != nil {
			t.Fatalf("Extract(%q): %v", body, err)
		}
		if len(records) != 0 {
			t.Fatalf("Extract(%q) = %d records, want 0", body, len(records))
		}
	}
}

func TestArtistExtractorErrors(t *testing.T) {
	ex := NewArtistExtractor()
	if _, err := ex.Extract(nil); err != ErrNilResponse {
		t.Fatalf("nil response: got %v", err)
	}
	if _, err := ex.Extract(&models.Response{Target: "t", Body: []byte("<html>")}); err == nil {
		t.Fatal("expected error on non-JSON body")
	}
}

func TestSelectorExtractor(t *testing.T) {
	html := `<html><body>
		<div class="artist"><a class="name" href="/a/1">First</a><span class="city">Oslo</span></div>
		<div class="artist"><a class="name" href="/a/2">Second</a><span class="city"></span></div>
	</body></html>`
	ex := &SelectorExtractor{
		Item: "div.artist",
		Fields: []Field{
			{Name: "name", Selector: "a.name"},
			{Name: "link", Selector: "a.name", Attr: "href"},
			{Name: "city", Selector: ".city"},
		},
		Now: fixedNow,
	}
	records, err := ex.Extract(&models.Response{Target: "https://x.test/list", Body: []byte(html)})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0]["name"] != "First" || records[0]["link"] != "/a/1" || records[0]["city"] != "Oslo" {
		t.Fatalf("first record = %#v", records[0])
	}
	if records[1]["city"] != nil {
		t.Fatalf("empty city should be nil, got %#v", records[1]["city"])
	}
	if records[1]["url"] != "https://x.test/list" {
		t.Fatalf("url = %v", records[1]["url"])
	}

	if _, err := (&SelectorExtractor{}).Extract(&models.Response{}); err == nil {
		t.Fatal("expected error for empty item selector")
	}
}

func TestExtractorFunc(t *testing.T) {
	var ex Extractor = ExtractorFunc(func(resp *models.Response) ([]models.Record, error) {
		return []models.Record{{"url": resp.Target}}, nil
	})
	got, err := ex.Extract(&models.Response{Target: "a"})
	if err != nil || len(got) != 1 || got[0]["url"] != "a" {
		t.Fatalf("ExtractorFunc = %v, %v", got, err)
	}
}
