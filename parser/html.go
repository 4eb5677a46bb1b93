package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-harvest/models"
)

// Field describes how one output field is read from an HTML item.
type Field struct {
	Name     string
	Selector string
	// Attr reads an attribute instead of the element text when set.
	Attr string
}

// SelectorExtractor emits one record per element matching Item, filling
// fields from CSS selectors relative to that element.
type SelectorExtractor struct {
	Item   string
	Fields []Field
	Now    func() time.Time
}

// Extract implements Extractor.
func (e *SelectorExtractor) Extract(resp *models.Response) ([]models.Record, error) {
	if resp == nil {
		return nil, ErrNilResponse
	}
	if e.Item == "" {
		return nil, fmt.Errorf("selector extractor: item selector is empty")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html for %s: %w", resp.Target, err)
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	stamp := now().UTC().Format(time.RFC3339)

	var records []models.Record
	doc.Find(e.Item).Each(func(_ int, item *goquery.Selection) {
		rec := models.Record{
			"url":      resp.Target,
			"datetime": stamp,
		}
		for _, f := range e.Fields {
			sel := item
			if f.Selector != "" {
				sel = item.Find(f.Selector).First()
			}
			var value string
			if f.Attr != "" {
				value, _ = sel.Attr(f.Attr)
			} else {
				value = sel.Text()
			}
			rec[f.Name] = Nullable(strings.TrimSpace(value))
		}
		records = append(records, rec)
	})
	return records, nil
}
