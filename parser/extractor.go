// Package parser turns fetched responses into output records.
package parser

import (
	"errors"

	"github.com/aluiziolira/go-harvest/models"
)

// ErrNilResponse is returned when an extractor is handed no response.
var ErrNilResponse = errors.New("nil response")

// Extractor converts one successful response into zero or more records.
// Implementations must be stateless and safe for concurrent use.
type Extractor interface {
	Extract(resp *models.Response) ([]models.Record, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(resp *models.Response) ([]models.Record, error)

// Extract calls f.
func (f ExtractorFunc) Extract(resp *models.Response) ([]models.Record, error) {
	return f(resp)
}
