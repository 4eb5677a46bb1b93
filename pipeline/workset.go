// Package pipeline computes the pending work set of a session and partitions it into chunks.
package pipeline

import (
	"errors"
	"math/rand/v2"
)

// ErrEmptyInput is returned when there are no input identifiers at all.
var ErrEmptyInput = errors.New("pipeline: input is empty")

// ShuffleFunc permutes n elements through swap, like rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

// Resolve returns the deduplicated input identifiers that are not in output, in random order.
func Resolve(input, output []string) ([]string, error) {
	return ResolveWith(input, output, rand.Shuffle)
}

// ResolveWith is Resolve with a caller-supplied shuffle. A nil shuffle keeps input order.
func ResolveWith(input, output []string, shuffle ShuffleFunc) ([]string, error) {
	if len(input) == 0 {
		return nil, ErrEmptyInput
	}

	done := make(map[string]struct{}, len(output))
	for _, id := range output {
		done[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(input))
	pending := make([]string, 0, len(input))
	for _, id := range input {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := done[id]; ok {
			continue
		}
		pending = append(pending, id)
	}

	if shuffle != nil {
		shuffle(len(pending), func(i, j int) {
			pending[i], pending[j] = pending[j], pending[i]
		})
	}
	return pending, nil
}
