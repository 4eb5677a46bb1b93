// Package models defines data structures shared by the harvester.
package models

import (
	"net/http"
	"time"
)

// Record is one extracted output document. It is written verbatim to the output store.
type Record map[string]any

// Identifier returns the string stored under field, or "" when absent.
func (r Record) Identifier(field string) string {
	if r == nil {
		return ""
	}
	v, ok := r[field].(string)
	if !ok {
		return ""
	}
	return v
}

// Response is a raw fetch proxy response for one target.
type Response struct {
	Target     string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// ErrorEntry is one line of the recoverable or fatal error log.
type ErrorEntry struct {
	Message   string    `json:"message" bson:"message" firestore:"message"`
	Target    string    `json:"target,omitempty" bson:"target,omitempty" firestore:"target,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp" firestore:"timestamp"`
}

// SessionReport summarises one harvesting session.
type SessionReport struct {
	SessionID          string
	StartTime          time.Time
	EndTime            time.Time
	Targets            int
	Chunks             int
	ChunksCompleted    int
	Processed          int
	RecordsWritten     int
	HTTPFailures       int
	ConnectionFailures int
	RetryPasses        int
	Interrupted        bool
	Aborted            bool
}

// Duration returns the wall-clock length of the session.
func (r *SessionReport) Duration() time.Duration {
	if r == nil || r.StartTime.IsZero() {
		return 0
	}
	end := r.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(r.StartTime)
}
