package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// ErrInterrupted is returned by Run when the context was cancelled between chunks.
var ErrInterrupted = errors.New("harvest interrupted")

// ErrHTTPStatus indicates the proxy answered with a non-success status.
type ErrHTTPStatus struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e ErrHTTPStatus) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Errorf("http status %d: %w", e.StatusCode, e.Err).Error()
}

func (e ErrHTTPStatus) Unwrap() error {
	return e.Err
}

// ErrConnection indicates the connection to the proxy failed mid-request.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrFatal aborts the session. It carries the target being processed.
type ErrFatal struct {
	Target string
	Err    error
}

func (e ErrFatal) Error() string {
	return fmt.Errorf("fatal error on %s: %w", e.Target, e.Err).Error()
}

func (e ErrFatal) Unwrap() error {
	return e.Err
}

// classifyError maps a transport error and status code onto the recoverable
// error types. Anything it cannot place is returned unchanged.
func classifyError(err error, statusCode int, body []byte) error {
	if err == nil && (statusCode == 0 || isSuccess(statusCode)) {
		return nil
	}
	var status ErrHTTPStatus
	if errors.As(err, &status) {
		return err
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return err
	}
	if isConnectionError(err) {
		return ErrConnection{Err: err}
	}
	if statusCode != 0 && !isSuccess(statusCode) {
		wrapped := err
		if wrapped == nil {
			wrapped = errors.New(http.StatusText(statusCode))
		}
		return ErrHTTPStatus{StatusCode: statusCode, Body: body, Err: wrapped}
	}
	return err
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var status ErrHTTPStatus
	if errors.As(err, &status) {
		return "http_status"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	return "fatal"
}
