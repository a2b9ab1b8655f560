package airtable

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrBatchTooLarge is returned before sending a write of more than
// MaxBatchSize records.
var ErrBatchTooLarge = errors.New("batch exceeds 10 records")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Type    string
	Message string
	Method  string
	Table   string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("airtable %s %s: %d %s: %s", e.Method, e.Table, e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("airtable %s %s: %d %s", e.Method, e.Table, e.Status, http.StatusText(e.Status))
}

// IsRateLimited returns true if err is an HTTP 429 response.
func IsRateLimited(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusTooManyRequests
}
