package hnapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/transport"
)

// ErrShape is matched by every *ShapeError.
var ErrShape = errors.New("unexpected payload shape")

// maxErrorBody bounds how much of a response body an HTTPError keeps.
const maxErrorBody = 512

// ShapeError reports a top-level payload that is not the JSON type an
// endpoint promises. It is a contract violation, never a transient failure.
type ShapeError struct {
	Endpoint string
	Expected string
	Got      string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s returned non-%s payload: %s", e.Endpoint, e.Expected, e.Got)
}

func (e *ShapeError) Unwrap() error { return ErrShape }

// HTTPError represents a non-2xx response that the transport returned
// without retrying.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
	Message    string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP error (%d %s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, e.Status)
}

// parseHTTPError turns a non-2xx response into an *HTTPError, or returns nil.
// Firebase reports failures as {"error": "..."}; anything else keeps the
// (truncated) raw body as the message.
func parseHTTPError(resp *transport.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	body := string(resp.Body)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	httpErr := &HTTPError{
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
		Message:    strings.TrimSpace(body),
	}

	var jsonErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(resp.Body, &jsonErr) == nil {
		if jsonErr.Error != "" {
			httpErr.Message = jsonErr.Error
		} else if jsonErr.Message != "" {
			httpErr.Message = jsonErr.Message
		}
	}

	return httpErr
}

// IsHTTPError reports whether err carries an *HTTPError.
func IsHTTPError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr)
}
