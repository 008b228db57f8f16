package httpclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// UpstreamError represents an error returned by an upstream service
type UpstreamError struct {
	StatusCode int
	Body       []byte
	URL        string
}

func (e *UpstreamError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("upstream error: status %d from %s: %s", e.StatusCode, e.URL, msg)
	}
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
}

// Message digs the human readable message out of the common error envelopes
// (OpenAI style, PostgREST style, plain).
func (e *UpstreamError) Message() string {
	if !gjson.ValidBytes(e.Body) {
		return ""
	}
	body := gjson.ParseBytes(e.Body)
	for _, path := range []string{"error.message", "message", "msg", "error"} {
		if v := body.Get(path); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

// Code returns the upstream's own error code, if it sent one.
func (e *UpstreamError) Code() string {
	if !gjson.ValidBytes(e.Body) {
		return ""
	}
	body := gjson.ParseBytes(e.Body)
	for _, path := range []string{"error.code", "code", "error.type"} {
		if v := body.Get(path); v.Exists() && v.Type != gjson.Null {
			return v.String()
		}
	}
	return ""
}

// Retryable reports whether the failure is worth another attempt.
func (e *UpstreamError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// AsUpstream unwraps err to an *UpstreamError.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
