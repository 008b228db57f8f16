package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
)

const problemBase = "https://atlas.dev/probs/"

// Problem type slugs under problemBase.
const (
	TypeValidation       = "validation"
	TypeUnprocessable    = "unprocessable"
	TypeInvalidItinerary = "invalid-itinerary"
	TypeUpstream         = "upstream"
	TypeRateLimited      = "rate-limited"
)

// TypeURI expands a slug into a problem type URI.
func TypeURI(slug string) string {
	return problemBase + slug
}

// Problem is an RFC 9457 problem detail. Extensions are emitted as top level
// members; the standard members always win on collision.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]any `json:"-"`

	// Log is the internal cause. It is logged, never rendered.
	Log error `json:"-"`
}

func (p *Problem) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

func (p *Problem) Unwrap() error {
	return p.Log
}

func (p *Problem) MarshalJSON() ([]byte, error) {
	out := maps.Clone(p.Extensions)
	if out == nil {
		out = make(map[string]any, 5)
	}
	out["type"] = p.Type
	out["title"] = p.Title
	out["status"] = p.Status
	if p.Detail != "" {
		out["detail"] = p.Detail
	} else {
		delete(out, "detail")
	}
	if p.Instance != "" {
		out["instance"] = p.Instance
	} else {
		delete(out, "instance")
	}
	return json.Marshal(out)
}

// With returns a copy of p with opts applied. p is left untouched.
func (p *Problem) With(opts ...ProblemOption) *Problem {
	cp := *p
	cp.Extensions = maps.Clone(p.Extensions)
	if cp.Extensions == nil {
		cp.Extensions = make(map[string]any)
	}
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// AsProblem unwraps err to a *Problem. ok is false when err carries none, in
// which case an opaque 500 holding err is returned.
func AsProblem(err error) (problem *Problem, ok bool) {
	if errors.As(err, &problem) {
		return problem, true
	}
	return New(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError),
		"An unexpected error occurred.", WithLog(err)), false
}

type ProblemOption func(*Problem)

// New creates a Problem of type about:blank.
func New(status int, title, detail string, opts ...ProblemOption) *Problem {
	p := &Problem{
		Type:       "about:blank",
		Title:      title,
		Status:     status,
		Detail:     detail,
		Extensions: make(map[string]any),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func WithExtension(key string, value any) ProblemOption {
	return func(p *Problem) {
		p.Extensions[key] = value
	}
}

// WithLog attaches an internal error for server-side logging.
func WithLog(err error) ProblemOption {
	return func(p *Problem) {
		p.Log = err
	}
}

// WithType sets the type to the URI of slug.
func WithType(slug string) ProblemOption {
	return func(p *Problem) {
		p.Type = TypeURI(slug)
	}
}

func WithInstance(instance string) ProblemOption {
	return func(p *Problem) {
		p.Instance = instance
	}
}

// ValidationError reports request fields that failed binding.
func ValidationError(fields map[string]string) *Problem {
	return New(http.StatusBadRequest, "Validation Error", "One or more fields failed validation",
		WithType(TypeValidation),
		WithExtension("errors", fields),
	)
}

// UnprocessableError is used when a well-formed document is semantically invalid.
func UnprocessableError(detail string, opts ...ProblemOption) *Problem {
	opts = append([]ProblemOption{WithType(TypeUnprocessable)}, opts...)
	return New(http.StatusUnprocessableEntity, "Unprocessable Entity", detail, opts...)
}

func BadRequestError(detail string, opts ...ProblemOption) *Problem {
	return New(http.StatusBadRequest, "Bad Request", detail, opts...)
}

func InternalError(detail string, err error) *Problem {
	return New(http.StatusInternalServerError, "Internal Server Error", detail, WithLog(err))
}

func NotFoundError(detail string) *Problem {
	return New(http.StatusNotFound, "Not Found", detail)
}

func UnauthorizedError(detail string) *Problem {
	return New(http.StatusUnauthorized, "Unauthorized", detail)
}

func ForbiddenError(detail string) *Problem {
	return New(http.StatusForbidden, "Forbidden", detail)
}

// ProviderError is a 502 for failures of an upstream dependency.
func ProviderError(detail string, err error, opts ...ProblemOption) *Problem {
	opts = append([]ProblemOption{WithType(TypeUpstream), WithLog(err)}, opts...)
	return New(http.StatusBadGateway, "Bad Gateway", detail, opts...)
}

func RateLimitError(detail string) *Problem {
	return New(http.StatusTooManyRequests, "Too Many Requests", detail, WithType(TypeRateLimited))
}
