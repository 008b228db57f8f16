package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const (
	UnknownProvider   = "Unknown"
	UnknownName       = "Unknown model"
	UnknownContext    = "unknown"
	providerSeparator = "/"
)

// ContextLength is a token window that may not have been reported upstream.
// It serializes as a number when known and as "unknown" otherwise.
type ContextLength struct {
	Tokens int64
	Known  bool
}

func KnownContext(tokens int64) ContextLength {
	return ContextLength{Tokens: tokens, Known: true}
}

func (c ContextLength) String() string {
	if !c.Known {
		return UnknownContext
	}
	return strconv.FormatInt(c.Tokens, 10)
}

func (c ContextLength) MarshalJSON() ([]byte, error) {
	if !c.Known {
		return json.Marshal(UnknownContext)
	}
	return json.Marshal(c.Tokens)
}

func (c *ContextLength) UnmarshalJSON(data []byte) error {
	v := gjson.ParseBytes(data)
	if v.Type == gjson.Number {
		*c = KnownContext(v.Int())
		return nil
	}
	*c = ContextLength{}
	return nil
}

// Model is a normalized catalog entry. Prompt and completion costs are always
// finite and non-negative.
type Model struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Provider       string          `json:"provider"`
	PromptCost     float64         `json:"prompt_cost"`
	CompletionCost float64         `json:"completion_cost"`
	ContextLength  ContextLength   `json:"context_length"`
	Description    string          `json:"description"`
	TopProvider    json.RawMessage `json:"top_provider,omitempty"`
}

// Normalize maps an untrusted entry to a Model. Every field has a fallback so
// this never fails.
func Normalize(raw RawModel) Model {
	m := Model{
		ID:             raw.ID,
		Provider:       providerOf(raw.ID),
		PromptCost:     parseCost(raw.Pricing.Prompt),
		CompletionCost: parseCost(raw.Pricing.Completion),
		ContextLength:  parseContext(raw.ContextLength),
		TopProvider:    raw.TopProvider,
	}

	m.Name = displayName(raw)

	m.Description = raw.Description
	if m.Description == "" {
		kind := "Paid"
		if m.PromptCost == 0 {
			kind = "Free"
		}
		m.Description = fmt.Sprintf("%s model from %s", kind, m.Provider)
	}

	return m
}

func providerOf(id string) string {
	provider, _, found := strings.Cut(id, providerSeparator)
	if !found || provider == "" {
		return UnknownProvider
	}
	return capitalize(provider)
}

func displayName(raw RawModel) string {
	if raw.Name != "" {
		return raw.Name
	}
	if _, name, found := strings.Cut(raw.ID, providerSeparator); found && name != "" {
		return name
	}
	if raw.ID != "" {
		return raw.ID
	}
	return UnknownName
}

// capitalize upper-cases the first rune and leaves the rest untouched.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func parseCost(v gjson.Result) float64 {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

func parseContext(v gjson.Result) ContextLength {
	switch v.Type {
	case gjson.Number:
		return KnownContext(v.Int())
	case gjson.String:
		if n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64); err == nil {
			return KnownContext(n)
		}
	}
	return ContextLength{}
}
