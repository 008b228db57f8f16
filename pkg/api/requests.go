package api

import (
	"encoding/json"
	"errors"
	"strings"
)

// ResponseFormatJSON asks the model for a single JSON object. The gateway
// treats such replies as itinerary documents.
const ResponseFormatJSON = "json_object"

var errContentShape = errors.New("content must be a string or an array of parts")

type ChatRequest struct {
	// message array is required, dive in and deep validate
	Messages []ChatMessage `json:"messages" binding:"required,min=1,dive"`

	// the model to send request to, in shape `<provider>/<model>`. Falls back
	// to the configured default model when empty.
	Model string `json:"model,omitempty"`

	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Can be string or []string
	Stop *Stop `json:"stop,omitempty"`

	Stream bool `json:"stream,omitempty"`

	MaxTokens   int     `json:"max_tokens,omitempty" binding:"omitempty,min=1"`
	Temperature float64 `json:"temperature,omitempty" binding:"omitempty,min=0,max=2"`
	TopP        float64 `json:"top_p,omitempty" binding:"omitempty,min=0,max=1"`
	Seed        int     `json:"seed,omitempty"`
	User        string  `json:"user,omitempty"`
}

type ChatMessage struct {
	Role    string  `json:"role" binding:"required,oneof=user assistant system"`
	Content Content `json:"content"` // string or []ContentPart
	Name    string  `json:"name,omitempty"`

	// Reasoning is set on assistant output only.
	Reasoning string `json:"reasoning,omitempty"`
}

// Content handles the union type: string | []ContentPart
type Content struct {
	Text  string
	Parts []ContentPart
}

// WantsJSON reports whether the caller asked for a JSON object reply.
func (r *ChatRequest) WantsJSON() bool {
	return r.ResponseFormat != nil && r.ResponseFormat.Type == ResponseFormatJSON
}

// UnmarshalJSON accepts a string, an array of parts or null.
func (c *Content) UnmarshalJSON(data []byte) error {
	switch {
	case len(data) == 0 || string(data) == "null":
		*c = Content{}
		return nil
	case data[0] == '"':
		return json.Unmarshal(data, &c.Text)
	case data[0] == '[':
		return json.Unmarshal(data, &c.Parts)
	}
	return errContentShape
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// String flattens text parts. Image parts are ignored.
func (c Content) String() string {
	if c.Parts == nil {
		return c.Text
	}
	var b strings.Builder
	for _, p := range c.Parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type ResponseFormat struct {
	Type string `json:"type" binding:"required,oneof=text json_object"`
}

type Stop struct {
	Val []string
}

func (s *Stop) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &s.Val)
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	s.Val = []string{str}
	return nil
}

func (s Stop) MarshalJSON() ([]byte, error) {
	if len(s.Val) == 1 {
		return json.Marshal(s.Val[0])
	}
	return json.Marshal(s.Val)
}

type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
	System    Role = "system"
)

// SettingsRequest is the body of PUT /v1/admin/settings. Nil fields are left unchanged.
type SettingsRequest struct {
	DefaultModel *string  `json:"default_model,omitempty" binding:"omitempty,model_id"`
	Keywords     []string `json:"keywords,omitempty" binding:"omitempty,max=32,dive,min=1,max=32"`
	SystemPrompt *string  `json:"system_prompt,omitempty" binding:"omitempty,max=8000"`
}
