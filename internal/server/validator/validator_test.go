package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatMessage struct {
	Role string `json:"role" binding:"required,oneof=user assistant system"`
}

type request struct {
	Model    string    `json:"model" binding:"required,model_id"`
	Messages []chatMessage `json:"messages" binding:"required,min=1,dive"`
}

func TestParseValidationError(t *testing.T) {
	err := Struct(&request{Messages: []chatMessage{{Role: "robot"}}})
	require.Error(t, err)

	fields := ParseValidationError(err)

	assert.Equal(t, "model is a required field", fields["model"])
	assert.Equal(t, "must be one of [user, assistant, system]", fields["messages[0].role"])
}

func TestParseValidationError_ModelID(t *testing.T) {
	err := Struct(&request{Model: "gpt4", Messages: []chatMessage{{Role: "user"}}})
	require.Error(t, err)

	assert.Equal(t, map[string]string{"model": "model must look like provider/model"}, ParseValidationError(err))
}

func TestParseValidationError_NotValidation(t *testing.T) {
	fields := ParseValidationError(errors.New("unexpected EOF"))
	assert.Contains(t, fields, "body")
	assert.Len(t, fields, 1)
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(&request{Model: "a/b", Messages: []chatMessage{{Role: "user"}}}))
}

func TestIsModelID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"openai/gpt-4o", true},
		{"meta-llama/llama-3.1-8b-instruct:free", true},
		{"ollama/library/llama3", true},
		{"gpt4", false},
		{"/gpt4", false},
		{"openai/", false},
		{"open ai/gpt", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsModelID(tt.id), tt.id)
	}
}
