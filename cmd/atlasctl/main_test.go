package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nulzo/atlas-api/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cli.SetEnabled(false)
	asJSON, noColor, cfgFile = false, false, ""

	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	doc := `{"tripInfo": {"from": "Rome", "to": "Paris", "duration": 1}, "itinerary": [{"day": 1, "movements": []}]}`
	path := filepath.Join(t.TempDir(), "trip.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	out, err := execute(t, "", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "itinerary contains 1 days")
	assert.Contains(t, out, "valid")
}

func TestValidateCommand_InvalidFromStdin(t *testing.T) {
	out, err := execute(t, `{"tripInfo": {}}`, "validate", "--json", "-")

	assert.ErrorIs(t, err, errInvalid)
	assert.False(t, gjson.Get(out, "valid").Bool())
	assert.Equal(t, "missing tripInfo.from", gjson.Get(out, "errors.0").String())
}

func TestModelsCommand_FromFile(t *testing.T) {
	body := `[
		{"id": "anthropic/claude-3-opus", "pricing": {"prompt": "1.5"}},
		{"id": "openai/gpt-4o", "pricing": {"prompt": "0.000005"}, "context_length": 128000},
		{"id": "acme/free-thing", "pricing": {"prompt": 0}}
	]`

	out, err := execute(t, body, "models", "--file", "-")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.True(t, strings.HasPrefix(lines[1], "acme/free-thing"))
	assert.Contains(t, lines[2], "$5.00/1M")
	assert.Contains(t, lines[2], "128000")
	assert.Contains(t, lines[3], "premium")

	out, err = execute(t, body, "models", "--file", "-", "--json", "--tier", "cheap")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.Get(out, "#").Int())
	assert.Equal(t, "openai/gpt-4o", gjson.Get(out, "0.id").String())
}

func TestModelsCommand_MaxPrice(t *testing.T) {
	body := `{"data": [
		{"id": "openai/gpt-4o", "pricing": {"prompt": "0.000005"}},
		{"id": "openai/gpt-4o-mini", "pricing": {"prompt": "0.00000015"}},
		{"id": "acme/free-thing", "pricing": {"prompt": "0"}}
	]}`

	out, err := execute(t, body, "models", "-f", "-", "--json", "--max-price", "$1.00/1M")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/free-thing", "openai/gpt-4o-mini"}, idsOf(out))

	out, err = execute(t, body, "models", "-f", "-", "--json", "--max-price", "Free")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/free-thing"}, idsOf(out))

	_, err = execute(t, body, "models", "-f", "-", "--max-price", "cheap")
	assert.Error(t, err)
}

func idsOf(out string) []string {
	var ids []string
	for _, id := range gjson.Get(out, "#.id").Array() {
		ids = append(ids, id.String())
	}
	return ids
}

func TestModelsCommand_BadInput(t *testing.T) {
	_, err := execute(t, `{"models": []}`, "models", "--file", "-")
	assert.Error(t, err)

	_, err = execute(t, `[]`, "models", "--file", "-", "--tier", "gold")
	assert.Error(t, err)
}
