package catalog

import (
	_ "embed"
	"fmt"
)

//go:embed fallback.json
var fallbackJSON []byte

var fallbackModels = mustParse(fallbackJSON)

func mustParse(body []byte) []RawModel {
	raws, err := ParseCatalog(body)
	if err != nil {
		panic(fmt.Sprintf("catalog: bad fallback list: %v", err))
	}
	return raws
}

// Fallback returns the curated catalog served when the upstream is unreachable
// or returns something unusable. Each call returns a fresh slice.
func Fallback() []RawModel {
	out := make([]RawModel, len(fallbackModels))
	copy(out, fallbackModels)
	return out
}
