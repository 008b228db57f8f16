package catalog

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// ErrUnparseableCatalog is returned when an upstream body is neither a list of
// models nor an object wrapping one under "data".
var ErrUnparseableCatalog = errors.New("catalog: unparseable model list")

// RawModel is one untrusted catalog entry. Numeric fields stay as gjson values
// so strings and numbers are both accepted and absence is observable.
type RawModel struct {
	ID            string
	Name          string
	Description   string
	Pricing       RawPricing
	ContextLength gjson.Result
	TopProvider   json.RawMessage
}

type RawPricing struct {
	Prompt     gjson.Result
	Completion gjson.Result
}

// ParseCatalog extracts raw models from an upstream /models body.
func ParseCatalog(body []byte) ([]RawModel, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrUnparseableCatalog
	}

	root := gjson.ParseBytes(body)
	list := root
	if !root.IsArray() {
		list = root.Get("data")
	}
	if !list.IsArray() {
		return nil, ErrUnparseableCatalog
	}

	raws := make([]RawModel, 0, len(list.Array()))
	list.ForEach(func(_, entry gjson.Result) bool {
		if entry.IsObject() {
			raws = append(raws, RawModelFromJSON(entry))
		}
		return true
	})
	return raws, nil
}

// RawModelFromJSON maps a single catalog object. Missing fields are left zero.
func RawModelFromJSON(v gjson.Result) RawModel {
	raw := RawModel{
		ID:          v.Get("id").String(),
		Name:        v.Get("name").String(),
		Description: v.Get("description").String(),
		Pricing: RawPricing{
			Prompt:     v.Get("pricing.prompt"),
			Completion: v.Get("pricing.completion"),
		},
		ContextLength: v.Get("context_length"),
	}
	// compacted so the opaque blob is stable across re-encoding
	if tp := v.Get("top_provider|@ugly"); tp.Exists() && tp.Type != gjson.Null {
		raw.TopProvider = json.RawMessage(tp.Raw)
	}
	return raw
}
