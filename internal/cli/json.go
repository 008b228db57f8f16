package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

var jsonStyle = &pretty.Style{
	Key:    [2]string{Blue, Reset},
	String: [2]string{Green, Reset},
	Number: [2]string{Purple, Reset},
	True:   [2]string{Yellow, Reset},
	False:  [2]string{Yellow, Reset},
	Null:   [2]string{Dim, Reset},
}

// short arrays such as activity lists stay on one line
var layout = &pretty.Options{Width: 80, Indent: "  "}

// HighlightJSON colors the tokens of a JSON text, keeping its layout.
func HighlightJSON(s string) string {
	if !Enabled() {
		return s
	}
	return string(pretty.Color([]byte(s), jsonStyle))
}

// PrettyFormat indents and colors v. Strings and byte slices are taken to
// hold JSON already; anything else is marshalled first. Invalid JSON is
// returned as is.
func PrettyFormat(v any) string {
	var raw []byte
	switch t := v.(type) {
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%+v", v)
		}
		raw = b
	}

	if !gjson.ValidBytes(raw) {
		return string(raw)
	}
	return HighlightJSON(string(bytes.TrimRight(pretty.PrettyOptions(raw, layout), "\n")))
}

// PrettyPrint writes PrettyFormat(v) and a newline to w.
func PrettyPrint(w io.Writer, v any) {
	fmt.Fprintln(w, PrettyFormat(v))
}
