package cli

import (
	"encoding/json"
	"io"
)

// printJSON writes v indented for a terminal, one compact line otherwise.
func printJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
