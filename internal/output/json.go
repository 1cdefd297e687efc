// internal/output/json.go
package output

import (
	"encoding/json"
	"io"

	"github.com/dsablic/contribcount/internal/runner"
)

// Report is a run summary with the parameters it was produced for.
type Report struct {
	GeneratedAt string `json:"generated_at"`
	Username    string `json:"username,omitempty"`
	FromDate    string `json:"from_date,omitempty"`
	UntilDate   string `json:"until_date,omitempty"`
	runner.Summary
}

// WriteJSON writes the report as pretty-printed JSON to w.
func WriteJSON(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
