package parserunner

import (
	"encoding/json"
	"fmt"
	"io"

	"capaudit/internal/audit"
	"capaudit/internal/parser"
)

// RunWorker performs one parse in the current process and writes the JSON
// result to out. Called by the hidden CLI subcommand; the exit code is always
// zero so parse failures reach the parent as structured results rather than
// process errors.
func RunWorker(path string, out io.Writer) error {
	result := audit.ParseResult{ParseStatus: audit.ParseSuccess}

	parsed, err := parser.ParseFile(path)
	if err != nil {
		result = audit.ParseResult{
			ParseStatus: audit.ParseError,
			ParseError:  err.Error(),
		}
	} else {
		result.Text = parsed.Text
		result.TextSpans = parsed.Spans
	}

	encoder := json.NewEncoder(out)
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("encode parse result: %w", err)
	}
	return nil
}
