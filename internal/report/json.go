package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fulmenhq/hookgate/internal/orchestrator"
)

// WriteJSON emits the whole run result as indented JSON.
func WriteJSON(w io.Writer, res *orchestrator.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
