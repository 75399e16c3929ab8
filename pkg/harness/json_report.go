package harness

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSONReport encodes result as indented JSON.
func WriteJSONReport(w io.Writer, result RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("could not encode JSON report: %w", err)
	}
	return nil
}

// GenerateJSONReport writes the JSON report to path, creating its directory.
func GenerateJSONReport(path string, result RunResult) error {
	f, err := createReportFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return WriteJSONReport(f, result)
}
