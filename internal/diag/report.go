package diag

import (
	"encoding/json"
	"fmt"
	"io"
)

// Report is the decoded output of one analyzer run, grouped by file.
type Report struct {
	// Files maps a source file path to the diagnostics reported for it.
	Files map[string][]Diagnostic
	// Errors are tool-level errors not attached to any file (internal
	// failures, unparseable inputs).
	Errors []string
}

// jsonReport mirrors the analyzer's --error-format=json output.
type jsonReport struct {
	Totals struct {
		Errors     int `json:"errors"`
		FileErrors int `json:"file_errors"`
	} `json:"totals"`
	Files  map[string]jsonFileResult `json:"files"`
	Errors []string                  `json:"errors"`
}

type jsonFileResult struct {
	Errors   int           `json:"errors"`
	Messages []jsonMessage `json:"messages"`
}

type jsonMessage struct {
	Message   string `json:"message"`
	Line      int    `json:"line"`
	Ignorable bool   `json:"ignorable"`
}

// ParseReport decodes an analyzer JSON report from r.
func ParseReport(r io.Reader) (*Report, error) {
	var raw jsonReport
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding analyzer report: %w", err)
	}

	rep := &Report{
		Files:  make(map[string][]Diagnostic, len(raw.Files)),
		Errors: raw.Errors,
	}
	for file, fr := range raw.Files {
		diags := make([]Diagnostic, 0, len(fr.Messages))
		for _, m := range fr.Messages {
			diags = append(diags, Diagnostic{
				Message:  m.Message,
				File:     file,
				Line:     m.Line,
				Severity: SeverityError,
			})
		}
		rep.Files[file] = diags
	}
	return rep, nil
}

// Total returns the number of diagnostics across all files.
func (r *Report) Total() int {
	n := 0
	for _, diags := range r.Files {
		n += len(diags)
	}
	return n
}
