// File: internal/reporting/reporter.go

// Package reporting writes completed scan results to a report document.
package reporting

import (
	"fmt"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/iocscope/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Report is the top-level report document.
type Report struct {
	Tool        string                   `json:"tool"`
	Version     string                   `json:"version"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []schemas.AnalysisResult `json:"results"`
}

// Reporter writes scan results in a given format.
type Reporter interface {
	// Write renders the results and closes any underlying file handle.
	Write(results []schemas.AnalysisResult) error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error { return nil }

// New creates a reporter for the given format writing to outputPath, or to
// stdout when outputPath is empty or "stdout".
func New(format, outputPath, version string) (Reporter, error) {
	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "json":
		return &jsonReporter{w: writer, version: version}, nil
	default:
		writer.Close()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// jsonReporter renders the report as indented JSON.
type jsonReporter struct {
	w       io.WriteCloser
	version string
}

func (r *jsonReporter) Write(results []schemas.AnalysisResult) error {
	defer r.w.Close()

	report := Report{
		Tool:        "iocscope",
		Version:     r.version,
		GeneratedAt: time.Now().UTC(),
		Results:     results,
	}

	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
