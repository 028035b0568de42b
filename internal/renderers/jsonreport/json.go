package jsonreport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dejo1307/swiftmetrics/internal/facts"
	"github.com/dejo1307/swiftmetrics/internal/report"
)

// FileName is the artifact written by the JSON renderer.
const FileName = "output.json"

// JSONRenderer serializes the report as indented JSON.
type JSONRenderer struct{}

// New creates a new JSONRenderer.
func New() *JSONRenderer {
	return &JSONRenderer{}
}

func (r *JSONRenderer) Name() string {
	return "json"
}

// Render produces output.json.
func (r *JSONRenderer) Render(ctx context.Context, snapshot *report.Snapshot) ([]facts.Artifact, error) {
	if snapshot.Report == nil {
		return nil, fmt.Errorf("snapshot has no report")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snapshot.Report); err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}

	return []facts.Artifact{
		{
			Name:    FileName,
			Content: buf.Bytes(),
			Type:    "application/json",
		},
	}, nil
}
