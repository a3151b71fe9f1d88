// Package llm holds the clients for the external semantic analyzer. The
// verification engine's slow tier is the only caller; everything here is
// reachable over the network and treated as best-effort.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable means the analyzer could not be reached or is not
// configured. Callers degrade to local checks; this is never fatal.
var ErrUnavailable = errors.New("semantic analyzer unavailable")

// Client generates freeform text from a prompt.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ReportIssue is one finding from a full-content analysis.
type ReportIssue struct {
	Check      string `json:"check"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Location   string `json:"location,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Report is the structured result of a semantic analysis pass.
type Report struct {
	Issues []ReportIssue `json:"issues"`
}

// Analyzer runs full-content consistency analysis against graph context.
type Analyzer interface {
	Analyze(ctx context.Context, content, graphContext string) (*Report, error)
}
