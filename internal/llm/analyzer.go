package llm

import (
	"context"
	"fmt"
	"io"
)

const analysisPrompt = `You are a narrative consistency checker.

<STORY GRAPH CONTEXT>
%s
</STORY GRAPH CONTEXT>

<NEW CONTENT>
%s
</NEW CONTENT>

Instructions:
Check the NEW CONTENT for consistency problems against the STORY GRAPH CONTEXT:
character behavior contradicting established relationships, impossible timeline
jumps, dead characters acting, point-of-view breaks, broken foreshadowing.

Return a JSON object with key "issues", a list of objects with fields
"check", "severity" (one of "critical", "warning", "info"), "message",
and optional "location" and "suggestion".

Example:
{
  "issues": [
    {"check": "dead_character", "severity": "critical", "message": "Garen died in chapter 3 but speaks here.", "location": "paragraph 2"}
  ]
}
If nothing is wrong, return {"issues": []}.`

// SemanticAnalyzer drives a text model with the consistency prompt and parses
// the structured report back out.
type SemanticAnalyzer struct {
	client Client
}

func NewSemanticAnalyzer(client Client) *SemanticAnalyzer {
	return &SemanticAnalyzer{client: client}
}

// Close releases the underlying client when it holds resources (Gemini keeps
// a gRPC connection open).
func (a *SemanticAnalyzer) Close() error {
	if closer, ok := a.client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (a *SemanticAnalyzer) Analyze(ctx context.Context, content, graphContext string) (*Report, error) {
	if a.client == nil {
		return nil, ErrUnavailable
	}

	response, err := a.client.Generate(ctx, fmt.Sprintf(analysisPrompt, graphContext, content))
	if err != nil {
		return nil, err
	}

	report, err := ParseJSON[Report](response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse analysis report: %w", err)
	}
	return &report, nil
}

var _ Analyzer = (*SemanticAnalyzer)(nil)
