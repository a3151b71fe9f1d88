package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	response string
	err      error
}

func (m *mockClient) Generate(ctx context.Context, prompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func TestAnalyzeParsesReport(t *testing.T) {
	mock := &mockClient{response: "Here is my analysis:\n```json\n" + `{
		"issues": [
			{"check": "dead_character", "severity": "critical", "message": "Garen died in chapter 3.", "location": "paragraph 2"}
		]
	}` + "\n```"}

	report, err := NewSemanticAnalyzer(mock).Analyze(context.Background(), "Garen spoke.", "Garen: deceased")
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "dead_character", report.Issues[0].Check)
	assert.Equal(t, "critical", report.Issues[0].Severity)
	assert.Equal(t, "paragraph 2", report.Issues[0].Location)
}

func TestAnalyzeEmptyIssues(t *testing.T) {
	mock := &mockClient{response: `{"issues": []}`}

	report, err := NewSemanticAnalyzer(mock).Analyze(context.Background(), "All fine.", "")
	require.NoError(t, err)
	assert.Empty(t, report.Issues)
}

func TestAnalyzeNilClientUnavailable(t *testing.T) {
	_, err := NewSemanticAnalyzer(nil).Analyze(context.Background(), "content", "")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAnalyzeClientErrorPropagates(t *testing.T) {
	mock := &mockClient{err: errors.New("connection refused")}
	_, err := NewSemanticAnalyzer(mock).Analyze(context.Background(), "content", "")
	assert.Error(t, err)
}

func TestAnalyzeGarbageResponse(t *testing.T) {
	mock := &mockClient{response: "I could not produce JSON today."}
	_, err := NewSemanticAnalyzer(mock).Analyze(context.Background(), "content", "")
	assert.Error(t, err)
}

func TestParseJSONTolerance(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	got, err := ParseJSON[payload]("sure thing!\n{\"name\": \"Alice\"}\nanything else?")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	_, err = ParseJSON[payload]("no json here")
	assert.Error(t, err)
}
