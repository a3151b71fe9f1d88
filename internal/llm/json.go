package llm

import (
	"encoding/json"
	"fmt"
)

// ParseJSON unmarshals the first JSON object found in an LLM response,
// tolerating surrounding markdown fences or chatter.
func ParseJSON[T any](response string) (T, error) {
	var zero T
	jsonStr := response

	start := -1
	end := -1
	for i, c := range jsonStr {
		if c == '{' {
			start = i
			break
		}
	}
	for i := len(jsonStr) - 1; i >= 0; i-- {
		if jsonStr[i] == '}' {
			end = i + 1
			break
		}
	}

	if start == -1 || end == -1 || start >= end {
		return zero, fmt.Errorf("no JSON object found in response")
	}
	jsonStr = jsonStr[start:end]

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w\nData: %s", err, jsonStr)
	}
	return result, nil
}
