// Package jsonx extracts JSON from LLM responses.
//
// Models often return JSON wrapped in markdown fences or surrounded by
// commentary. This package pulls the JSON object out of such text so it
// can be coerced against a declared output schema.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extract finds and returns the JSON portion of a response string.
// Handles three patterns:
// 1. Pure JSON response - returns the full response
// 2. JSON wrapped in markdown code blocks (```json ... ```)
// 3. JSON object embedded in text - finds first '{' and last '}'
//
// Limitations:
// - Only handles JSON objects, not arrays
// - Uses simple brace matching, not full JSON parsing
func extract(response string) (string, error) {
	response = stripMarkdownFences(response)

	var test interface{}
	if err := json.Unmarshal([]byte(response), &test); err == nil {
		return response, nil
	}

	start := strings.Index(response, "{")
	if start != -1 {
		end := strings.LastIndex(response, "}")
		if end != -1 && end > start {
			jsonStr := response[start : end+1]
			if err := json.Unmarshal([]byte(jsonStr), &test); err == nil {
				return jsonStr, nil
			}
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("failed to extract valid JSON from response: %q", preview)
}

// stripMarkdownFences removes markdown code block markers.
// Handles ```json\n...\n``` and ```\n...\n```.
func stripMarkdownFences(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}

// Extract parses the JSON object embedded in an LLM response into T.
func Extract[T any](response string) (T, error) {
	var result T
	jsonStr, err := extract(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// ExtractInto parses the embedded JSON object into a provided pointer.
// Non-generic form for cases where generics aren't suitable.
func ExtractInto(response string, result interface{}) error {
	jsonStr, err := extract(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(jsonStr), result); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}
