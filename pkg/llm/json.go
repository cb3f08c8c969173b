package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/herdwise/pkg/apperrors"
	"github.com/ekaya-inc/herdwise/pkg/logging"
)

// thinkTagPattern matches <think>...</think> tags that may appear at the start of LLM responses.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

// fencedJSONPattern matches a ```json fenced block.
var fencedJSONPattern = regexp.MustCompile("(?is)```\\s*json\\b[ \\t]*\\r?\\n?(.*?)```")

// JSONStrategy names the rule that located JSON in a model response.
type JSONStrategy string

const (
	JSONStrategyFenced    JSONStrategy = "fenced_json"
	JSONStrategyBraces    JSONStrategy = "first_object"
	JSONStrategyWholeText JSONStrategy = "whole_text"
)

// JSONExtraction is the tagged result of ExtractJSON: either the located
// JSON text and the strategy that found it, or a bounded preview of a
// response that held none.
type JSONExtraction struct {
	JSON     string
	Strategy JSONStrategy
	Preview  string
}

// Found reports whether JSON was located.
func (e JSONExtraction) Found() bool {
	return e.JSON != ""
}

// ParseError describes a response that did not yield the expected object.
type ParseError struct {
	Preview string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse model response: %v (response: %q)", e.Cause, e.Preview)
	}
	return fmt.Sprintf("parse model response: %v (response: %q)", apperrors.ErrNoJSONFound, e.Preview)
}

func (e *ParseError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return apperrors.ErrNoJSONFound
}

// ExtractJSON locates a JSON value in an LLM response, trying in order:
//  1. a ```json fenced block
//  2. the first balanced {...} object
//  3. the whole response with <think> tags stripped
func ExtractJSON(response string) JSONExtraction {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	if m := fencedJSONPattern.FindStringSubmatch(cleaned); m != nil {
		body := strings.TrimSpace(m[1])
		if json.Valid([]byte(body)) {
			return JSONExtraction{JSON: body, Strategy: JSONStrategyFenced}
		}
	}

	if obj, ok := extractBalancedJSON(cleaned, '{', '}'); ok && json.Valid([]byte(obj)) {
		return JSONExtraction{JSON: obj, Strategy: JSONStrategyBraces}
	}

	trimmed := strings.TrimSpace(cleaned)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return JSONExtraction{JSON: trimmed, Strategy: JSONStrategyWholeText}
	}

	return JSONExtraction{Preview: logging.Preview(response)}
}

// extractBalancedJSON finds the first balanced JSON structure starting with openChar.
// It handles nested structures by counting bracket depth.
func extractBalancedJSON(s string, openChar, closeChar byte) (string, bool) {
	start := strings.IndexByte(s, openChar)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		if c == '\\' && inString {
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if c == openChar {
			depth++
		} else if c == closeChar {
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// ParseJSONResponse extracts JSON from a response and unmarshals it into the target.
// Failures are returned as *ParseError carrying a preview of the response.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	extraction := ExtractJSON(response)
	if !extraction.Found() {
		return result, &ParseError{Preview: extraction.Preview}
	}

	if err := json.Unmarshal([]byte(extraction.JSON), &result); err != nil {
		return result, &ParseError{Preview: logging.Preview(response), Cause: fmt.Errorf("unmarshal JSON: %w", err)}
	}

	return result, nil
}
