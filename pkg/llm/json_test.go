package llm

import (
	"errors"
	"strings"
	"testing"

	"github.com/ekaya-inc/herdwise/pkg/apperrors"
)

func TestExtractJSON_PlainObject(t *testing.T) {
	input := `{"intent": "chart", "confidence": 0.9}`
	result := ExtractJSON(input)
	if result.JSON != input {
		t.Errorf("expected %q, got %q", input, result.JSON)
	}
	if result.Strategy != JSONStrategyBraces {
		t.Errorf("expected strategy %s, got %s", JSONStrategyBraces, result.Strategy)
	}
}

func TestExtractJSON_FencedBlockWins(t *testing.T) {
	input := "Here is my answer {not json}\n```json\n{\"intent\": \"text\"}\n```\ntrailing {\"intent\": \"chart\"}"
	result := ExtractJSON(input)
	if result.JSON != `{"intent": "text"}` {
		t.Errorf("expected fenced object, got %q", result.JSON)
	}
	if result.Strategy != JSONStrategyFenced {
		t.Errorf("expected strategy %s, got %s", JSONStrategyFenced, result.Strategy)
	}
}

func TestExtractJSON_UppercaseFence(t *testing.T) {
	input := "```JSON\n{\"chart_type\": \"line\"}\n```"
	result := ExtractJSON(input)
	if result.Strategy != JSONStrategyFenced {
		t.Errorf("expected fenced strategy, got %s", result.Strategy)
	}
}

func TestExtractJSON_InvalidFenceFallsBackToBraces(t *testing.T) {
	input := "```json\n{intent: chart}\n```\nActually: {\"intent\": \"chart\"}"
	result := ExtractJSON(input)
	if result.JSON != `{"intent": "chart"}` {
		t.Errorf("expected brace object, got %q", result.JSON)
	}
}

func TestExtractJSON_NestedObject(t *testing.T) {
	input := `{"outer": {"inner": {"deep": "value"}}}`
	result := ExtractJSON(input)
	if result.JSON != input {
		t.Errorf("expected %q, got %q", input, result.JSON)
	}
}

func TestExtractJSON_WithThinkTags(t *testing.T) {
	input := `<think>
Let me analyze this request...
I should return {"draft": true}.
</think>
{"intent": "text", "confidence": 0.8}`

	expected := `{"intent": "text", "confidence": 0.8}`
	result := ExtractJSON(input)
	if result.JSON != expected {
		t.Errorf("expected %q, got %q", expected, result.JSON)
	}
}

func TestExtractJSON_WithTextAroundJSON(t *testing.T) {
	input := `Sure! {"intent": "chart", "reasoning": "wants a trend"} Hope this helps.`
	expected := `{"intent": "chart", "reasoning": "wants a trend"}`
	result := ExtractJSON(input)
	if result.JSON != expected {
		t.Errorf("expected %q, got %q", expected, result.JSON)
	}
}

func TestExtractJSON_BracketsInStrings(t *testing.T) {
	input := `{"reasoning": "user said {show} and [plot]"}`
	result := ExtractJSON(input)
	if result.JSON != input {
		t.Errorf("expected %q, got %q", input, result.JSON)
	}
}

func TestExtractJSON_EscapedQuotesInStrings(t *testing.T) {
	input := `{"reasoning": "the \"trend\" keyword"}`
	result := ExtractJSON(input)
	if result.JSON != input {
		t.Errorf("expected %q, got %q", input, result.JSON)
	}
}

func TestExtractJSON_WholeTextArray(t *testing.T) {
	input := ` ["line", "bar"] `
	result := ExtractJSON(input)
	if result.JSON != `["line", "bar"]` {
		t.Errorf("expected array, got %q", result.JSON)
	}
	if result.Strategy != JSONStrategyWholeText {
		t.Errorf("expected strategy %s, got %s", JSONStrategyWholeText, result.Strategy)
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	result := ExtractJSON("I cannot answer that question.")
	if result.Found() {
		t.Fatalf("expected no JSON, got %q", result.JSON)
	}
	if result.Preview != "I cannot answer that question." {
		t.Errorf("expected preview of the response, got %q", result.Preview)
	}
}

func TestExtractJSON_PreviewIsBounded(t *testing.T) {
	result := ExtractJSON(strings.Repeat("no json here ", 100))
	if result.Found() {
		t.Fatal("expected no JSON")
	}
	if len(result.Preview) > 210 {
		t.Errorf("expected bounded preview, got %d bytes", len(result.Preview))
	}
}

func TestExtractJSON_EmptyInput(t *testing.T) {
	if ExtractJSON("").Found() {
		t.Error("expected no JSON for empty input")
	}
}

func TestParseJSONResponse_Object(t *testing.T) {
	type intent struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}

	result, err := ParseJSONResponse[intent]("```json\n{\"intent\": \"chart\", \"confidence\": 0.95}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != "chart" || result.Confidence != 0.95 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestParseJSONResponse_NoJSON(t *testing.T) {
	_, err := ParseJSONResponse[map[string]any]("nothing to see")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, apperrors.ErrNoJSONFound) {
		t.Errorf("expected ErrNoJSONFound, got %v", err)
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) || parseErr.Preview != "nothing to see" {
		t.Errorf("expected ParseError with preview, got %v", err)
	}
}

func TestParseJSONResponse_WrongShape(t *testing.T) {
	type intent struct {
		Confidence float64 `json:"confidence"`
	}
	_, err := ParseJSONResponse[intent](`{"confidence": [1, 2]}`)
	if err == nil {
		t.Fatal("expected unmarshal error")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected ParseError, got %T", err)
	}
}
