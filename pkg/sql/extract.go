package sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/herdwise/pkg/apperrors"
	"github.com/ekaya-inc/herdwise/pkg/logging"
)

var (
	fencedSQLPattern   = regexp.MustCompile("(?is)```\\s*sql\\b[ \\t]*\\r?\\n?(.*?)```")
	fencedBlockPattern = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \\t]*\\r?\\n?(.*?)```")
	selectStartPattern = regexp.MustCompile(`(?i)\bSELECT\s`)
	selectWordPattern  = regexp.MustCompile(`(?i)\bSELECT\b`)
	fromWordPattern    = regexp.MustCompile(`(?i)\bFROM\b`)
)

// ExtractionStrategy names the rule that located SQL in a model response.
type ExtractionStrategy string

const (
	StrategyFencedSQL    ExtractionStrategy = "fenced_sql"
	StrategyFencedSelect ExtractionStrategy = "fenced_select"
	StrategyTerminated   ExtractionStrategy = "select_terminated"
	StrategyWholeText    ExtractionStrategy = "whole_text"
)

// Extraction is a located statement in canonical form (single trailing semicolon).
type Extraction struct {
	SQL      string
	Strategy ExtractionStrategy
}

// ExtractionError carries a bounded preview of a response with no usable SQL.
type ExtractionError struct {
	Preview string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %v (response: %q)", apperrors.ErrNoSQLFound, e.Cause, e.Preview)
	}
	return fmt.Sprintf("%v (response: %q)", apperrors.ErrNoSQLFound, e.Preview)
}

func (e *ExtractionError) Unwrap() error { return apperrors.ErrNoSQLFound }

// ExtractSQL locates a single statement in a model response, trying in order:
//  1. a ```sql fenced block
//  2. any fenced block containing SELECT
//  3. the first SELECT up to its terminating semicolon
//  4. the whole trimmed response when it mentions both SELECT and FROM
//
// The result always ends in exactly one semicolon, so extracting from an
// already extracted statement returns it unchanged.
func ExtractSQL(response string) (*Extraction, error) {
	candidate, strategy := locateSQL(response)
	if candidate == "" {
		return nil, &ExtractionError{Preview: logging.Preview(response)}
	}

	canonical, err := Terminate(candidate)
	if err != nil {
		return nil, &ExtractionError{Preview: logging.Preview(response), Cause: err}
	}

	return &Extraction{SQL: canonical, Strategy: strategy}, nil
}

func locateSQL(response string) (string, ExtractionStrategy) {
	if m := fencedSQLPattern.FindStringSubmatch(response); m != nil {
		if body := strings.TrimSpace(m[1]); body != "" {
			return body, StrategyFencedSQL
		}
	}

	for _, m := range fencedBlockPattern.FindAllStringSubmatch(response, -1) {
		if selectWordPattern.MatchString(m[1]) {
			return strings.TrimSpace(m[1]), StrategyFencedSelect
		}
	}

	// Prose like "select the farms..." also matches, so a candidate must reach
	// a FROM before its semicolon.
	for _, loc := range selectStartPattern.FindAllStringIndex(response, -1) {
		rest := response[loc[0]:]
		end := indexSemicolonOutsideStrings(rest)
		if end < 0 {
			break
		}
		if fromWordPattern.MatchString(rest[:end]) {
			return strings.TrimSpace(rest[:end+1]), StrategyTerminated
		}
	}

	trimmed := strings.TrimSpace(response)
	if selectWordPattern.MatchString(trimmed) && fromWordPattern.MatchString(trimmed) {
		return trimmed, StrategyWholeText
	}

	return "", ""
}
