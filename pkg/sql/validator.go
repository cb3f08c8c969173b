// Package sql validates, extracts, bounds and rewrites the single read-only
// statements the pipeline runs against the fact table.
package sql

import (
	"errors"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	// ErrEmptyStatement indicates nothing was left after normalization.
	ErrEmptyStatement = errors.New("empty SQL statement")
)

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize trims the statement, strips one trailing semicolon and
// rejects anything that still contains a statement separator outside string
// literals, quoted identifiers and comments.
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	normalized := stripTrailingSemicolon(strings.TrimSpace(sqlQuery))
	if normalized == "" {
		return ValidationResult{Error: ErrEmptyStatement}
	}

	if hasSemicolonOutsideStrings(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// Terminate returns the normalized statement with exactly one trailing
// semicolon, the canonical form handed between pipeline stages.
func Terminate(sqlQuery string) (string, error) {
	res := ValidateAndNormalize(sqlQuery)
	if res.Error != nil {
		return "", res.Error
	}
	return res.NormalizedSQL + ";", nil
}

const (
	scanNormal = iota
	scanSingleQuote
	scanDoubleQuote
	scanLineComment
	scanBlockComment
)

// indexSemicolonOutsideStrings returns the byte offset of the first semicolon
// that terminates a statement, or -1.
func indexSemicolonOutsideStrings(s string) int {
	state := scanNormal

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch state {
		case scanNormal:
			switch {
			case c == ';':
				return i
			case c == '\'':
				state = scanSingleQuote
			case c == '"':
				state = scanDoubleQuote
			case c == '-' && i+1 < len(s) && s[i+1] == '-':
				state = scanLineComment
				i++
			case c == '/' && i+1 < len(s) && s[i+1] == '*':
				state = scanBlockComment
				i++
			}
		case scanSingleQuote:
			// '' is an escaped quote: leave and immediately re-enter
			if c == '\'' && s[i-1] != '\\' {
				state = scanNormal
			}
		case scanDoubleQuote:
			if c == '"' {
				state = scanNormal
			}
		case scanLineComment:
			if c == '\n' {
				state = scanNormal
			}
		case scanBlockComment:
			if c == '*' && i+1 < len(s) && s[i+1] == '/' {
				state = scanNormal
				i++
			}
		}
	}

	return -1
}

func hasSemicolonOutsideStrings(sqlQuery string) bool {
	return indexSemicolonOutsideStrings(sqlQuery) >= 0
}

// stripTrailingSemicolon removes a trailing semicolon and any whitespace around it.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimRight(strings.TrimSuffix(sqlQuery, ";"), " \t\n\r")
	}
	return sqlQuery
}

// StripComments removes -- line comments and /* */ block comments, leaving
// string literals and quoted identifiers untouched.
func StripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	state := scanNormal

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch state {
		case scanNormal:
			switch {
			case c == '-' && i+1 < len(s) && s[i+1] == '-':
				state = scanLineComment
				i++
				continue
			case c == '/' && i+1 < len(s) && s[i+1] == '*':
				state = scanBlockComment
				b.WriteByte(' ')
				i++
				continue
			case c == '\'':
				state = scanSingleQuote
			case c == '"':
				state = scanDoubleQuote
			}
			b.WriteByte(c)
		case scanSingleQuote:
			if c == '\'' && s[i-1] != '\\' {
				state = scanNormal
			}
			b.WriteByte(c)
		case scanDoubleQuote:
			if c == '"' {
				state = scanNormal
			}
			b.WriteByte(c)
		case scanLineComment:
			if c == '\n' {
				state = scanNormal
				b.WriteByte(c)
			}
		case scanBlockComment:
			if c == '*' && i+1 < len(s) && s[i+1] == '/' {
				state = scanNormal
				i++
			}
		}
	}

	return strings.TrimSpace(b.String())
}
