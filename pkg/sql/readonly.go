package sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/herdwise/pkg/apperrors"
)

// writeKeywordPattern matches statement keywords that can change state, at
// word boundaries so column names like reset_count do not match SET.
var writeKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|MERGE|GRANT|REVOKE|COPY|ATTACH|DETACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXEC|EXECUTE|PRAGMA|SET|INTO|VACUUM)\b`,
)

var (
	stringLiteralPattern = regexp.MustCompile(`'(?:[^']|'')*'`)
	leadingSelectPattern = regexp.MustCompile(`(?i)^SELECT\b`)
)

// stripCommentsAndLiterals blanks out comments and string literals so that
// keyword checks only see SQL structure. WHERE alert_type = 'DELETE' is fine.
func stripCommentsAndLiterals(query string) string {
	cleaned := stringLiteralPattern.ReplaceAllString(StripComments(query), "''")
	return strings.TrimSpace(cleaned)
}

// EnsureReadOnly verifies that query is a single SELECT statement free of
// data-changing keywords.
func EnsureReadOnly(query string) error {
	res := ValidateAndNormalize(query)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrNotReadOnly, res.Error)
	}

	structural := stripCommentsAndLiterals(res.NormalizedSQL)
	if !leadingSelectPattern.MatchString(structural) {
		return fmt.Errorf("%w: statement must start with SELECT", apperrors.ErrNotReadOnly)
	}

	if match := writeKeywordPattern.FindString(structural); match != "" {
		return fmt.Errorf("%w: disallowed keyword %s", apperrors.ErrNotReadOnly, strings.ToUpper(match))
	}

	return nil
}
