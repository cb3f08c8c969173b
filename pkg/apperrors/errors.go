package apperrors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrBlocked          = errors.New("request blocked by safety gate")
	ErrNoSQLFound       = errors.New("no SQL statement found in model response")
	ErrNotReadOnly      = errors.New("statement is not a read-only SELECT")
	ErrEmptyResult      = errors.New("query returned no results")
	ErrInvalidChartSpec = errors.New("invalid chart specification")
	ErrNoJSONFound      = errors.New("no JSON object found in model response")
	ErrUnknownBackend   = errors.New("unknown store backend")
)
