package models

import (
	"fmt"
	"time"
)

// ResultSet is a materialized query result. Row order is store order and
// every row carries the same column set.
type ResultSet struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// RowCount returns the number of rows.
func (r *ResultSet) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Head returns at most n rows.
func (r *ResultSet) Head(n int) []map[string]any {
	if r == nil {
		return nil
	}
	if n < len(r.Rows) {
		return r.Rows[:n]
	}
	return r.Rows
}

// ErrorCategory is the caller-facing failure taxonomy.
type ErrorCategory string

const (
	ErrSecurityBlocked      ErrorCategory = "security_blocked"
	ErrTranslationFailed    ErrorCategory = "translation_failed"
	ErrExecutionFailed      ErrorCategory = "execution_failed"
	ErrConnectivityFailed   ErrorCategory = "connectivity_failed"
	ErrEmptyResult          ErrorCategory = "empty_result"
	ErrSpecificationFailed  ErrorCategory = "specification_failed"
	ErrInterpretationFailed ErrorCategory = "interpretation_failed"
)

// PipelineError is a stage failure converted to the caller taxonomy.
type PipelineError struct {
	Category   ErrorCategory `json:"category"`
	Message    string        `json:"message"`
	Suggestion string        `json:"suggestion,omitempty"`
	// SQL is the statement that was generated before the failure, if any.
	SQL string `json:"sql,omitempty"`
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// PipelineState is a step of the request state machine.
type PipelineState string

const (
	StateStart         PipelineState = "start"
	StateSafetyChecked PipelineState = "safety_checked"
	StateIntentKnown   PipelineState = "intent_known"
	StateSQLGenerated  PipelineState = "sql_generated"
	StateQueryExecuted PipelineState = "query_executed"
	StateResponseBuilt PipelineState = "response_built"
	StateFailed        PipelineState = "failed"
)

var stateSuccessor = map[PipelineState]PipelineState{
	StateStart:         StateSafetyChecked,
	StateSafetyChecked: StateIntentKnown,
	StateIntentKnown:   StateSQLGenerated,
	StateSQLGenerated:  StateQueryExecuted,
	StateQueryExecuted: StateResponseBuilt,
}

// Terminal reports whether no further transition is possible.
func (s PipelineState) Terminal() bool {
	return s == StateResponseBuilt || s == StateFailed
}

// CanTransition reports whether to is reachable from s in one step.
// Every non-terminal state may move to StateFailed.
func (s PipelineState) CanTransition(to PipelineState) bool {
	if s.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return stateSuccessor[s] == to
}

// SafetyReport surfaces the safety gate's decision for observability.
type SafetyReport struct {
	Blocked         bool     `json:"blocked"`
	Reason          string   `json:"reason"`
	Detail          string   `json:"detail,omitempty"`
	Confidence      float64  `json:"confidence"`
	SafeProbability float64  `json:"safe_probability,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	Errors          []string `json:"errors,omitempty"`
}

// PipelineResult is the terminal envelope for one request. It is built once
// by the orchestrator and not modified afterwards.
type PipelineResult struct {
	RequestID string         `json:"request_id"`
	Success   bool           `json:"success"`
	State     PipelineState  `json:"state"`
	Question  string         `json:"question"`
	Intent    *Intent        `json:"intent,omitempty"`
	Backend   string         `json:"backend,omitempty"`
	SQL       string         `json:"sql,omitempty"`
	Results   *ResultSet     `json:"results,omitempty"`
	Narrative string         `json:"narrative,omitempty"`
	Chart     *ChartSpec     `json:"chart,omitempty"`
	Error     *PipelineError `json:"error,omitempty"`
	Safety    *SafetyReport  `json:"safety,omitempty"`
	Elapsed   time.Duration  `json:"elapsed_ns"`
}

// AskRequest is the caller-facing request.
type AskRequest struct {
	Question string      `json:"question"`
	Force    ForceIntent `json:"force_intent,omitempty"`
	// SpecServiceURL overrides the configured remote chart specification service.
	SpecServiceURL string `json:"spec_service_url,omitempty"`
	// Backend selects a configured store by name; empty uses the default.
	Backend string `json:"backend,omitempty"`
}

// SQLStatement is a validated, read-only, row-bounded SELECT.
type SQLStatement struct {
	Text  string          `json:"sql"`
	Limit int             `json:"limit"`
	Mode  TranslationMode `json:"mode"`
}
