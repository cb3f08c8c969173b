// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/logging"
	"github.com/ekaya-inc/herdwise/pkg/models"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventRequestBlocked is logged when the safety gate refuses a question.
	EventRequestBlocked SecurityEventType = "request_blocked"
	// EventUnsafeSQL is logged when generated SQL fails the read-only or
	// injection checks.
	EventUnsafeSQL SecurityEventType = "unsafe_sql_rejected"
	// EventQueryExecution is logged for successful query execution (high volume, debug level).
	EventQueryExecution SecurityEventType = "query_execution"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis. Questions are recorded by hash only.
type SecurityEvent struct {
	Timestamp    time.Time         `json:"timestamp"`
	EventType    SecurityEventType `json:"event_type"`
	RequestID    string            `json:"request_id"`
	QuestionHash string            `json:"question_hash"`
	Details      any               `json:"details"`
	Severity     string            `json:"severity"` // info, warning, critical
}

// BlockDetails describes a safety gate refusal.
type BlockDetails struct {
	Reason     string   `json:"reason"`
	Confidence float64  `json:"confidence"`
	Categories []string `json:"categories,omitempty"`
	// Errors lists classifier failures that led to a fail-closed block.
	Errors []string `json:"errors,omitempty"`
}

// UnsafeSQLDetails describes a rejected statement.
type UnsafeSQLDetails struct {
	SQL   string `json:"sql"`
	Error string `json:"error"`
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is automatically configured with "security_audit" namespace for easy
// filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// QuestionHash fingerprints a question so repeated attempts can be correlated
// without logging the text.
func QuestionHash(question string) string {
	hash := sha256.Sum256([]byte(question))
	return "sha256:" + hex.EncodeToString(hash[:8])
}

// LogRequestBlocked records a question refused by the safety gate.
// Fail-closed blocks caused by classifier errors are logged at WARN with
// "warning" severity; classifier verdicts are "critical".
func (a *SecurityAuditor) LogRequestBlocked(requestID, question string, report *models.SafetyReport) {
	if report == nil {
		return
	}
	severity := "critical"
	if len(report.Errors) > 0 && report.Confidence == 0 {
		severity = "warning"
	}

	details := BlockDetails{
		Reason:     report.Reason,
		Confidence: report.Confidence,
		Categories: report.Categories,
		Errors:     report.Errors,
	}
	event := a.event(EventRequestBlocked, requestID, question, details, severity)

	fields := []zap.Field{
		zap.String("event_json", event),
		zap.String("request_id", requestID),
		zap.String("reason", report.Reason),
		zap.Float64("confidence", report.Confidence),
		zap.Strings("categories", report.Categories),
		zap.String("severity", severity),
	}
	if severity == "critical" {
		a.logger.Error("Request blocked by safety gate", fields...)
	} else {
		a.logger.Warn("Request blocked by safety gate", fields...)
	}
}

// LogUnsafeSQL records a generated statement that failed validation.
// This is logged at WARN level: the model, not the caller, produced it.
func (a *SecurityAuditor) LogUnsafeSQL(requestID, question, statement string, err error) {
	details := UnsafeSQLDetails{
		SQL:   logging.SanitizeQuery(statement),
		Error: logging.SanitizeError(err),
	}
	event := a.event(EventUnsafeSQL, requestID, question, details, "warning")

	a.logger.Warn("Generated SQL rejected",
		zap.String("event_json", event),
		zap.String("request_id", requestID),
		zap.String("error", details.Error),
		zap.String("severity", "warning"),
	)
}

// LogQueryExecution records a successful query execution for audit trail.
// Logged at DEBUG level because it fires for every answered question.
func (a *SecurityAuditor) LogQueryExecution(requestID, question, backend string, rows int) {
	if ce := a.logger.Check(zap.DebugLevel, "Query executed"); ce != nil {
		event := a.event(EventQueryExecution, requestID, question, map[string]any{
			"backend": backend,
			"rows":    rows,
		}, "info")
		ce.Write(
			zap.String("event_json", event),
			zap.String("request_id", requestID),
			zap.String("backend", backend),
			zap.Int("rows", rows),
			zap.String("severity", "info"),
		)
	}
}

func (a *SecurityAuditor) event(eventType SecurityEventType, requestID, question string, details any, severity string) string {
	event := SecurityEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    eventType,
		RequestID:    requestID,
		QuestionHash: QuestionHash(question),
		Details:      details,
		Severity:     severity,
	}
	// Marshaling known types does not fail.
	eventJSON, _ := json.Marshal(event)
	return string(eventJSON)
}
