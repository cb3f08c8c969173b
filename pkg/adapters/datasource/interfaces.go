package datasource

import (
	"context"

	"github.com/ekaya-inc/herdwise/pkg/models"
	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

// ConnectionTester tests database connectivity.
// Each implementation owns its connection handle and must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the store is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	// Close releases the underlying handle.
	Close() error
}

// QueryExecutor runs generated statements against one store.
type QueryExecutor interface {
	ConnectionTester

	// Dialect is the SQL flavor the store accepts. Statements are rewritten
	// onto it before Query is called.
	Dialect() sqlutil.Dialect

	// Query acquires one connection, runs exactly one statement, materializes
	// every row and releases the connection before returning. Failures are
	// returned as *Error.
	Query(ctx context.Context, statement string) (*models.ResultSet, error)
}

// RecordLoader is implemented by stores that can be bootstrapped with the
// fact table and loaded with records.
type RecordLoader interface {
	// EnsureSchema applies the embedded migrations that create swine_alert.
	EnsureSchema(ctx context.Context) error

	// InsertRecords writes records in one transaction and returns how many
	// were written.
	InsertRecords(ctx context.Context, records []*models.AnalyticsRecord) (int, error)
}
