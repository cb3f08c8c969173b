package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	duckdb "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
	"github.com/ekaya-inc/herdwise/pkg/models"
	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

// Adapter provides access to a local DuckDB file.
//
// The driver creates the file as soon as a handle is opened, so the handle is
// opened lazily: queries against a missing file fail instead of answering
// from an empty database.
type Adapter struct {
	config *Config
	logger *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

// NewAdapter validates the config. Nothing is opened until first use.
func NewAdapter(cfg *Config, logger *zap.Logger) (*Adapter, error) {
	return &Adapter{
		config: cfg,
		logger: logger.Named("duckdb"),
	}, nil
}

// Dialect implements datasource.QueryExecutor.
func (a *Adapter) Dialect() sqlutil.Dialect {
	return sqlutil.DialectDuckDB
}

func (a *Adapter) handle(create bool) (*sql.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil {
		return a.db, nil
	}
	if !create {
		if err := datasource.CheckLocalFile(Type, a.config.Path); err != nil {
			return nil, err
		}
	} else if err := os.MkdirAll(filepath.Dir(a.config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("duckdb", a.config.DSN())
	if err != nil {
		return nil, datasource.NewConnectivityError(Type, fmt.Errorf("open duckdb: %w", err))
	}
	a.db = db
	return db, nil
}

// TestConnection verifies the file exists and holds the fact table.
func (a *Adapter) TestConnection(ctx context.Context) error {
	db, err := a.handle(false)
	if err != nil {
		return err
	}

	var n int
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", models.SwineAlertTable).Scan(&n)
	if err != nil {
		return datasource.ClassifyError(Type, err)
	}
	if n == 0 {
		return datasource.NewConnectivityError(Type, fmt.Errorf("%s has no %s table (run bootstrap first)", a.config.Path, models.SwineAlertTable))
	}
	return nil
}

// Query implements datasource.QueryExecutor.
func (a *Adapter) Query(ctx context.Context, statement string) (*models.ResultSet, error) {
	db, err := a.handle(false)
	if err != nil {
		return nil, err
	}

	rs, err := datasource.QueryConn(ctx, db, Type, statement)
	if err != nil {
		return nil, err
	}
	for _, row := range rs.Rows {
		for col, v := range row {
			row[col] = normalizeValue(v)
		}
	}
	return rs, nil
}

// EnsureSchema implements datasource.RecordLoader. It creates the file and
// its parent directory when missing.
func (a *Adapter) EnsureSchema(ctx context.Context) error {
	db, err := a.handle(true)
	if err != nil {
		return err
	}

	applied, err := newMigrationRunner(db).Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if applied == 0 {
		a.logger.Info("No migrations to apply (database up-to-date)", zap.String("path", a.config.Path))
		return nil
	}
	a.logger.Info("Applied migrations successfully",
		zap.String("path", a.config.Path),
		zap.Int("applied", applied))
	return nil
}

// InsertRecords implements datasource.RecordLoader.
func (a *Adapter) InsertRecords(ctx context.Context, records []*models.AnalyticsRecord) (int, error) {
	db, err := a.handle(false)
	if err != nil {
		return 0, err
	}
	return datasource.InsertRecords(ctx, db, Type, datasource.QuestionPlaceholders, records)
}

// Close releases the database handle if one was opened.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// normalizeValue converts DuckDB-specific values. DECIMAL arrives as
// duckdb.Decimal and SUM over BIGINT as a HUGEINT *big.Int.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case duckdb.Decimal:
		return val.Float64()
	case *big.Int:
		if val.IsInt64() {
			return val.Int64()
		}
		return val.String()
	default:
		return v
	}
}

// Ensure Adapter implements the store interfaces at compile time.
var (
	_ datasource.QueryExecutor = (*Adapter)(nil)
	_ datasource.RecordLoader  = (*Adapter)(nil)
)
