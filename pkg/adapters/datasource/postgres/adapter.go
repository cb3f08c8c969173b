package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
	"github.com/ekaya-inc/herdwise/pkg/logging"
	"github.com/ekaya-inc/herdwise/pkg/models"
	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Adapter provides PostgreSQL connectivity.
type Adapter struct {
	config *Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewAdapter creates a PostgreSQL adapter. The pool connects lazily, so a
// misconfigured or unreachable host surfaces on the first Query.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %s", logging.SanitizeError(err))
	}
	poolCfg.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	return &Adapter{
		config: cfg,
		pool:   pool,
		logger: logger.Named("postgres"),
	}, nil
}

// Dialect implements datasource.QueryExecutor.
func (a *Adapter) Dialect() sqlutil.Dialect {
	return sqlutil.DialectPostgres
}

// TestConnection verifies the database is reachable with valid credentials.
// It checks:
// 1. Server connectivity (ping)
// 2. Correct database name (to prevent connecting to wrong/default database)
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return classify(fmt.Errorf("ping failed: %w", err))
	}

	var currentDB string
	if err := a.pool.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
		return classify(fmt.Errorf("failed to get current database name: %w", err))
	}

	// PostgreSQL database names are case-sensitive, but configuration typos
	// in case are common enough to accept.
	if !strings.EqualFold(currentDB, a.config.Database) {
		return datasource.NewConnectivityError(Type,
			fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB))
	}
	return nil
}

// Query implements datasource.QueryExecutor.
func (a *Adapter) Query(ctx context.Context, statement string) (*models.ResultSet, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, statement)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	rs := &models.ResultSet{
		Columns: make([]string, len(fieldDescs)),
		Rows:    make([]map[string]any, 0),
	}
	for i, fd := range fieldDescs {
		rs.Columns[i] = fd.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, classify(fmt.Errorf("failed to read row values: %w", err))
		}

		row := make(map[string]any, len(rs.Columns))
		for i, col := range rs.Columns {
			row[col] = normalizeValue(values[i])
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	return rs, nil
}

// EnsureSchema implements datasource.RecordLoader.
func (a *Adapter) EnsureSchema(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(a.pool)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return classify(err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	return datasource.RunMigrations(Type, driver, migrations, "migrations", a.logger)
}

// InsertRecords implements datasource.RecordLoader.
func (a *Adapter) InsertRecords(ctx context.Context, records []*models.AnalyticsRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	var written int
	err := pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			stmt, args := datasource.BuildInsert(rec, datasource.DollarPlaceholders)
			batch.Queue(stmt, args...)
		}

		results := tx.SendBatch(ctx, batch)
		for i, rec := range records {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("insert record %d (%s): %w", i, rec.UniqueID, err)
			}
			written++
		}
		return results.Close()
	})
	if err != nil {
		return 0, classify(err)
	}
	return written, nil
}

// Close releases the pool.
func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

// classify maps pgx failures onto the store taxonomy. SQLSTATE classes 08
// (connection exception), 28 (invalid authorization), 3D (unknown database)
// and 53/57 (resources, operator intervention) mean the store is not usable
// right now; everything else the server reports is a statement error.
func classify(err error) error {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return datasource.NewConnectivityError(Type, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "28"),
			strings.HasPrefix(pgErr.Code, "3D"),
			strings.HasPrefix(pgErr.Code, "53"),
			strings.HasPrefix(pgErr.Code, "57"):
			return datasource.NewConnectivityError(Type, err)
		default:
			return datasource.NewSQLError(Type, err)
		}
	}

	return datasource.ClassifyError(Type, err)
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return datasource.NormalizeValue(v)
	}
}

// Ensure Adapter implements the store interfaces at compile time.
var (
	_ datasource.QueryExecutor = (*Adapter)(nil)
	_ datasource.RecordLoader  = (*Adapter)(nil)
)
