package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
	"github.com/ekaya-inc/herdwise/pkg/models"
	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Adapter provides access to a local SQLite file.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// NewAdapter opens the database handle without touching the file.
func NewAdapter(cfg *Config, logger *zap.Logger) (*Adapter, error) {
	db, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &Adapter{
		config: cfg,
		db:     db,
		logger: logger.Named("sqlite"),
	}, nil
}

// Dialect implements datasource.QueryExecutor.
func (a *Adapter) Dialect() sqlutil.Dialect {
	return sqlutil.DialectSQLite
}

// TestConnection verifies the file exists and holds the fact table.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := datasource.CheckLocalFile(Type, a.config.Path); err != nil {
		return err
	}

	var name string
	err := a.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", models.SwineAlertTable).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return datasource.NewConnectivityError(Type, fmt.Errorf("%s has no %s table (run bootstrap first)", a.config.Path, models.SwineAlertTable))
	}
	if err != nil {
		return datasource.ClassifyError(Type, err)
	}
	return nil
}

// Query implements datasource.QueryExecutor.
func (a *Adapter) Query(ctx context.Context, statement string) (*models.ResultSet, error) {
	if err := datasource.CheckLocalFile(Type, a.config.Path); err != nil {
		return nil, err
	}
	return datasource.QueryConn(ctx, a.db, Type, statement)
}

// EnsureSchema implements datasource.RecordLoader. It creates the file and
// its parent directory when missing.
func (a *Adapter) EnsureSchema(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(a.config.Path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	// golang-migrate closes the handle it is given, so migrations run on a
	// dedicated one.
	db, err := sql.Open("sqlite", a.config.DSN())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return datasource.ClassifyError(Type, err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	return datasource.RunMigrations(Type, driver, migrations, "migrations", a.logger)
}

// InsertRecords implements datasource.RecordLoader.
func (a *Adapter) InsertRecords(ctx context.Context, records []*models.AnalyticsRecord) (int, error) {
	if err := datasource.CheckLocalFile(Type, a.config.Path); err != nil {
		return 0, err
	}
	return datasource.InsertRecords(ctx, a.db, Type, datasource.QuestionPlaceholders, records)
}

// Close releases the database handle.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Ensure Adapter implements the store interfaces at compile time.
var (
	_ datasource.QueryExecutor = (*Adapter)(nil)
	_ datasource.RecordLoader  = (*Adapter)(nil)
)
