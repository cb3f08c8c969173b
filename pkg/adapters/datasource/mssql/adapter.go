package mssql

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	migratemssql "github.com/golang-migrate/migrate/v4/database/sqlserver"
	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support
	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
	"github.com/ekaya-inc/herdwise/pkg/models"
	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Adapter provides SQL Server connectivity with SQL or Azure AD service
// principal authentication.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// NewAdapter opens the database handle. sql.Open does not dial, so an
// unreachable server surfaces on the first Query.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	db, err := sql.Open(cfg.DriverName(), cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", cfg.AuthMethod, err)
	}

	return &Adapter{
		config: cfg,
		db:     db,
		logger: logger.Named("mssql"),
	}, nil
}

// Dialect implements datasource.QueryExecutor.
func (a *Adapter) Dialect() sqlutil.Dialect {
	return sqlutil.DialectSQLServer
}

// TestConnection verifies the database is reachable with valid credentials
// and that the login landed in the configured database.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return classify(fmt.Errorf("ping failed: %w", err))
	}

	var currentDB string
	if err := a.db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&currentDB); err != nil {
		return classify(fmt.Errorf("test query failed: %w", err))
	}
	if !strings.EqualFold(currentDB, a.config.Database) {
		return datasource.NewConnectivityError(Type,
			fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB))
	}
	return nil
}

// Query implements datasource.QueryExecutor.
func (a *Adapter) Query(ctx context.Context, statement string) (*models.ResultSet, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, statement)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get column types: %w", err))
	}

	rs := &models.ResultSet{
		Columns: make([]string, len(columnTypes)),
		Rows:    make([]map[string]any, 0),
	}
	for i, ct := range columnTypes {
		rs.Columns[i] = ct.Name()
	}

	for rows.Next() {
		values := make([]any, len(columnTypes))
		ptrs := make([]any, len(columnTypes))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classify(fmt.Errorf("failed to scan row: %w", err))
		}

		row := make(map[string]any, len(columnTypes))
		for i, ct := range columnTypes {
			row[ct.Name()] = convertValue(ct.DatabaseTypeName(), values[i])
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	return rs, nil
}

// EnsureSchema implements datasource.RecordLoader. golang-migrate closes the
// handle it is given, so migrations run on a dedicated one.
func (a *Adapter) EnsureSchema(ctx context.Context) error {
	db, err := sql.Open(a.config.DriverName(), a.config.ConnectionString())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return classify(err)
	}

	driver, err := migratemssql.WithInstance(db, &migratemssql.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	return datasource.RunMigrations(Type, driver, migrations, "migrations", a.logger)
}

// InsertRecords implements datasource.RecordLoader.
func (a *Adapter) InsertRecords(ctx context.Context, records []*models.AnalyticsRecord) (int, error) {
	return datasource.InsertRecords(ctx, a.db, Type, datasource.AtPPlaceholders, records)
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
