package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
	"github.com/ekaya-inc/herdwise/pkg/logging"
	"github.com/ekaya-inc/herdwise/pkg/models"
	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

// ExecutorProvider hands out store executors by backend name.
// *datasource.ConnectionManager satisfies it.
type ExecutorProvider interface {
	Resolve(name string) (datasource.Backend, error)
	Get(ctx context.Context, name string) (datasource.QueryExecutor, error)
}

var _ ExecutorProvider = (*datasource.ConnectionManager)(nil)

// Execution is the outcome of running one statement.
type Execution struct {
	Backend string
	Dialect sqlutil.Dialect
	// SQL is the statement as sent to the store, after dialect rewriting.
	SQL string
	// Rewrites names the dialect rules that fired.
	Rewrites []string
	Results  *models.ResultSet
}

// QueryExecutorService runs validated statements against a configured store.
type QueryExecutorService interface {
	// Execute rewrites sql for the backend's dialect and runs it. An empty
	// backend selects the default. Errors are *datasource.Error values so
	// callers can separate SQL failures from connectivity failures. Zero
	// rows is not an error here.
	Execute(ctx context.Context, sql string, backend string) (*Execution, error)
}

type queryExecutorService struct {
	provider ExecutorProvider
	logger   *zap.Logger
}

// NewQueryExecutorService creates an executor over provider.
func NewQueryExecutorService(provider ExecutorProvider, logger *zap.Logger) QueryExecutorService {
	return &queryExecutorService{
		provider: provider,
		logger:   logger.Named("executor"),
	}
}

var _ QueryExecutorService = (*queryExecutorService)(nil)

func (s *queryExecutorService) Execute(ctx context.Context, sql string, backend string) (*Execution, error) {
	if err := sqlutil.EnsureReadOnly(sql); err != nil {
		return nil, datasource.NewSQLError(backend, err)
	}

	target, err := s.provider.Resolve(backend)
	if err != nil {
		return nil, err
	}

	exec, err := s.provider.Get(ctx, target.Name)
	if err != nil {
		var storeErr *datasource.Error
		if errors.As(err, &storeErr) {
			return nil, err
		}
		// A store that cannot be built cannot be reached.
		return nil, datasource.NewConnectivityError(target.Type, err)
	}

	statement, rewrites := sqlutil.Rewrite(sql, exec.Dialect())
	if len(rewrites) > 0 {
		s.logger.Debug("Rewrote statement for backend dialect",
			zap.String("backend", target.Name),
			zap.String("dialect", string(exec.Dialect())),
			zap.Strings("rules", rewrites))
	}

	start := time.Now()
	rs, err := exec.Query(ctx, statement)
	if err != nil {
		err = datasource.ClassifyError(target.Type, err)
		s.logger.Warn("Query failed",
			zap.String("backend", target.Name),
			zap.String("sql", logging.SanitizeQuery(statement)),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}
	if rs == nil {
		return nil, datasource.NewSQLError(target.Type, fmt.Errorf("store returned no result set"))
	}

	s.logger.Info("Query executed",
		zap.String("backend", target.Name),
		zap.Int("rows", rs.RowCount()),
		zap.Duration("elapsed", time.Since(start)))

	return &Execution{
		Backend:  target.Name,
		Dialect:  exec.Dialect(),
		SQL:      statement,
		Rewrites: rewrites,
		Results:  rs,
	}, nil
}
