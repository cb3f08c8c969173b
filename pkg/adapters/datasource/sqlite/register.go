package sqlite

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

// Type is the registry key of this adapter.
const Type = "sqlite"

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        Type,
			DisplayName: "SQLite",
			Description: "Local SQLite file, used when the warehouse is unreachable",
			Group:       datasource.GroupLocal,
			Dialect:     sqlutil.DialectSQLite,
		},
		QueryExecutorFactory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.QueryExecutor, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(cfg, logger)
		},
	})
}
