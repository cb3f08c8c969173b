package duckdb

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

// Type is the registry key of this adapter.
const Type = "duckdb"

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        Type,
			DisplayName: "DuckDB",
			Description: "Local DuckDB file for offline analytics",
			Group:       datasource.GroupLocal,
			Dialect:     sqlutil.DialectDuckDB,
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
