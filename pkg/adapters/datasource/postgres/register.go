package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

// Type is the registry key of this adapter.
const Type = "postgres"

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        Type,
			DisplayName: "PostgreSQL",
			Description: "PostgreSQL 12+ warehouse, including Aurora and Supabase",
			Group:       datasource.GroupWarehouse,
			Dialect:     sqlutil.DialectPostgres,
		},
		QueryExecutorFactory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.QueryExecutor, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, logger)
		},
	})
}
