package mssql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

// Type is the registry key of this adapter.
const Type = "sqlserver"

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        Type,
			DisplayName: "Microsoft SQL Server",
			Description: "SQL Server 2016+ and Azure SQL warehouse",
			Group:       datasource.GroupWarehouse,
			Dialect:     sqlutil.DialectSQLServer,
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
