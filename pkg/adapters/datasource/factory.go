package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/apperrors"
)

// NewQueryExecutor creates an executor for the given datasource type from the
// global registry.
func NewQueryExecutor(ctx context.Context, dsType string, config map[string]any, logger *zap.Logger) (QueryExecutor, error) {
	factory := GetQueryExecutorFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("%w: %s (not compiled in)", apperrors.ErrUnknownBackend, dsType)
	}
	return factory(ctx, config, logger)
}
