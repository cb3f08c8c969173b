package datasource

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

// BackendGroup is the deployment class of a store.
type BackendGroup string

const (
	// GroupWarehouse is a remote analytical database reached over the network.
	GroupWarehouse BackendGroup = "warehouse"
	// GroupLocal is an embedded database file on this host.
	GroupLocal BackendGroup = "local"
)

// DatasourceAdapterInfo describes a registered adapter.
type DatasourceAdapterInfo struct {
	Type        string          `json:"type"`         // "postgres", "sqlserver", "sqlite", "duckdb"
	DisplayName string          `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
	Description string          `json:"description"`
	Group       BackendGroup    `json:"group"`
	Dialect     sqlutil.Dialect `json:"dialect"`
}

// QueryExecutorFactory builds an executor from a generic config map. It must
// not connect; connections are acquired per Query.
type QueryExecutorFactory func(ctx context.Context, config map[string]any, logger *zap.Logger) (QueryExecutor, error)

// DatasourceAdapterRegistration contains info + factory for creating executors.
type DatasourceAdapterRegistration struct {
	Info                 DatasourceAdapterInfo
	QueryExecutorFactory QueryExecutorFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DatasourceAdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg DatasourceAdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []DatasourceAdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DatasourceAdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetQueryExecutorFactory returns the factory for a datasource type.
// Returns nil if type is not registered.
func GetQueryExecutorFactory(dsType string) QueryExecutorFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.QueryExecutorFactory
	}
	return nil
}

// GetInfo returns the registration info for a datasource type.
func GetInfo(dsType string) (DatasourceAdapterInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	reg, ok := registry[dsType]
	return reg.Info, ok
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}
