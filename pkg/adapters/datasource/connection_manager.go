package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/apperrors"
)

// Backend is one named store the pipeline may query.
type Backend struct {
	Name   string
	Type   string
	Config map[string]any
}

// ConnectionManager hands out one executor per configured backend. Executors
// are built lazily on first use and at most once per process; a failed build
// is remembered and returned to every later caller.
type ConnectionManager struct {
	mu             sync.Mutex
	backends       map[string]Backend
	handles        map[string]*managedExecutor
	defaultBackend string
	stopped        bool
	logger         *zap.Logger
}

type managedExecutor struct {
	once     sync.Once
	exec     QueryExecutor
	err      error
	lastUsed time.Time
}

// NewConnectionManager validates the backend set. defaultBackend names the
// backend used when a request does not pick one.
func NewConnectionManager(backends []Backend, defaultBackend string, logger *zap.Logger) (*ConnectionManager, error) {
	if len(backends) == 0 {
		return nil, errors.New("at least one store backend is required")
	}

	byName := make(map[string]Backend, len(backends))
	for _, b := range backends {
		if b.Name == "" {
			return nil, errors.New("store backend name is required")
		}
		if _, dup := byName[b.Name]; dup {
			return nil, fmt.Errorf("duplicate store backend %q", b.Name)
		}
		if !IsRegistered(b.Type) {
			return nil, fmt.Errorf("%w: %s (backend %q)", apperrors.ErrUnknownBackend, b.Type, b.Name)
		}
		byName[b.Name] = b
	}

	if defaultBackend == "" {
		defaultBackend = backends[0].Name
	}
	if _, ok := byName[defaultBackend]; !ok {
		return nil, fmt.Errorf("%w: default %q is not configured", apperrors.ErrUnknownBackend, defaultBackend)
	}

	return &ConnectionManager{
		backends:       byName,
		handles:        make(map[string]*managedExecutor),
		defaultBackend: defaultBackend,
		logger:         logger.Named("connection-manager"),
	}, nil
}

// Resolve maps a requested backend name to a configured one. Empty selects
// the default.
func (m *ConnectionManager) Resolve(name string) (Backend, error) {
	if name == "" {
		name = m.defaultBackend
	}
	b, ok := m.backends[name]
	if !ok {
		return Backend{}, fmt.Errorf("%w: %q", apperrors.ErrUnknownBackend, name)
	}
	return b, nil
}

// Get returns the executor for the named backend, building it on first use.
func (m *ConnectionManager) Get(ctx context.Context, name string) (QueryExecutor, error) {
	b, err := m.Resolve(name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, errors.New("connection manager is closed")
	}
	handle, ok := m.handles[b.Name]
	if !ok {
		handle = &managedExecutor{}
		m.handles[b.Name] = handle
	}
	m.mu.Unlock()

	handle.once.Do(func() {
		handle.exec, handle.err = NewQueryExecutor(ctx, b.Type, b.Config, m.logger)
		if handle.err != nil {
			m.logger.Error("Failed to create store executor",
				zap.String("backend", b.Name),
				zap.String("type", b.Type),
				zap.Error(handle.err))
			return
		}
		m.logger.Info("Store executor ready",
			zap.String("backend", b.Name),
			zap.String("type", b.Type),
			zap.String("dialect", string(handle.exec.Dialect())))
	})
	if handle.err != nil {
		return nil, fmt.Errorf("backend %s: %w", b.Name, handle.err)
	}

	m.mu.Lock()
	handle.lastUsed = time.Now()
	m.mu.Unlock()
	return handle.exec, nil
}

// DefaultBackend returns the name used when a request does not pick one.
func (m *ConnectionManager) DefaultBackend() string {
	return m.defaultBackend
}

// Backends returns the configured backends sorted by name.
func (m *ConnectionManager) Backends() []Backend {
	out := make([]Backend, 0, len(m.backends))
	for _, b := range m.backends {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close closes every executor that was built.
// This method is idempotent and safe to call multiple times.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true

	var errs []error
	for name, handle := range m.handles {
		if handle.exec == nil {
			continue
		}
		if err := handle.exec.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	m.handles = make(map[string]*managedExecutor)
	m.logger.Info("connection manager closed")
	return errors.Join(errs...)
}

// GetStats returns statistics about the connection manager.
// Safe to call concurrently.
func (m *ConnectionManager) GetStats() ConnectionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	stats := ConnectionStats{
		Configured:     len(m.backends),
		DefaultBackend: m.defaultBackend,
		IdleSeconds:    make(map[string]int),
	}
	for name, handle := range m.handles {
		if handle.exec == nil {
			continue
		}
		stats.Initialized++
		stats.IdleSeconds[name] = int(now.Sub(handle.lastUsed).Seconds())
	}
	return stats
}

// ConnectionStats contains statistics about the connection manager state.
type ConnectionStats struct {
	Configured     int            `json:"configured"`
	Initialized    int            `json:"initialized"`
	DefaultBackend string         `json:"default_backend"`
	IdleSeconds    map[string]int `json:"idle_seconds"`
}
