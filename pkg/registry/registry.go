// Package registry resolves connection records to cached data-source
// adapters, enforcing ownership and owning adapter lifecycle.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/insightloop/glean/pkg/datasource"
	"github.com/insightloop/glean/pkg/models"
	"github.com/insightloop/glean/pkg/repository"
)

// ErrUnknownSourceKind indicates a connection kind with no adapter mapping.
var ErrUnknownSourceKind = errors.New("UNKNOWN_SOURCE_KIND")

// Registry caches one adapter per connection id. Adapters are owned
// exclusively by the registry; callers borrow references per request.
type Registry struct {
	store repository.ConnectionStore

	mu       sync.RWMutex
	adapters map[int64]datasource.Adapter
}

// New creates a Registry over the connection store.
func New(store repository.ConnectionStore) *Registry {
	return &Registry{
		store:    store,
		adapters: make(map[int64]datasource.Adapter),
	}
}

// GetDataSource returns the cached adapter for a connection record,
// creating one on miss. Creation is insert-if-absent: a racing duplicate
// is closed and the winner kept, so creation stays idempotent.
func (r *Registry) GetDataSource(ctx context.Context, conn *models.Connection) (datasource.Adapter, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[conn.ID]
	r.mu.RUnlock()
	if ok {
		return adapter, nil
	}

	created, err := r.createAdapter(ctx, conn)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.adapters[conn.ID]; ok {
		r.mu.Unlock()
		if err := created.Close(); err != nil {
			slog.Debug("Failed to close duplicate adapter", "connection_id", conn.ID, "error", err)
		}
		return existing, nil
	}
	r.adapters[conn.ID] = created
	r.mu.Unlock()

	return created, nil
}

// GetDataSourceByConnectionID resolves the connection via the repository
// with ownership enforcement, then returns the adapter.
func (r *Registry) GetDataSourceByConnectionID(ctx context.Context, connectionID, ownerID int64) (datasource.Adapter, error) {
	conn, err := r.store.GetConnection(ctx, connectionID, ownerID)
	if err != nil {
		return nil, err
	}
	return r.GetDataSource(ctx, conn)
}

func (r *Registry) createAdapter(ctx context.Context, conn *models.Connection) (datasource.Adapter, error) {
	switch {
	case conn.Kind.IsRelational():
		return datasource.NewSQLAdapter(conn)
	case conn.Kind == models.KindMongoDB:
		return datasource.NewMongoAdapter(ctx, conn)
	case conn.Kind == models.KindElasticsearch:
		return datasource.NewESAdapter(conn), nil
	case conn.Kind == models.KindRedis:
		return datasource.NewRedisAdapter(conn), nil
	case conn.Kind == models.KindMCP:
		return datasource.NewMCPAdapter(conn), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSourceKind, conn.Kind)
	}
}

// ClearCache evicts the adapter for a connection, closing its handles.
// Used when a connection's configuration changes.
func (r *Registry) ClearCache(connectionID int64) {
	r.mu.Lock()
	adapter, ok := r.adapters[connectionID]
	if ok {
		delete(r.adapters, connectionID)
	}
	r.mu.Unlock()

	if ok {
		if err := adapter.Close(); err != nil {
			slog.Warn("Failed to close evicted adapter",
				"connection_id", connectionID, "error", err)
		}
	}
}

// Size returns the number of cached adapters.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// Close evicts every adapter, closing underlying handles.
func (r *Registry) Close() error {
	r.mu.Lock()
	adapters := r.adapters
	r.adapters = make(map[int64]datasource.Adapter)
	r.mu.Unlock()

	var firstErr error
	for id, adapter := range adapters {
		if err := adapter.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close adapter %d: %w", id, err)
		}
	}
	return firstErr
}
