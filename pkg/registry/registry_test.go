package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightloop/glean/pkg/models"
	"github.com/insightloop/glean/pkg/repository"
)

// fakeConnectionStore resolves connections from a fixed map and enforces
// ownership the way the repository does.
type fakeConnectionStore struct {
	connections map[int64]*models.Connection
}

func (f *fakeConnectionStore) GetConnection(_ context.Context, connectionID, ownerID int64) (*models.Connection, error) {
	conn, ok := f.connections[connectionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if conn.OwnerID != ownerID {
		return nil, repository.ErrNotOwned
	}
	return conn, nil
}

func redisConnection(id, ownerID int64) *models.Connection {
	return &models.Connection{
		ID:      id,
		OwnerID: ownerID,
		Name:    "cache",
		Kind:    models.KindRedis,
		Host:    "localhost",
		Port:    6379,
	}
}

func TestGetDataSource_CachesAdapterPerConnection(t *testing.T) {
	r := New(&fakeConnectionStore{})
	conn := redisConnection(1, 10)

	first, err := r.GetDataSource(context.Background(), conn)
	require.NoError(t, err)
	second, err := r.GetDataSource(context.Background(), conn)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Size())
}

func TestGetDataSource_UnknownKindFails(t *testing.T) {
	r := New(&fakeConnectionStore{})
	conn := &models.Connection{ID: 2, OwnerID: 10, Kind: models.SourceKind("KAFKA")}

	_, err := r.GetDataSource(context.Background(), conn)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownSourceKind)
	assert.Equal(t, 0, r.Size())
}

func TestGetDataSourceByConnectionID_EnforcesOwnership(t *testing.T) {
	store := &fakeConnectionStore{connections: map[int64]*models.Connection{
		1: redisConnection(1, 10),
	}}
	r := New(store)

	adapter, err := r.GetDataSourceByConnectionID(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "cache", adapter.Name())

	_, err = r.GetDataSourceByConnectionID(context.Background(), 1, 99)
	assert.ErrorIs(t, err, repository.ErrNotOwned)

	_, err = r.GetDataSourceByConnectionID(context.Background(), 404, 10)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestClearCache_EvictsAdapter(t *testing.T) {
	r := New(&fakeConnectionStore{})
	conn := redisConnection(1, 10)

	first, err := r.GetDataSource(context.Background(), conn)
	require.NoError(t, err)
	require.Equal(t, 1, r.Size())

	r.ClearCache(1)
	assert.Equal(t, 0, r.Size())

	second, err := r.GetDataSource(context.Background(), conn)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestClose_EmptiesCache(t *testing.T) {
	r := New(&fakeConnectionStore{})
	_, err := r.GetDataSource(context.Background(), redisConnection(1, 10))
	require.NoError(t, err)
	_, err = r.GetDataSource(context.Background(), redisConnection(2, 10))
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.Equal(t, 0, r.Size())
}
