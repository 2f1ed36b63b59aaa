package storage

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"chainnotes/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRepository records how often lookups reach the backing store.
type countingRepository struct {
	Repository
	finds atomic.Int32
}

func (r *countingRepository) FindLabel(ctx context.Context, userID, label string) (domain.LabeledText, bool, error) {
	r.finds.Add(1)
	return r.Repository.FindLabel(ctx, userID, label)
}

func newCachedTestRepo(t *testing.T, ttl time.Duration) (*CachedRepository, *countingRepository, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	sqliteRepo, err := Open("sqlite::memory:")
	require.NoError(t, err)
	base := &countingRepository{Repository: sqliteRepo}
	repo, err := NewCachedRepository(base, CacheConfig{Addr: server.Addr(), TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, base, server
}

func labeled(userID, label, cid string) domain.LabeledText {
	return domain.LabeledText{UserID: userID, Label: label, CID: cid, CreatedAt: time.Unix(1704067200, 0).UTC()}
}

func TestCachedRepositoryMissFillsThenHits(t *testing.T) {
	repo, base, server := newCachedTestRepo(t, 10*time.Minute)
	ctx := context.Background()
	require.True(t, repo.Enabled())

	// Written straight to the backing store so the cache starts cold.
	require.NoError(t, base.Repository.SaveLabel(ctx, labeled("u1", "note", "bafkreinote")))
	key := labelCacheKey("u1", "note")
	assert.False(t, server.Exists(key))

	found, ok, err := repo.FindLabel(ctx, "u1", "note")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bafkreinote", found.CID)
	assert.EqualValues(t, 1, base.finds.Load())
	require.True(t, server.Exists(key))
	assert.Equal(t, 10*time.Minute, server.TTL(key))

	found, ok, err = repo.FindLabel(ctx, "u1", "note")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bafkreinote", found.CID)
	assert.EqualValues(t, 1, base.finds.Load())
}

func TestBackendReportsEnabledCache(t *testing.T) {
	server := miniredis.RunT(t)
	base, err := Open("sqlite::memory:")
	require.NoError(t, err)
	repo, err := NewCachedRepository(base, CacheConfig{Addr: server.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	assert.Equal(t, "sqlite+redis", Backend(repo))
}

func TestCachedRepositoryDoesNotCacheMisses(t *testing.T) {
	repo, base, server := newCachedTestRepo(t, 0)
	ctx := context.Background()

	_, ok, err := repo.FindLabel(ctx, "u1", "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, server.Exists(labelCacheKey("u1", "absent")))

	_, _, err = repo.FindLabel(ctx, "u1", "absent")
	require.NoError(t, err)
	assert.EqualValues(t, 2, base.finds.Load())
}

func TestCachedRepositorySaveWritesThrough(t *testing.T) {
	repo, base, server := newCachedTestRepo(t, 0)
	ctx := context.Background()

	require.NoError(t, repo.SaveLabel(ctx, labeled("u1", "todo", "bafkreitodo")))

	key := labelCacheKey("u1", "todo")
	raw, err := server.Get(key)
	require.NoError(t, err)
	var cached domain.LabeledText
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, "bafkreitodo", cached.CID)
	assert.Equal(t, defaultCacheTTL, server.TTL(key))

	found, ok, err := repo.FindLabel(ctx, "u1", "todo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bafkreitodo", found.CID)
	assert.Zero(t, base.finds.Load())

	// A rejected duplicate leaves the cached mapping alone.
	assert.ErrorIs(t, repo.SaveLabel(ctx, labeled("u1", "todo", "bafkreiother")), domain.ErrLabelExists)
	raw, err = server.Get(key)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, "bafkreitodo", cached.CID)
}

func TestCachedRepositoryKeysArePerUser(t *testing.T) {
	repo, _, server := newCachedTestRepo(t, 0)
	ctx := context.Background()

	require.NoError(t, repo.SaveLabel(ctx, labeled("u1", "shared", "bafkreione")))
	require.NoError(t, repo.SaveLabel(ctx, labeled("u2", "shared", "bafkreitwo")))
	assert.ElementsMatch(t, []string{labelCacheKey("u1", "shared"), labelCacheKey("u2", "shared")}, server.Keys())

	one, ok, err := repo.FindLabel(ctx, "u1", "shared")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bafkreione", one.CID)

	two, ok, err := repo.FindLabel(ctx, "u2", "shared")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bafkreitwo", two.CID)

	_, ok, err = repo.FindLabel(ctx, "u3", "shared")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedRepositoryIgnoresUnreadableEntries(t *testing.T) {
	repo, base, server := newCachedTestRepo(t, 0)
	ctx := context.Background()

	require.NoError(t, base.Repository.SaveLabel(ctx, labeled("u1", "note", "bafkreinote")))
	require.NoError(t, server.Set(labelCacheKey("u1", "note"), "{not json"))

	found, ok, err := repo.FindLabel(ctx, "u1", "note")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bafkreinote", found.CID)
	assert.EqualValues(t, 1, base.finds.Load())
}
