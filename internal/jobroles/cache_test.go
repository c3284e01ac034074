package jobroles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheConcurrentGetFetchesOnce(t *testing.T) {
	var fetches atomic.Int32
	release := make(chan struct{})
	cache := NewCache(func(ctx context.Context, token string) ([]string, error) {
		fetches.Add(1)
		<-release
		return []string{"Backend Developer", "SRE"}, nil
	}, nil)

	var wg sync.WaitGroup
	results := make([][]string, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			roles, _, err := cache.Get(context.Background(), "")
			assert.NoError(t, err)
			results[i] = roles
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load())
	assert.Equal(t, results[0], results[1])
	assert.True(t, cache.Cached())
}

func TestCacheHitReturnsCopy(t *testing.T) {
	var fetches atomic.Int32
	cache := NewCache(func(ctx context.Context, token string) ([]string, error) {
		fetches.Add(1)
		return []string{"A", "B"}, nil
	}, nil)

	first, hit, err := cache.Get(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, hit)
	first[0] = "mutated"

	second, hit, err := cache.Get(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"A", "B"}, second)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestInvalidateDuringFetchWins(t *testing.T) {
	var fetches atomic.Int32
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	cache := NewCache(func(ctx context.Context, token string) ([]string, error) {
		n := fetches.Add(1)
		started <- struct{}{}
		if n == 1 {
			<-release
			return []string{"Stale Role"}, nil
		}
		return []string{"Fresh Role"}, nil
	}, nil)

	done := make(chan []string, 1)
	go func() {
		roles, _, err := cache.Get(context.Background(), "")
		assert.NoError(t, err)
		done <- roles
	}()
	<-started

	cache.Invalidate()
	close(release)
	assert.Equal(t, []string{"Stale Role"}, <-done, "waiters still get their answer")
	assert.False(t, cache.Cached())

	roles, hit, err := cache.Get(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"Fresh Role"}, roles)
	assert.Equal(t, int32(2), fetches.Load())
	assert.True(t, cache.Cached())
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	cache := NewCache(func(ctx context.Context, token string) ([]string, error) {
		if fail.Load() {
			return nil, errors.New("backend down")
		}
		return nil, nil
	}, nil)

	_, _, err := cache.Get(context.Background(), "")
	require.Error(t, err)
	assert.False(t, cache.Cached())

	fail.Store(false)
	roles, _, err := cache.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{}, roles, "nil list caches as empty")

	cache.Invalidate()
	assert.False(t, cache.Cached())
}

func TestCacheCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	cache := NewCache(func(ctx context.Context, token string) ([]string, error) {
		<-release
		return []string{"A"}, nil
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := cache.Get(ctx, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *countingRecorder) RecordRoleLookup(_ context.Context, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestServiceRolesFallback(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	cache := NewCache(func(ctx context.Context, token string) ([]string, error) {
		if fail.Load() {
			return nil, errors.New("unavailable")
		}
		return []string{"Data Engineer"}, nil
	}, nil)
	rec := &countingRecorder{}
	svc := NewService(cache, nil, rec)

	roles, fallback := svc.Roles(context.Background(), "")
	assert.True(t, fallback)
	assert.Equal(t, DefaultRoles, roles)

	fail.Store(false)
	roles, fallback = svc.Roles(context.Background(), "")
	assert.False(t, fallback)
	assert.Equal(t, []string{"Data Engineer"}, roles)

	_, _ = svc.Roles(context.Background(), "")
	assert.Equal(t, []string{OutcomeFallback, OutcomeMiss, OutcomeHit}, rec.outcomes)

	svc.Reset()
	assert.Equal(t, false, svc.Stats()["cached"])
}

func TestCatalogLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.txt")
	require.NoError(t, os.WriteFile(path, []byte("# fallback roles\nData Engineer\n\nSRE\nSRE\n"), 0600))

	catalog := NewCatalog()
	assert.Equal(t, DefaultRoles, catalog.Roles())

	require.NoError(t, catalog.LoadFile(path))
	assert.Equal(t, []string{"Data Engineer", "SRE"}, catalog.Roles())
	assert.Equal(t, path, catalog.Path())

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n"), 0600))
	assert.Error(t, catalog.LoadFile(empty))
	assert.Error(t, catalog.LoadFile(filepath.Join(dir, "missing.txt")))
	assert.Equal(t, []string{"Data Engineer", "SRE"}, catalog.Roles(), "failed loads keep the current list")
}

func TestWatchCatalogReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.txt")
	require.NoError(t, os.WriteFile(path, []byte("First\n"), 0600))

	catalog := NewCatalog()
	require.NoError(t, catalog.LoadFile(path))

	fw, err := WatchCatalog(catalog, path, 20*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.Stop() })

	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.WriteFile(path, []byte("First\nSecond\n"), 0600))
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		return len(catalog.Roles()) == 2
	}, 3*time.Second, 10*time.Millisecond)
}
