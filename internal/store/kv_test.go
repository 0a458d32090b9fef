package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
)

// fakeClock is a settable time source shared by the backends under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type kvFactory func(t *testing.T, clock *fakeClock) schemas.KeyValueStore

func backends() map[string]kvFactory {
	return map[string]kvFactory{
		"memory": func(t *testing.T, clock *fakeClock) schemas.KeyValueStore {
			return NewMemory().WithClock(clock.Now)
		},
		"sqlite": func(t *testing.T, clock *fakeClock) schemas.KeyValueStore {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "kv.db"), zap.NewNop())
			require.NoError(t, err)
			s.now = clock.Now
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestKeyValueStoreContract(t *testing.T) {
	for name, factory := range backends() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("get set del", func(t *testing.T) {
				kv := factory(t, &fakeClock{now: time.Unix(1_700_000_000, 0)})
				_, err := kv.Get(ctx, "missing")
				assert.ErrorIs(t, err, schemas.ErrNotFound)

				require.NoError(t, kv.Set(ctx, "sess_1", []byte(`{"v":1}`), 0))
				require.NoError(t, kv.Set(ctx, "sess_1", []byte(`{"v":2}`), 0))
				got, err := kv.Get(ctx, "sess_1")
				require.NoError(t, err)
				assert.JSONEq(t, `{"v":2}`, string(got))

				require.NoError(t, kv.Del(ctx, "sess_1"))
				require.NoError(t, kv.Del(ctx, "sess_1"), "deleting an absent key is not an error")
				_, err = kv.Get(ctx, "sess_1")
				assert.ErrorIs(t, err, schemas.ErrNotFound)
			})

			t.Run("ttl expiry", func(t *testing.T) {
				clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
				kv := factory(t, clock)
				require.NoError(t, kv.Set(ctx, "download:a", []byte(`{}`), time.Hour))
				require.NoError(t, kv.Set(ctx, "download:b", []byte(`{}`), 0))

				clock.Advance(59 * time.Minute)
				_, err := kv.Get(ctx, "download:a")
				require.NoError(t, err)

				clock.Advance(2 * time.Minute)
				_, err = kv.Get(ctx, "download:a")
				assert.ErrorIs(t, err, schemas.ErrNotFound)

				keys, err := kv.Keys(ctx, "download:*")
				require.NoError(t, err)
				assert.Equal(t, []string{"download:b"}, keys)
			})

			t.Run("keys by pattern", func(t *testing.T) {
				kv := factory(t, &fakeClock{now: time.Unix(1_700_000_000, 0)})
				for _, k := range []string{"submission:2", "submission:1", "summary:1", "sess_x", "sess_yy"} {
					require.NoError(t, kv.Set(ctx, k, []byte(`{}`), 0))
				}

				keys, err := kv.Keys(ctx, "submission:*")
				require.NoError(t, err)
				assert.Equal(t, []string{"submission:1", "submission:2"}, keys)

				keys, err = kv.Keys(ctx, "sess_?")
				require.NoError(t, err)
				assert.Equal(t, []string{"sess_x"}, keys)

				keys, err = kv.Keys(ctx, "*")
				require.NoError(t, err)
				assert.Len(t, keys, 5)

				keys, err = kv.Keys(ctx, "nothing:*")
				require.NoError(t, err)
				assert.Empty(t, keys)
			})

			t.Run("brackets match literally", func(t *testing.T) {
				kv := factory(t, &fakeClock{now: time.Unix(1_700_000_000, 0)})
				for _, k := range []string{"submission:x[ab]", "submission:xa", "submission:xb"} {
					require.NoError(t, kv.Set(ctx, k, []byte(`{}`), 0))
				}

				keys, err := kv.Keys(ctx, "submission:x[ab]")
				require.NoError(t, err)
				assert.Equal(t, []string{"submission:x[ab]"}, keys)

				keys, err = kv.Keys(ctx, "submission:x[*")
				require.NoError(t, err)
				assert.Equal(t, []string{"submission:x[ab]"}, keys)
			})
		})
	}
}

func TestSQLite_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "kv.db"), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	s.now = clock.Now

	require.NoError(t, s.Set(ctx, "a", []byte(`1`), time.Minute))
	require.NoError(t, s.Set(ctx, "b", []byte(`2`), 0))
	clock.Advance(time.Hour)

	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), " ", zap.NewNop())
	assert.Error(t, err)
}
