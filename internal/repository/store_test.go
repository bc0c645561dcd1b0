package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flybeeper/trajflow/internal/config"
	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

var testLogger = utils.NewLogger("error", "text")

func sampleGridResult() *models.GridResult {
	return &models.GridResult{
		Kind: models.FlowAggregation,
		Grid: []models.Params{
			models.FlowParams(50, 100),
			models.FlowParams(50, 150),
		},
		Scores:    []*models.Score{{Cohesion: 0.42, Separation: 130.5}, nil},
		RunID:     "run-1",
		CreatedAt: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestCodec(t *testing.T) {
	t.Run("grid round trip", func(t *testing.T) {
		result := sampleGridResult()
		blob, err := Encode(KindGrid, result)
		require.NoError(t, err)

		var decoded models.GridResult
		require.NoError(t, Decode(blob, KindGrid, &decoded))
		if diff := cmp.Diff(*result, decoded); diff != "" {
			t.Errorf("decoded grid mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("trajectories round trip", func(t *testing.T) {
		collection := &models.TrajectoryCollection{
			Trajectories: []models.Trajectory{{
				ID:       "1:1",
				EntityID: "1",
				Points: []models.Point{
					{Timestamp: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), X: 14.75, Y: 44.97},
					{Timestamp: time.Date(2024, 6, 1, 8, 1, 0, 0, time.UTC), X: 14.76, Y: 44.97, Distance: 787.4, Speed: 47.2},
				},
			}},
		}
		blob, err := Encode(KindTrajectories, collection)
		require.NoError(t, err)

		var decoded models.TrajectoryCollection
		require.NoError(t, Decode(blob, KindTrajectories, &decoded))
		if diff := cmp.Diff(*collection, decoded); diff != "" {
			t.Errorf("decoded collection mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("flow geometry round trip", func(t *testing.T) {
		flows := []models.Flow{{Geometry: orb.LineString{{14.75, 44.97}, {14.8, 44.99}}, Weight: 3, ObjWeight: 2, From: 0, To: 1}}
		blob, err := Encode(KindSolution, flows)
		require.NoError(t, err)

		var decoded []models.Flow
		require.NoError(t, Decode(blob, KindSolution, &decoded))
		assert.True(t, cmp.Equal(flows, decoded, cmpopts.EquateEmpty()))
	})

	t.Run("kind mismatch", func(t *testing.T) {
		blob, err := Encode(KindGrid, sampleGridResult())
		require.NoError(t, err)
		var decoded models.TrajectoryCollection
		assert.Error(t, Decode(blob, KindTrajectories, &decoded))
	})

	t.Run("version mismatch", func(t *testing.T) {
		blob := []byte(`{"version":99,"kind":"grid","payload":{}}`)
		var decoded models.GridResult
		assert.Error(t, Decode(blob, KindGrid, &decoded))
	})

	t.Run("garbage", func(t *testing.T) {
		var decoded models.GridResult
		assert.Error(t, Decode([]byte("\x80\x04pickle"), KindGrid, &decoded))
		assert.Error(t, Decode([]byte(`{"version":1,"kind":"grid"}`), KindGrid, &decoded))
	})
}

func testStores(t *testing.T) map[string]Store {
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), 0, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(16, 0),
		"sqlite": sqlite,
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "absent")
			assert.ErrorIs(t, err, models.ErrCacheMiss)

			require.NoError(t, store.Put(ctx, "k", []byte("v1")))
			blob, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), blob)

			// перезапись
			require.NoError(t, store.Put(ctx, "k", []byte("v2")))
			blob, err = store.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), blob)

			assert.NoError(t, store.Ping(ctx))
		})
	}
}

func TestMemoryStoreCopiesBlobs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(4, 0)

	blob := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", blob))
	blob[0] = 'x'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestSQLiteStoreTTL(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ttl.db"), time.Nanosecond, testLogger)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(ctx, "k", []byte("v")))
	time.Sleep(1100 * time.Millisecond)

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, models.ErrCacheMiss)
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(16, 0)
	cache, err := NewCache(store, testLogger)
	require.NoError(t, err)

	t.Run("miss", func(t *testing.T) {
		var result models.GridResult
		ok, err := cache.Load(ctx, "evaluation:none:tca", KindGrid, &result)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("hit", func(t *testing.T) {
		want := sampleGridResult()
		require.NoError(t, cache.Save(ctx, "evaluation:a:tca", KindGrid, want))

		var got models.GridResult
		ok, err := cache.Load(ctx, "evaluation:a:tca", KindGrid, &got)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, cmp.Equal(*want, got))
	})

	t.Run("corrupt blob is a miss", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "evaluation:b:tca", []byte("not json")))

		var got models.GridResult
		ok, err := cache.Load(ctx, "evaluation:b:tca", KindGrid, &got)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong kind is a miss", func(t *testing.T) {
		require.NoError(t, cache.Save(ctx, "traces:c", KindTrajectories, &models.TrajectoryCollection{}))

		var got models.GridResult
		ok, err := cache.Load(ctx, "traces:c", KindGrid, &got)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	_, err = NewCache(nil, testLogger)
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "traces:14,69_44,89_14,86_45,06", TrajectoriesKey("14,69_44,89_14,86_45,06"))
	assert.Equal(t, "solution:id:tca_50_100", SolutionKey("id", models.FlowParams(50, 100).Key()))
	assert.Equal(t, "evaluation:id:dbscan", EvaluationKey("id", models.DensityClustering))
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{Cache: config.CacheConfig{Backend: "memory", MemoryCapacity: 8}}
	store, err := NewStore(ctx, cfg, testLogger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	cfg = &config.Config{Cache: config.CacheConfig{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "s.db")}}
	store, err = NewStore(ctx, cfg, testLogger)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	store.Close()

	_, err = NewStore(ctx, &config.Config{Cache: config.CacheConfig{Backend: "s3"}}, testLogger)
	assert.Error(t, err)
}
