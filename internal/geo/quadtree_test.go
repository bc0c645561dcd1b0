package geo

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(objs []Object) []int {
	out := make([]int, len(objs))
	for i, o := range objs {
		out[i] = o.GetID()
	}
	return out
}

func TestQuadTree_QueryRadiusMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	coords := make([][2]float64, 500)
	for i := range coords {
		coords[i] = [2]float64{14.74 + rng.Float64()*0.02, 44.96 + rng.Float64()*0.01}
	}
	qt := NewPointIndex(coords)
	require.Equal(t, len(coords), qt.Size())

	const eps = 0.0007
	for _, probe := range []int{0, 17, 250, 499} {
		x, y := coords[probe][0], coords[probe][1]
		var want []int
		for i, c := range coords {
			if Euclidean(x, y, c[0], c[1]) <= eps {
				want = append(want, i)
			}
		}
		assert.Equal(t, want, ids(qt.QueryRadius(x, y, eps)), "probe %d", probe)
	}
}

func TestQuadTree_QueryRadiusMeters(t *testing.T) {
	// ~0.001 deg of longitude at 45N is ~79 m
	qt := NewQuadTree(Bounds{MinX: 14.0, MinY: 44.0, MaxX: 15.0, MaxY: 45.5})
	qt.Insert(Item{ID: 1, X: 14.750, Y: 44.970})
	qt.Insert(Item{ID: 2, X: 14.751, Y: 44.970})
	qt.Insert(Item{ID: 3, X: 14.760, Y: 44.970})

	got := qt.QueryRadiusMeters(14.750, 44.970, 100)
	assert.Equal(t, []int{1, 2}, ids(got))

	got = qt.QueryRadiusMeters(14.750, 44.970, 50)
	assert.Equal(t, []int{1}, ids(got))
}

func TestQuadTree_UpdateAndRemove(t *testing.T) {
	qt := NewQuadTree(Bounds{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10})

	assert.True(t, qt.Insert(Item{ID: 1, X: 1, Y: 1}))
	assert.False(t, qt.Insert(Item{ID: 2, X: 11, Y: 1}), "outside bounds")
	assert.Equal(t, 1, qt.Size())

	assert.True(t, qt.Update(Item{ID: 1, X: 9, Y: 9}))
	assert.Empty(t, qt.QueryRadius(1, 1, 0.5))
	assert.Equal(t, []int{1}, ids(qt.QueryRadius(9, 9, 0.5)))

	obj, ok := qt.Get(1)
	require.True(t, ok)
	assert.Equal(t, 9.0, obj.GetX())

	qt.Remove(1)
	assert.Equal(t, 0, qt.Size())
	assert.Empty(t, qt.QueryBounds(Bounds{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}))
}

func TestQuadTree_SplitsAndKeepsAllObjects(t *testing.T) {
	qt := NewQuadTree(Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1})
	for i := 0; i < 10*nodeCapacity; i++ {
		x := float64(i%20) / 20
		y := float64(i/20) / 20
		require.True(t, qt.Insert(Item{ID: i, X: x, Y: y}))
	}
	require.NotNil(t, qt.root.nw, "root should have split")

	all := qt.QueryBounds(Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1})
	assert.Len(t, all, 10*nodeCapacity)
	for i, id := range ids(all) {
		assert.Equal(t, i, id)
	}
}

func TestQuadTree_IdenticalPoints(t *testing.T) {
	coords := make([][2]float64, 100)
	for i := range coords {
		coords[i] = [2]float64{14.75, 44.97}
	}
	qt := NewPointIndex(coords)
	assert.Len(t, qt.QueryRadius(14.75, 44.97, 0), 100)
}

func TestLRUCache(t *testing.T) {
	t.Run("evicts least recently used", func(t *testing.T) {
		c := NewLRUCache(2, 0)
		c.Set("a", 1, 1)
		c.Set("b", 2, 1)
		_, _ = c.Get("a")
		c.Set("c", 3, 1)

		_, ok := c.Get("b")
		assert.False(t, ok)
		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)
		assert.Equal(t, 2, c.Size())
	})

	t.Run("ttl expiry", func(t *testing.T) {
		c := NewLRUCache(4, 10*time.Millisecond)
		c.Set("a", 1, 1)
		time.Sleep(20 * time.Millisecond)
		_, ok := c.Get("a")
		assert.False(t, ok)

		c.Set("b", 2, 1)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, c.Clean())
	})

	t.Run("stats", func(t *testing.T) {
		c := NewLRUCache(4, 0)
		c.Set("a", 1, 1)
		_, _ = c.Get("a")
		_, _ = c.Get("missing")
		hits, misses, rate := c.Stats()
		assert.Equal(t, uint64(1), hits)
		assert.Equal(t, uint64(1), misses)
		assert.Equal(t, 0.5, rate)

		c.Delete("a")
		c.Set("b", 2, 1)
		c.Clear()
		assert.Equal(t, 0, c.Size())
	})
}
