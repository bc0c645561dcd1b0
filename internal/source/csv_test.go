package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

var testLogger = utils.NewLogger("error", "text")

const sample = `entity_id,timestamp,x,y
7,2024-06-01T08:00:00Z,14.75,44.97
7,1717228860,14.76,44.97
8,1717228920.5,14.77,44.98
8,not-a-time,14.78,44.98
9,2024-06-01T08:03:00Z,20.00,50.00
9,2024-06-01T08:04:00Z,abc,44.98
`

func TestCSVSource_Read(t *testing.T) {
	src, err := NewCSVSource("tracks.csv", testLogger)
	require.NoError(t, err)

	records, err := src.Read(context.Background(), strings.NewReader(sample), nil)
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, models.Record{
		EntityID:  "7",
		Timestamp: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		X:         14.75,
		Y:         44.97,
	}, records[0])
	assert.Equal(t, time.Unix(1717228860, 0).UTC(), records[1].Timestamp)
	assert.Equal(t, time.Unix(1717228920, 5e8).UTC(), records[2].Timestamp)
	assert.Equal(t, "9", records[3].EntityID)

	t.Run("bounds filter", func(t *testing.T) {
		bounds := &models.Bounds{
			Southwest: models.GeoPoint{Latitude: 44, Longitude: 14},
			Northeast: models.GeoPoint{Latitude: 45, Longitude: 15},
		}
		records, err := src.Read(context.Background(), strings.NewReader(sample), bounds)
		require.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("no header", func(t *testing.T) {
		records, err := src.Read(context.Background(), strings.NewReader("1,1717228800,1,2\n"), nil)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "1", records[0].EntityID)
	})
}

func TestCSVSource_LoadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	src, err := NewCSVSource(path, testLogger)
	require.NoError(t, err)
	records, err := src.LoadRecords(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, records, 4)

	missing, err := NewCSVSource(filepath.Join(t.TempDir(), "missing.csv"), testLogger)
	require.NoError(t, err)
	_, err = missing.LoadRecords(context.Background(), nil)
	assert.Error(t, err)

	_, err = NewCSVSource("", testLogger)
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp(" 2024-06-01T10:00:00+02:00 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), ts)

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}
