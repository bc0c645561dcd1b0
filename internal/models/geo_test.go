package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeoPoint_Validate(t *testing.T) {
	tests := []struct {
		name    string
		point   GeoPoint
		wantErr bool
		errMsg  string
	}{
		{
			name:  "Valid coordinates - Krk",
			point: GeoPoint{Latitude: 44.97, Longitude: 14.75},
		},
		{
			name:  "Valid coordinates - Date line",
			point: GeoPoint{Latitude: 0.0, Longitude: 180.0},
		},
		{
			name:    "Invalid latitude - too high",
			point:   GeoPoint{Latitude: 91.0, Longitude: 0.0},
			wantErr: true,
			errMsg:  "invalid latitude",
		},
		{
			name:    "Invalid longitude - too low",
			point:   GeoPoint{Latitude: 0.0, Longitude: -181.0},
			wantErr: true,
			errMsg:  "invalid longitude",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.point.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGeoPoint_DistanceTo(t *testing.T) {
	t.Run("same point", func(t *testing.T) {
		p := GeoPoint{Latitude: 44.97, Longitude: 14.75}
		assert.Equal(t, 0.0, p.DistanceTo(p))
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		a := GeoPoint{Latitude: 45.0, Longitude: 14.0}
		b := GeoPoint{Latitude: 46.0, Longitude: 14.0}
		assert.InDelta(t, 111.19, a.DistanceTo(b), 0.01)
		assert.InDelta(t, 111190, a.DistanceMetersTo(b), 10)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := GeoPoint{Latitude: 44.9661, Longitude: 14.7435}
		b := GeoPoint{Latitude: 44.9738, Longitude: 14.7642}
		assert.InDelta(t, a.DistanceTo(b), b.DistanceTo(a), 1e-12)
	})
}

func TestGeoPoint_Geohash(t *testing.T) {
	p := GeoPoint{Latitude: 57.64911, Longitude: 10.40744}
	assert.Equal(t, "u4pruydqqvj", p.Geohash(11))
	assert.Equal(t, "u4pru", p.Geohash(5))
}

func TestBounds(t *testing.T) {
	b := Bounds{
		Southwest: GeoPoint{Latitude: 44.9661, Longitude: 14.7435},
		Northeast: GeoPoint{Latitude: 44.9738, Longitude: 14.7642},
	}

	t.Run("validate", func(t *testing.T) {
		assert.NoError(t, b.Validate())
		inverted := Bounds{Southwest: b.Northeast, Northeast: b.Southwest}
		assert.Error(t, inverted.Validate())
	})

	t.Run("contains", func(t *testing.T) {
		assert.True(t, b.Contains(b.Center()))
		assert.False(t, b.Contains(GeoPoint{Latitude: 45.5, Longitude: 14.75}))
	})

	t.Run("identity", func(t *testing.T) {
		assert.Equal(t, "14,7435_44,9661_14,7642_44,9738", b.Identity())
	})
}
