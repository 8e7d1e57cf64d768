package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	// One degree of latitude along a meridian is roughly 111 km.
	d := Distance(45, 11, 46, 11)
	assert.InDelta(t, 111_300, d, 500)

	assert.Zero(t, Distance(45.1, 11.2, 45.1, 11.2))
}

func TestDistanceIsSymmetric(t *testing.T) {
	a := Distance(45.4642, 9.19, 45.0703, 7.6869)
	b := Distance(45.0703, 7.6869, 45.4642, 9.19)
	assert.InDelta(t, a, b, 1e-6)
	// Milan to Turin ~126 km
	assert.InDelta(t, 126_000, a, 3_000)
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"north", 45, 11, 46, 11, 0},
		{"south", 46, 11, 45, 11, 180},
		{"east on equator", 0, 10, 0, 11, 90},
		{"west on equator", 0, 11, 0, 10, 270},
		{"coincident", 45, 11, 45, 11, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Bearing(tt.lat1, tt.lon1, tt.lat2, tt.lon2), 1e-9)
		})
	}
}

func TestBearingRange(t *testing.T) {
	b := Bearing(45, 11, 44.9, 10.9)
	assert.GreaterOrEqual(t, b, 180.0)
	assert.Less(t, b, 270.0)
}
