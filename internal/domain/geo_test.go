package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taipei101 = UserLocation{Lat: 25.0340, Lng: 121.5645}

func TestDistanceKm_IdenticalPoints(t *testing.T) {
	assert.Equal(t, 0.0, DistanceKm(25.033, 121.5654, 25.033, 121.5654))
}

func TestDistanceKm_Symmetric(t *testing.T) {
	pairs := [][4]float64{
		{25.033, 121.5654, 25.0478, 121.5170},
		{-33.8688, 151.2093, 51.5074, -0.1278},
		{0, 0, 0, 179.9},
		{89.9, 10, -89.9, -170},
	}
	for _, p := range pairs {
		assert.Equal(t, DistanceKm(p[0], p[1], p[2], p[3]), DistanceKm(p[2], p[3], p[0], p[1]))
	}
}

func TestDistanceKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		wantKm                 float64
		delta                  float64
	}{
		{"one degree of latitude", 0, 0, 1, 0, 111.19, 0.01},
		{"taipei 101 to taipei main station", 25.0340, 121.5645, 25.0478, 121.5170, 5.03, 0.05},
		{"quarter meridian", 0, 0, 90, 0, 10007.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.wantKm, DistanceKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2), tt.delta)
		})
	}
}

func TestWithinRadius_Inclusive(t *testing.T) {
	p := UserLocation{Lat: 25.0478, Lng: 121.5170}
	d := DistanceKm(taipei101.Lat, taipei101.Lng, p.Lat, p.Lng)

	assert.True(t, WithinRadius(p, taipei101, d))
	assert.False(t, WithinRadius(p, taipei101, d-1e-9))
	assert.True(t, WithinRadius(taipei101, taipei101, 0))
}

func TestWithinBounds(t *testing.T) {
	b := MapBounds{North: 25.1, South: 25.0, East: 121.6, West: 121.5}

	assert.True(t, WithinBounds(25.05, 121.55, b))
	assert.True(t, WithinBounds(25.1, 121.6, b), "edges are inclusive")
	assert.True(t, WithinBounds(25.0, 121.5, b), "edges are inclusive")
	assert.False(t, WithinBounds(25.2, 121.55, b))
	assert.False(t, WithinBounds(25.05, 121.4, b))
}

func TestWithinBounds_EastBeforeWestIsEmpty(t *testing.T) {
	b := MapBounds{North: 10, South: -10, East: -170, West: 170}

	assert.True(t, b.Empty())
	assert.False(t, WithinBounds(0, 175, b))
	assert.False(t, WithinBounds(0, -175, b))
	assert.False(t, WithinBounds(0, 0, b))
}

func TestIsInTaiwan(t *testing.T) {
	assert.True(t, IsInTaiwan(25.033, 121.5654))
	assert.True(t, IsInTaiwan(22.6273, 120.3014))
	assert.True(t, IsInTaiwan(26.5, 122.5), "box edges are inclusive")
	assert.False(t, IsInTaiwan(35.6762, 139.6503))
	assert.False(t, IsInTaiwan(21.4, 120.0))
}

func TestParseRadius(t *testing.T) {
	for _, km := range []float64{0.5, 1, 2, 3, 5} {
		r, err := ParseRadius(km)
		require.NoError(t, err)
		assert.Equal(t, km, r.Km())
	}

	_, err := ParseRadius(4)
	require.ErrorIs(t, err, ErrInvalidRadius)
	_, err = ParseRadius(0)
	require.ErrorIs(t, err, ErrInvalidRadius)
}

func TestRadiusBoundingBox_ContainsCircle(t *testing.T) {
	for _, center := range []UserLocation{taipei101, {Lat: 60, Lng: 10}, {Lat: -45, Lng: -70}} {
		for _, r := range RadiusOptions {
			box := RadiusBoundingBox(center, r.Km())
			// Sample the circle's rim in 16 directions.
			for i := 0; i < 16; i++ {
				p := pointAt(center, r.Km(), float64(i)*22.5)
				assert.True(t, WithinBounds(p.Lat, p.Lng, box),
					"center=%v r=%v bearing=%v point=%v box=%v", center, r, float64(i)*22.5, p, box)
			}
		}
	}
}

func TestRadiusBoundingBox_NearPoleSpansAllLongitudes(t *testing.T) {
	box := RadiusBoundingBox(UserLocation{Lat: 89.99, Lng: 0}, 5)
	assert.Equal(t, 180.0, box.East)
	assert.Equal(t, -180.0, box.West)
	assert.Equal(t, 90.0, box.North)
}

func TestRadiusBoundingBox_WrapsAntimeridian(t *testing.T) {
	center := UserLocation{Lat: 0, Lng: 179.999}
	across := UserLocation{Lat: 0, Lng: -179.999}
	require.True(t, WithinRadius(across, center, 0.5))

	box := RadiusBoundingBox(center, 0.5)
	assert.True(t, WithinBounds(across.Lat, across.Lng, box), "box=%v", box)
	assert.Equal(t, -180.0, box.West)
	assert.Equal(t, 180.0, box.East)
}

// Every point the radius test accepts must also be inside the pre-filter box,
// so the box query never loses a member.
func TestRadiusBoundingBox_NeverExcludesRadiusMembers(t *testing.T) {
	centers := []UserLocation{
		taipei101,
		{Lat: 0, Lng: 179.999},
		{Lat: 0, Lng: -179.995},
		{Lat: 60, Lng: 179.98},
		{Lat: -45, Lng: -70},
	}
	for _, center := range centers {
		for _, r := range RadiusOptions {
			box := RadiusBoundingBox(center, r.Km())
			for _, p := range gridAround(center, 0.005, 41) {
				if WithinRadius(p, center, r.Km()) {
					assert.True(t, WithinBounds(p.Lat, p.Lng, box),
						"center=%v r=%v point=%v box=%v", center, r, p, box)
				}
			}
		}
	}
}

// gridAround returns n×n points spaced step degrees apart centred on c, with
// longitudes wrapped into [-180, 180].
func gridAround(c UserLocation, step float64, n int) []UserLocation {
	half := float64(n/2) * step
	out := make([]UserLocation, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			lat := c.Lat - half + float64(i)*step
			lng := c.Lng - half + float64(j)*step
			if lng > 180 {
				lng -= 360
			} else if lng < -180 {
				lng += 360
			}
			if lat < -90 || lat > 90 {
				continue
			}
			out = append(out, UserLocation{Lat: lat, Lng: lng})
		}
	}
	return out
}
