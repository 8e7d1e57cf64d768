// Argus RidePlan - Ride time and weather planning for GPS routes.
// Copyright (C) 2026  Paulo Sérgio
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package geo holds the distance and bearing helpers shared by the route stages.
package geo

import (
	"math"

	"github.com/tkrajina/gpxgo/gpx"
)

// Distance returns the great-circle distance in meters between two points.
// The same formula is used everywhere so simplification and slope thresholds
// stay consistent between runs.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	return gpx.HaversineDistance(lat1, lon1, lat2, lon2)
}

// Bearing returns the initial bearing from the first point to the second,
// in degrees within [0, 360). Coincident points yield 0.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dLon := toRadians(lon2 - lon1)

	x := math.Sin(dLon) * math.Cos(phi2)
	y := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon)

	deg := math.Mod(toDegrees(math.Atan2(x, y))+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
