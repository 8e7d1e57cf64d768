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

package route

import (
	"math"

	"argus-rideplan/internal/domain"
	"argus-rideplan/internal/service/geo"
)

const (
	DefaultMinDistance     = 50.0 // meters
	DefaultSmoothingWindow = 11
	DefaultPolyOrder       = 3
)

// Options controls the geometric stages.
type Options struct {
	MinDistance     float64 // Simplification spacing in meters
	SmoothingWindow int     // Savitzky-Golay window length (odd)
	PolyOrder       int     // Savitzky-Golay polynomial order
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MinDistance:     DefaultMinDistance,
		SmoothingWindow: DefaultSmoothingWindow,
		PolyOrder:       DefaultPolyOrder,
	}
}

// Derive builds the segment table from an (already simplified) point sequence.
// An empty input yields an empty table.
func Derive(points []domain.TrackPoint, opts Options) []domain.Segment {
	n := len(points)
	segments := make([]domain.Segment, n)
	if n == 0 {
		return segments
	}

	raw := make([]float64, n)
	for i, p := range points {
		raw[i] = p.Elevation
	}
	smooth := SmoothElevation(raw, opts.SmoothingWindow, opts.PolyOrder)

	var cumDist, cumGain, cumLoss float64
	for i, p := range points {
		s := domain.Segment{
			Index:           i,
			Latitude:        p.Latitude,
			Longitude:       p.Longitude,
			Elevation:       p.Elevation,
			ElevationSmooth: smooth[i],
		}

		if i > 0 {
			prev := points[i-1]
			s.Distance = geo.Distance(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
			s.Bearing = geo.Bearing(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
			s.ElevationDelta = smooth[i] - smooth[i-1]
		}

		if s.Distance > 0 {
			s.Slope = s.ElevationDelta / s.Distance * 100
		}

		cumDist += s.Distance
		cumGain += math.Max(s.ElevationDelta, 0)
		cumLoss += math.Min(s.ElevationDelta, 0)

		s.CumDistance = cumDist
		s.CumGain = cumGain
		s.CumLoss = cumLoss

		segments[i] = s
	}
	return segments
}

// Stats summarises a derived table. originalPoints is the raw sample count
// before simplification.
func Stats(segments []domain.Segment, originalPoints int) domain.RouteStats {
	stats := domain.RouteStats{
		OriginalPoints:   originalPoints,
		SimplifiedPoints: len(segments),
	}
	if len(segments) == 0 {
		return stats
	}

	last := segments[len(segments)-1]
	stats.DistanceKm = last.CumDistance / 1000
	stats.Gain = last.CumGain
	stats.Loss = math.Abs(last.CumLoss)

	var sum float64
	stats.MaxSlope = segments[0].Slope
	for _, s := range segments {
		sum += s.Slope
		if s.Slope > stats.MaxSlope {
			stats.MaxSlope = s.Slope
		}
	}
	stats.MeanSlope = sum / float64(len(segments))
	return stats
}
