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
	"argus-rideplan/internal/domain"
	"argus-rideplan/internal/service/geo"
)

// Simplify keeps the first point and then every point that lies at least
// minDistance meters from the last kept point. The last raw point is kept
// only if it satisfies the same rule.
func Simplify(points []domain.TrackPoint, minDistance float64) []domain.TrackPoint {
	if len(points) == 0 {
		return []domain.TrackPoint{}
	}

	kept := make([]domain.TrackPoint, 0, len(points))
	kept = append(kept, points[0])

	for _, p := range points[1:] {
		if minDistance <= 0 {
			kept = append(kept, p)
			continue
		}
		last := kept[len(kept)-1]
		if geo.Distance(last.Latitude, last.Longitude, p.Latitude, p.Longitude) >= minDistance {
			kept = append(kept, p)
		}
	}
	return kept
}
