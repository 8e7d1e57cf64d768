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

package export

import (
	"encoding/json"
	"io"
	"time"

	"argus-rideplan/internal/domain"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// GeoJSON writes a FeatureCollection: the route as a LineString carrying the
// passage times as coordinate properties, then one Point per forecast segment.
type GeoJSON struct{}

func (GeoJSON) Export(w io.Writer, plan *domain.Plan) error {
	fc, err := FeatureCollection(plan)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(fc)
}

// FeatureCollection builds the collection written by GeoJSON.
func FeatureCollection(plan *domain.Plan) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	if plan == nil || len(plan.Segments) == 0 {
		return fc, nil
	}

	coords := make([]geom.Coord, len(plan.Segments))
	times := make([]string, len(plan.Segments))
	speeds := make([]float64, len(plan.Segments))
	for i, s := range plan.Segments {
		coords[i] = geom.Coord{s.Longitude, s.Latitude, s.ElevationSmooth}
		times[i] = s.PassageTime.Format(time.RFC3339)
		speeds[i] = s.Speed
	}
	line, err := geom.NewLineString(geom.XYZ).SetCoords(coords)
	if err != nil {
		return nil, err
	}

	fc.Features = append(fc.Features, &geojson.Feature{
		ID:       plan.ID,
		Geometry: line,
		Properties: map[string]interface{}{
			"name":        plan.RouteName,
			"distance_km": plan.Summary.DistanceKm,
			"total_time":  plan.Summary.TotalTime,
			"avg_speed":   plan.Summary.AvgSpeed,
			"coordinateProperties": map[string]interface{}{
				"times":  times,
				"speeds": speeds,
			},
		},
	})

	for _, s := range plan.Segments {
		if !s.GetForecast {
			continue
		}
		pt, err := geom.NewPoint(geom.XY).SetCoords(geom.Coord{s.Longitude, s.Latitude})
		if err != nil {
			return nil, err
		}
		props := map[string]interface{}{
			"index":        s.Index,
			"passage_time": s.PassageTime.Format(time.RFC3339),
			"bearing":      s.Bearing,
			"cum_distance": s.CumDistance,
		}
		if s.Forecast != nil {
			props["forecast"] = s.Forecast
		}
		fc.Features = append(fc.Features, &geojson.Feature{Geometry: pt, Properties: props})
	}
	return fc, nil
}
