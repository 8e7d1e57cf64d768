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
	"io"
	"strconv"
	"time"

	"argus-rideplan/internal/domain"

	"github.com/gocarina/gocsv"
)

// SegmentRow is one CSV line of the segment table.
type SegmentRow struct {
	Index          int     `csv:"index"`
	Latitude       float64 `csv:"lat"`
	Longitude      float64 `csv:"lon"`
	Elevation      float64 `csv:"ele"`
	ElevSmooth     float64 `csv:"ele_smooth"`
	Distance       float64 `csv:"distance_m"`
	CumDistance    float64 `csv:"cum_distance_m"`
	Bearing        float64 `csv:"bearing"`
	ElevationDelta float64 `csv:"elevation_delta"`
	Slope          float64 `csv:"slope"`
	CumGain        float64 `csv:"cum_gain"`
	CumLoss        float64 `csv:"cum_loss"`
	Speed          float64 `csv:"speed_kmh"`
	TimeStr        string  `csv:"time"`
	ElapsedSeconds float64 `csv:"elapsed_s"`
	PassageTime    string  `csv:"passage_time"`
	VAM            float64 `csv:"vam"`
	Calories       float64 `csv:"kcal"`
	PowerGravity   float64 `csv:"p_gravity"`
	PowerRolling   float64 `csv:"p_rolling"`
	PowerDrag      float64 `csv:"p_drag"`
	PowerLoss      float64 `csv:"p_drivetrain"`
	PowerPerKg     float64 `csv:"p_rel"`
	Converged      bool    `csv:"converged"`
	GetForecast    bool    `csv:"get_forecast"`
	Temperature    string  `csv:"temp"`
	Precipitation  string  `csv:"prec_mm"`
	WindSpeed      string  `csv:"ws_10m_kmh"`
	WindDirection  string  `csv:"wd_10m_deg"`
	Tailwind       string  `csv:"tailwind"`
	Crosswind      string  `csv:"crosswind"`
	Weather        string  `csv:"wmo_description"`
}

// CSV writes the segment table, one row per segment.
type CSV struct{}

func (CSV) Export(w io.Writer, plan *domain.Plan) error {
	rows := Rows(plan)
	return gocsv.Marshal(&rows, w)
}

// Rows flattens a plan into CSV rows. A nil plan gives no rows.
func Rows(plan *domain.Plan) []*SegmentRow {
	if plan == nil {
		return []*SegmentRow{}
	}
	rows := make([]*SegmentRow, 0, len(plan.Segments))
	for _, s := range plan.Segments {
		row := &SegmentRow{
			Index:          s.Index,
			Latitude:       s.Latitude,
			Longitude:      s.Longitude,
			Elevation:      s.Elevation,
			ElevSmooth:     s.ElevationSmooth,
			Distance:       s.Distance,
			CumDistance:    s.CumDistance,
			Bearing:        s.Bearing,
			ElevationDelta: s.ElevationDelta,
			Slope:          s.Slope,
			CumGain:        s.CumGain,
			CumLoss:        s.CumLoss,
			Speed:          s.Speed,
			TimeStr:        s.TimeStr,
			ElapsedSeconds: s.Elapsed.Seconds(),
			VAM:            s.VAM,
			Calories:       s.Calories,
			PowerGravity:   s.Power.Gravity,
			PowerRolling:   s.Power.Rolling,
			PowerDrag:      s.Power.Drag,
			PowerLoss:      s.Power.DrivetrainLoss,
			PowerPerKg:     s.Power.PowerPerKg,
			Converged:      s.Converged,
			GetForecast:    s.GetForecast,
		}
		if !s.PassageTime.IsZero() {
			row.PassageTime = s.PassageTime.Format(time.RFC3339)
		}
		if fc := s.Forecast; fc != nil {
			row.Temperature = optional(fc.Temperature)
			row.Precipitation = optional(fc.Precipitation)
			row.WindSpeed = optional(fc.WindSpeed)
			row.WindDirection = optional(fc.WindDirection)
			row.Tailwind = optional(fc.Tailwind)
			row.Crosswind = optional(fc.Crosswind)
			row.Weather = fc.Description
		}
		rows = append(rows, row)
	}
	return rows
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
