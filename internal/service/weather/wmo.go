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

package weather

import (
	"math"
	"sort"
)

var wmoDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Heavy rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// DescribeCode maps a WMO weather interpretation code to text.
func DescribeCode(code int) string {
	if d, ok := wmoDescriptions[code]; ok {
		return d
	}
	return "Unknown weather code"
}

// WindComponents splits the wind into the part along the rider's bearing and
// the part across it. direction is where the wind comes FROM (0 = north),
// bearing is where the rider is heading. Tailwind is positive when the wind
// pushes from behind. Both results are rounded to 0.1 km/h.
func WindComponents(speed, direction, bearing float64) (tailwind, crosswind float64) {
	towards := math.Mod(direction+180, 360)
	rel := (towards - bearing) * math.Pi / 180

	tailwind = round(speed*math.Cos(rel), 1)
	crosswind = round(speed*math.Sin(rel), 1)
	return tailwind, crosswind
}

// Model is a forecast model offered by the provider.
type Model struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

const DefaultModel = "best_match"

var models = []Model{
	{Name: "Best Match", ID: "best_match"},
	{Name: "DWD ICON", ID: "icon_global"},
	{Name: "DWD ICON-EU", ID: "icon_eu"},
	{Name: "DWD ICON-D2", ID: "icon_d2"},
	{Name: "GEM GLOBAL", ID: "gem_global"},
	{Name: "Météo-France ARPEGE Europe", ID: "meteofrance_arpege_europe"},
	{Name: "Météo-France AROME France HD", ID: "meteofrance_arome_france_hd"},
	{Name: "UK Met Office UK 2km", ID: "ukmo_uk_deterministic_2km"},
	{Name: "ItaliaMeteo ARPAE ICON 2I", ID: "italia_meteo_arpae_icon_2i"},
}

// Models lists the supported forecast models, best match first.
func Models() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}

// IsModel reports whether id is a supported model id.
func IsModel(id string) bool {
	for _, m := range models {
		if m.ID == id {
			return true
		}
	}
	return false
}

// ModelIDs returns the model ids sorted alphabetically.
func ModelIDs() []string {
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	sort.Strings(ids)
	return ids
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
