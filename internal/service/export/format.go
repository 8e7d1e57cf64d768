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
	"fmt"
	"sort"

	"argus-rideplan/internal/domain"
	"argus-rideplan/internal/service/fit"
)

// Format describes one export target.
type Format struct {
	Name        string
	Extension   string
	ContentType string
	Exporter    domain.RouteExporter
}

var formats = map[string]Format{
	"csv":     {Name: "csv", Extension: ".csv", ContentType: "text/csv", Exporter: CSV{}},
	"geojson": {Name: "geojson", Extension: ".geojson", ContentType: "application/geo+json", Exporter: GeoJSON{}},
	"fit":     {Name: "fit", Extension: ".fit", ContentType: "application/vnd.ant.fit", Exporter: fit.NewService()},
}

// Lookup returns the export format with the given name.
func Lookup(name string) (Format, error) {
	f, ok := formats[name]
	if !ok {
		return Format{}, fmt.Errorf("unknown export format %q (available: %v)", name, Names())
	}
	return f, nil
}

// Names lists the format names.
func Names() []string {
	names := make([]string, 0, len(formats))
	for n := range formats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
