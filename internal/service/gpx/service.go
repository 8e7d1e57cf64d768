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

package gpx

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"argus-rideplan/internal/domain"

	"github.com/tkrajina/gpxgo/gpx"
)

var (
	ErrNoPoints         = errors.New("the GPX file does not contain any GPS points")
	ErrMissingElevation = errors.New("the GPX file contains points without elevation")
)

// Track is a parsed route with its display name.
type Track struct {
	Name   string
	Points []domain.TrackPoint
}

// Service reads GPX tracks. Track segments are read in order; routes are only
// used when the file has no track points.
type Service struct{}

var _ domain.TrackSource = (*Service)(nil)

func NewService() *Service {
	return &Service{}
}

// Load reads the points of a GPX file.
func (s *Service) Load(path string) ([]domain.TrackPoint, error) {
	t, err := s.LoadTrack(path)
	if err != nil {
		return nil, err
	}
	return t.Points, nil
}

// Parse reads the points of a GPX document.
func (s *Service) Parse(r io.Reader) ([]domain.TrackPoint, error) {
	t, err := s.ParseTrack(r)
	if err != nil {
		return nil, err
	}
	return t.Points, nil
}

// LoadTrack reads a GPX file. The name falls back to the file name.
func (s *Service) LoadTrack(path string) (*Track, error) {
	gpxFile, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	t, err := convert(gpxFile)
	if err != nil {
		return nil, err
	}
	if t.Name == "" {
		t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return t, nil
}

// ParseTrack reads a GPX document from r.
func (s *Service) ParseTrack(r io.Reader) (*Track, error) {
	gpxFile, err := gpx.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}
	return convert(gpxFile)
}

func convert(g *gpx.GPX) (*Track, error) {
	var points []domain.TrackPoint
	var missing int

	add := func(p *gpx.GPXPoint) {
		if !p.Elevation.NotNull() {
			missing++
			return
		}
		points = append(points, domain.TrackPoint{
			Latitude:  p.Point.Latitude,
			Longitude: p.Point.Longitude,
			Elevation: p.Elevation.Value(),
			Time:      p.Timestamp,
		})
	}

	for _, track := range g.Tracks {
		for _, segment := range track.Segments {
			for i := range segment.Points {
				add(&segment.Points[i])
			}
		}
	}

	if len(points) == 0 && missing == 0 {
		for _, route := range g.Routes {
			for i := range route.Points {
				add(&route.Points[i])
			}
		}
	}

	if missing > 0 {
		return nil, fmt.Errorf("%w (%d points)", ErrMissingElevation, missing)
	}
	if len(points) == 0 {
		return nil, ErrNoPoints
	}

	return &Track{Name: trackName(g), Points: points}, nil
}

func trackName(g *gpx.GPX) string {
	if g.Name != "" {
		return g.Name
	}
	for _, t := range g.Tracks {
		if t.Name != "" {
			return t.Name
		}
	}
	for _, r := range g.Routes {
		if r.Name != "" {
			return r.Name
		}
	}
	return ""
}
