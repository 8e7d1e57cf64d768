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

package domain

import (
	"context"
	"io"
	"time"
)

// TrackSource defines how raw route samples are obtained.
// It doesn't matter if it's a GPX file, an upload, or a JSON body.
type TrackSource interface {
	Load(path string) ([]TrackPoint, error)
	Parse(r io.Reader) ([]TrackPoint, error)
}

// WeatherProvider is the external forecast collaborator.
// It is queried once per flagged segment.
type WeatherProvider interface {
	Forecast(ctx context.Context, req ForecastRequest) (*Forecast, error)
}

// RouteExporter writes a finished plan to some file format.
type RouteExporter interface {
	Export(w io.Writer, plan *Plan) error
}

// PlanStore persists bike profiles and computed plans.
type PlanStore interface {
	GetProfile() (BikeProfile, error)
	SaveProfile(p BikeProfile) error
	SavePlan(p *Plan) error
	GetPlan(id string) (*Plan, error)
	ListPlans(limit int) ([]PlanInfo, error)
	DeletePlan(id string) error
}

// Clock is injected where "now" matters (default start time).
type Clock func() time.Time
