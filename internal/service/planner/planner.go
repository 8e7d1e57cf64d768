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

// Package planner ties the route pipeline to its collaborators: the bike
// profile store, the weather fetcher and plan persistence.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"argus-rideplan/internal/domain"
	"argus-rideplan/internal/logging"
	"argus-rideplan/internal/service/forecast"
	"argus-rideplan/internal/service/pipeline"
	"argus-rideplan/internal/service/weather"

	"go.uber.org/zap"
)

// ErrWeatherDisabled is returned when weather is requested but no fetcher is configured.
var ErrWeatherDisabled = errors.New("weather lookups are not configured")

// ForecastBatch fetches the forecasts of many segments at once.
type ForecastBatch interface {
	Fetch(ctx context.Context, reqs []domain.ForecastRequest) map[int]*domain.Forecast
}

// Params are the per-request settings. Zero values fall back to the
// profile or the configured defaults.
type Params struct {
	Setup       *domain.BikeSetup // replaces the stored profile when set
	Power       float64
	Start       time.Time
	Weather     bool
	MinDistance *float64
	Window      *time.Duration
}

// Service builds plans. Weather and Store are optional.
type Service struct {
	setup   domain.BikeSetup
	power   float64
	opts    pipeline.Options
	weather ForecastBatch
	store   domain.PlanStore
	clock   domain.Clock
	log     *zap.Logger
}

// New creates a planner. setup and power are used when the store has no
// profile.
func New(setup domain.BikeSetup, power float64, opts pipeline.Options, fetcher ForecastBatch, store domain.PlanStore, log *zap.Logger) *Service {
	return &Service{
		setup:   setup,
		power:   power,
		opts:    opts,
		weather: fetcher,
		store:   store,
		clock:   time.Now,
		log:     logging.Or(log).Named("planner"),
	}
}

// WithClock replaces the clock used for the default start time.
func (s *Service) WithClock(c domain.Clock) *Service {
	s.clock = c
	return s
}

// Plan runs the pipeline for the given track, attaches the forecasts when
// asked to and stores the result. Empty plans are returned but never stored.
func (s *Service) Plan(ctx context.Context, name string, points []domain.TrackPoint, params Params) (*domain.Plan, error) {
	setup, power := s.profile()
	if params.Setup != nil {
		setup = *params.Setup
	}
	if params.Power > 0 {
		power = params.Power
	}
	start := params.Start
	if start.IsZero() {
		start = forecast.NextQuarterHour(s.clock())
	}

	opts := s.opts
	if params.MinDistance != nil {
		opts.Route.MinDistance = *params.MinDistance
	}
	if params.Window != nil {
		opts.ForecastWindow = *params.Window
	}

	plan := pipeline.New(setup, opts, s.log).Run(name, points, power, start)
	if len(plan.Segments) == 0 {
		return plan, nil
	}

	if params.Weather {
		if s.weather == nil {
			return nil, ErrWeatherDisabled
		}
		reqs := forecast.Requests(plan.Segments)
		results := s.weather.Fetch(ctx, reqs)
		plan.Segments = weather.Merge(plan.Segments, results)
		s.log.Info("weather attached",
			zap.String("plan", plan.ID),
			zap.Int("requested", len(reqs)),
			zap.Int("received", len(results)),
		)
	}

	if s.store != nil {
		if err := s.store.SavePlan(plan); err != nil {
			return nil, fmt.Errorf("save plan: %w", err)
		}
	}
	return plan, nil
}

func (s *Service) profile() (domain.BikeSetup, float64) {
	if s.store == nil {
		return s.setup, s.power
	}
	p, err := s.store.GetProfile()
	if err != nil {
		s.log.Warn("falling back to configured bike setup", zap.Error(err))
		return s.setup, s.power
	}
	power := p.Power
	if power <= 0 {
		power = s.power
	}
	return p.BikeSetup, power
}
