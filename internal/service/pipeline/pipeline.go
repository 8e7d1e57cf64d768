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

// Package pipeline runs the fixed stage order that turns a raw track into a
// timed segment table: simplify, derive, solve, propagate, mark.
package pipeline

import (
	"math"
	"time"

	"argus-rideplan/internal/domain"
	"argus-rideplan/internal/logging"
	"argus-rideplan/internal/metrics"
	"argus-rideplan/internal/service/forecast"
	"argus-rideplan/internal/service/route"
	"argus-rideplan/internal/service/sim"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures every stage of a run.
type Options struct {
	Route          route.Options
	ForecastWindow time.Duration
}

// DefaultOptions returns the stage settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Route:          route.DefaultOptions(),
		ForecastWindow: forecast.DefaultWindow,
	}
}

// Pipeline owns a bike model and the stage options. A run never mutates a
// previously returned plan, so plans can be shared freely.
type Pipeline struct {
	model *sim.Model
	opts  Options
	log   *zap.Logger
	now   domain.Clock
}

// New builds a pipeline. A nil logger uses the global one.
func New(setup domain.BikeSetup, opts Options, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		model: sim.NewModel(setup),
		opts:  opts,
		log:   logging.Or(logger).Named("pipeline"),
		now:   time.Now,
	}
}

// WithClock replaces the clock used for Plan.CreatedAt.
func (p *Pipeline) WithClock(c domain.Clock) *Pipeline {
	p.now = c
	return p
}

// Setup returns the bike setup in use, with defaults applied.
func (p *Pipeline) Setup() domain.BikeSetup {
	return p.model.Setup
}

// Run executes every stage for one route. Empty input produces an empty
// table and a zero summary rather than an error.
func (p *Pipeline) Run(name string, points []domain.TrackPoint, power float64, start time.Time) *domain.Plan {
	began := time.Now()

	simplified := route.Simplify(points, p.opts.Route.MinDistance)
	segments := route.Derive(simplified, p.opts.Route)
	segments = Solve(p.model, segments, power)
	segments = Propagate(segments, start)
	segments = forecast.Mark(segments, p.opts.ForecastWindow)

	summary := Summarize(segments, start)
	stats := route.Stats(segments, len(points))

	p.log.Debug("pipeline run",
		zap.String("route", name),
		zap.Int("points", len(points)),
		zap.Int("simplified", len(simplified)),
		zap.Int("segments", len(segments)),
		zap.Float64("power", power),
		zap.Duration("elapsed", time.Since(began)),
	)
	if summary.NonConverged > 0 {
		for _, s := range segments {
			if !s.Converged {
				p.log.Warn("solver did not converge",
					zap.String("route", name),
					zap.Int("segment", s.Index),
					zap.Int("iterations", s.Iterations),
					zap.Float64("speed", s.Speed),
				)
			}
		}
	}
	metrics.RecordPipelineRun(time.Since(began), len(segments), summary.NonConverged)

	return &domain.Plan{
		ID:        uuid.NewString(),
		RouteName: name,
		Power:     power,
		Setup:     p.model.Setup,
		Segments:  segments,
		Summary:   summary,
		Stats:     stats,
		CreatedAt: p.now(),
	}
}

// Solve fills the physics columns of a copy of the table. Each segment is
// solved from its own distance and smoothed elevation delta with no wind.
func Solve(model *sim.Model, segments []domain.Segment, power float64) []domain.Segment {
	out := make([]domain.Segment, len(segments))
	for i, s := range segments {
		res := model.Solve(sim.Input{
			Power:      power,
			DistanceKm: s.Distance / 1000,
			Elevation:  s.ElevationDelta,
		})
		s.Speed = res.Speed
		s.Power = res.Components
		s.Elapsed = sim.Elapsed(res.Info.TimeHours)
		s.TimeStr = res.Info.TimeStr
		s.VAM = res.Info.VAM
		s.Calories = res.Info.Calories
		s.Converged = res.Converged
		s.Iterations = res.Iterations
		out[i] = s
	}
	return out
}

// Propagate assigns passage times by accumulating elapsed durations from
// start. Segment 0 is passed at start.
func Propagate(segments []domain.Segment, start time.Time) []domain.Segment {
	out := make([]domain.Segment, len(segments))
	var acc time.Duration
	for i, s := range segments {
		if i > 0 {
			acc += s.Elapsed
		}
		s.PassageTime = start.Add(acc)
		out[i] = s
	}
	return out
}

// Summarize computes the trip-level totals of a propagated table.
func Summarize(segments []domain.Segment, start time.Time) domain.TripSummary {
	if len(segments) == 0 {
		return domain.TripSummary{TotalTime: sim.FormatDuration(0)}
	}

	var (
		total    time.Duration
		calories float64
		bad      int
	)
	for i, s := range segments {
		if i > 0 {
			total += s.Elapsed
		}
		calories += s.Calories
		if !s.Converged {
			bad++
		}
	}

	last := segments[len(segments)-1]
	distanceKm := last.CumDistance / 1000

	summary := domain.TripSummary{
		DistanceKm:    math.Round(distanceKm*100) / 100,
		TotalTime:     sim.FormatDuration(total),
		TotalDuration: total,
		Calories:      calories,
		Gain:          last.CumGain,
		Loss:          math.Abs(last.CumLoss),
		Start:         start,
		End:           start.Add(total),
		Segments:      len(segments),
		NonConverged:  bad,
	}
	if hours := total.Hours(); hours > 0 {
		summary.AvgSpeed = distanceKm / hours
	}
	return summary
}
