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


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"argus-rideplan/internal/api"
	"argus-rideplan/internal/config"
	"argus-rideplan/internal/domain"
	"argus-rideplan/internal/logging"
	"argus-rideplan/internal/service/export"
	"argus-rideplan/internal/service/gpx"
	"argus-rideplan/internal/service/planner"
	"argus-rideplan/internal/service/storage"
	"argus-rideplan/internal/service/weather"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// App wires the services together for the command line and the HTTP server.
type App struct {
	cfg   *config.Config
	log   *zap.Logger
	setup domain.BikeSetup

	gpxService     *gpx.Service
	storageService *storage.Service
	fetcher        *weather.Fetcher
	planner        *planner.Service
}

// NewApp initializes all core services from the configuration.
func NewApp(cfg *config.Config) (*App, error) {
	log := logging.Get()

	setup, err := cfg.BikeSetup()
	if err != nil {
		return nil, err
	}

	// Persistent storage (SQLite), seeded with the configured setup
	store, err := storage.NewService(cfg.Storage.Path, domain.BikeProfile{
		Name:      "Cyclist",
		BikeSetup: setup,
		Power:     cfg.Ride.Power,
	}, log)
	if err != nil {
		return nil, err
	}

	provider := weather.NewOpenMeteo(cfg.Weather.BaseURL, cfg.Weather.Model, cfg.Weather.Timeout)
	fetcher := weather.NewFetcher(provider, cfg.FetcherOptions(), log)

	return &App{
		cfg:            cfg,
		log:            log,
		setup:          setup,
		gpxService:     gpx.NewService(),
		storageService: store,
		fetcher:        fetcher,
		planner:        planner.New(setup, cfg.Ride.Power, cfg.PipelineOptions(), fetcher, store, log),
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.storageService.Close()
}

// PlanFile builds and stores the plan of a GPX file using the configured
// setup, power and start time.
func (a *App) PlanFile(ctx context.Context, path string) (*domain.Plan, error) {
	track, err := a.gpxService.LoadTrack(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	start, err := a.cfg.StartTime(time.Now())
	if err != nil {
		return nil, err
	}
	window := a.cfg.Ride.ForecastWindow

	plan, err := a.planner.Plan(ctx, track.Name, track.Points, planner.Params{
		Setup:   &a.setup,
		Power:   a.cfg.Ride.Power,
		Start:   start,
		Weather: a.cfg.Weather.Enabled,
		Window:  &window,
	})
	if err != nil {
		return nil, err
	}
	if len(plan.Segments) == 0 {
		return nil, fmt.Errorf("%s: no usable points after simplification", path)
	}
	return plan, nil
}

// ExportPlan writes the plan in the named format and returns the written path.
func (a *App) ExportPlan(plan *domain.Plan, format, path string) (string, error) {
	f, err := export.Lookup(format)
	if err != nil {
		return "", err
	}
	if filepath.Ext(path) == "" {
		path += f.Extension
	}

	if s, ok := f.Exporter.(interface {
		Save(path string, plan *domain.Plan) error
	}); ok {
		if err := s.Save(path, plan); err != nil {
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		return path, nil
	}

	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if err := f.Exporter.Export(out, plan); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, out.Close()
}

// History lists the most recent stored plans.
func (a *App) History(limit int) ([]domain.PlanInfo, error) {
	return a.storageService.ListPlans(limit)
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	handlers := api.NewHandlers(a.planner, a.storageService, a.gpxService, time.Local)
	srv := &http.Server{
		Addr:              a.cfg.Server.Address,
		Handler:           api.NewRouter(handlers, a.cfg.Server.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.log.Info("server stopped")
	return nil
}

// printSummary writes the trip summary and the forecast table.
func printSummary(w io.Writer, plan *domain.Plan) {
	s := plan.Summary
	fmt.Fprintf(w, "Route:      %s\n", orDefault(plan.RouteName, "Untitled Route"))
	fmt.Fprintf(w, "Plan:       %s\n", plan.ID)
	fmt.Fprintf(w, "Distance:   %.2f km (+%.0f m / -%.0f m)\n", s.DistanceKm, s.Gain, s.Loss)
	fmt.Fprintf(w, "Time:       %s at %.0f W (avg %.1f km/h)\n", s.TotalTime, plan.Power, s.AvgSpeed)
	fmt.Fprintf(w, "Start/End:  %s -> %s\n", s.Start.Format("2006-01-02 15:04"), s.End.Format("15:04"))
	fmt.Fprintf(w, "Calories:   %.0f kcal\n", s.Calories)
	fmt.Fprintf(w, "Segments:   %d (%d of %d points kept)\n", s.Segments, plan.Stats.SimplifiedPoints, plan.Stats.OriginalPoints)
	if s.NonConverged > 0 {
		fmt.Fprintf(w, "Warning:    %d segments did not converge\n", s.NonConverged)
	}

	var rows []domain.Segment
	for _, seg := range plan.Segments {
		if seg.GetForecast {
			rows = append(rows, seg)
		}
	}
	if len(rows) == 0 {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKM\tELE\tWEATHER\tTEMP\tWIND\tTAIL\tRAIN")
	for _, seg := range rows {
		fc := seg.Forecast
		cols := []string{
			seg.PassageTime.Format("15:04"),
			fmt.Sprintf("%.1f", seg.CumDistance/1000),
			fmt.Sprintf("%.0f", seg.ElevationSmooth),
		}
		if fc == nil {
			cols = append(cols, "-", "-", "-", "-", "-")
		} else {
			cols = append(cols,
				orDefault(fc.Description, "-"),
				value(fc.Temperature, "%.1f°C"),
				value(fc.WindSpeed, "%.0f km/h"),
				value(fc.Tailwind, "%+.1f"),
				value(fc.Precipitation, "%.1f mm"),
			)
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	_ = tw.Flush()
}

func printHistory(w io.Writer, plans []domain.PlanInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tROUTE\tSTART\tKM\tTIME\tPOWER")
	for _, p := range plans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%.0f\n",
			p.ID, orDefault(p.RouteName, "-"), p.Start.Format("2006-01-02 15:04"), p.DistanceKm, p.TotalTime, p.Power)
	}
	_ = tw.Flush()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func value(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
