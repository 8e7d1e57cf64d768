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


package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"argus-rideplan/internal/config"
	"argus-rideplan/internal/domain"
	"argus-rideplan/internal/logging"
	"argus-rideplan/internal/service/export"
	"argus-rideplan/internal/service/gpx"
	"argus-rideplan/internal/service/planner"
	"argus-rideplan/internal/service/sim"
	"argus-rideplan/internal/service/storage"
	"argus-rideplan/internal/service/weather"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	maxUploadSize = 32 << 20
	defaultLimit  = 50
)

// Planner builds a plan from a track.
type Planner interface {
	Plan(ctx context.Context, name string, points []domain.TrackPoint, params planner.Params) (*domain.Plan, error)
}

type monthLister interface {
	PlansByMonth(month string) ([]domain.PlanInfo, error)
}

// Handlers serves the plan, profile and model endpoints.
type Handlers struct {
	planner Planner
	store   domain.PlanStore
	tracks  *gpx.Service
	loc     *time.Location
	started time.Time
}

// NewHandlers wires the handlers. Start times without a zone are read in loc.
func NewHandlers(p Planner, store domain.PlanStore, tracks *gpx.Service, loc *time.Location) *Handlers {
	if loc == nil {
		loc = time.Local
	}
	return &Handlers{planner: p, store: store, tracks: tracks, loc: loc, started: time.Now()}
}

type planRequest struct {
	Name          string         `json:"name"`
	Points        []pointPayload `json:"points"`
	Power         float64        `json:"power"`
	Start         string         `json:"start"`
	MinDistance   *float64       `json:"min_distance"`
	WindowMinutes *float64       `json:"window_minutes"`
	Weather       bool           `json:"weather"`

	track []domain.TrackPoint
}

// pointPayload is a track point as sent in a JSON body. Elevation is a
// pointer so a missing or null "ele" can be told apart from 0 m.
type pointPayload struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Elevation *float64  `json:"ele"`
	Time      time.Time `json:"time,omitempty"`
}

// trackPoints converts the payload, rejecting points without elevation the
// same way GPX uploads are rejected.
func trackPoints(payload []pointPayload) ([]domain.TrackPoint, error) {
	points := make([]domain.TrackPoint, len(payload))
	for i, p := range payload {
		if p.Elevation == nil {
			return nil, fmt.Errorf("point %d: %w", i, gpx.ErrMissingElevation)
		}
		points[i] = domain.TrackPoint{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Elevation: *p.Elevation,
			Time:      p.Time,
		}
	}
	return points, nil
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type modelsResponse struct {
	Models  []weather.Model `json:"models"`
	Default string          `json:"default"`
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondWithSuccess(w, r, http.StatusOK, &healthResponse{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

// Models lists the weather models a plan can be fetched with.
func (h *Handlers) Models(w http.ResponseWriter, r *http.Request) {
	respondWithSuccess(w, r, http.StatusOK, &modelsResponse{
		Models:  weather.Models(),
		Default: weather.DefaultModel,
	})
}

// CreatePlan accepts either a multipart upload with a "gpx" file field or a
// JSON body with the points inline.
func (h *Handlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var (
		req planRequest
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		req, err = h.readUpload(r)
	} else {
		err = json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req)
		if err != nil {
			err = fmt.Errorf("invalid request body: %w", err)
		} else {
			req.track, err = trackPoints(req.Points)
		}
	}
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, gpx.ErrNoPoints) || errors.Is(err, gpx.ErrMissingElevation) {
			status = http.StatusUnprocessableEntity
		}
		respondWithError(w, r, status, err.Error())
		return
	}

	params, err := h.params(req)
	if err != nil {
		respondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.planner.Plan(r.Context(), req.Name, req.track, params)
	if err != nil {
		if errors.Is(err, planner.ErrWeatherDisabled) {
			respondWithError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		logging.WithContext(r.Context()).Error("plan failed", zap.Error(err))
		respondWithError(w, r, http.StatusInternalServerError, "failed to build plan")
		return
	}
	if len(plan.Segments) == 0 {
		respondWithError(w, r, http.StatusUnprocessableEntity, "the route has no usable points")
		return
	}
	respondWithSuccess(w, r, http.StatusCreated, plan)
}

func (h *Handlers) readUpload(r *http.Request) (planRequest, error) {
	var req planRequest
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return req, fmt.Errorf("invalid upload: %w", err)
	}
	file, _, err := r.FormFile("gpx")
	if err != nil {
		return req, fmt.Errorf("missing gpx file: %w", err)
	}
	defer file.Close()

	track, err := h.tracks.ParseTrack(file)
	if err != nil {
		return req, err
	}
	req.Name = track.Name
	if name := r.FormValue("name"); name != "" {
		req.Name = name
	}
	req.track = track.Points
	req.Start = r.FormValue("start")
	req.Weather, _ = strconv.ParseBool(r.FormValue("weather"))

	if v := r.FormValue("power"); v != "" {
		if req.Power, err = strconv.ParseFloat(v, 64); err != nil {
			return req, fmt.Errorf("invalid power %q", v)
		}
	}
	if v := r.FormValue("min_distance"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("invalid min_distance %q", v)
		}
		req.MinDistance = &d
	}
	if v := r.FormValue("window_minutes"); v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("invalid window_minutes %q", v)
		}
		req.WindowMinutes = &m
	}
	return req, nil
}

func (h *Handlers) params(req planRequest) (planner.Params, error) {
	p := planner.Params{
		Power:       req.Power,
		Weather:     req.Weather,
		MinDistance: req.MinDistance,
	}
	if req.Power < 0 {
		return p, fmt.Errorf("power must not be negative")
	}
	if req.MinDistance != nil && *req.MinDistance < 0 {
		return p, fmt.Errorf("min_distance must not be negative")
	}
	if req.WindowMinutes != nil {
		if *req.WindowMinutes <= 0 {
			return p, fmt.Errorf("window_minutes must be positive")
		}
		win := time.Duration(*req.WindowMinutes * float64(time.Minute))
		p.Window = &win
	}
	if req.Start != "" {
		start, err := config.ParseStart(req.Start, h.loc)
		if err != nil {
			return p, err
		}
		p.Start = start
	}
	return p, nil
}

// ListPlans returns the stored plans, newest first. ?month=YYYY-MM filters by
// ride start when the store supports it.
func (h *Handlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	var (
		plans []domain.PlanInfo
		err   error
	)
	if month := r.URL.Query().Get("month"); month != "" {
		if _, perr := time.Parse("2006-01", month); perr != nil {
			respondWithError(w, r, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		ml, ok := h.store.(monthLister)
		if !ok {
			respondWithError(w, r, http.StatusNotImplemented, "month filter is not supported")
			return
		}
		plans, err = ml.PlansByMonth(month)
	} else {
		limit := defaultLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, perr := strconv.Atoi(v)
			if perr != nil || n <= 0 {
				respondWithError(w, r, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}
		plans, err = h.store.ListPlans(limit)
	}
	if err != nil {
		logging.WithContext(r.Context()).Error("list plans failed", zap.Error(err))
		respondWithError(w, r, http.StatusInternalServerError, "failed to list plans")
		return
	}
	if plans == nil {
		plans = []domain.PlanInfo{}
	}
	respondWithSuccess(w, r, http.StatusOK, &plans)
}

// GetPlan returns one stored plan.
func (h *Handlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondWithSuccess(w, r, http.StatusOK, plan)
}

// DeletePlan removes a stored plan.
func (h *Handlers) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeletePlan(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondWithError(w, r, http.StatusNotFound, "plan not found")
			return
		}
		logging.WithContext(r.Context()).Error("delete plan failed", zap.String("plan", id), zap.Error(err))
		respondWithError(w, r, http.StatusInternalServerError, "failed to delete plan")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportPlan streams a stored plan in the requested file format.
func (h *Handlers) ExportPlan(w http.ResponseWriter, r *http.Request) {
	format, err := export.Lookup(chi.URLParam(r, "format"))
	if err != nil {
		respondWithError(w, r, http.StatusNotFound, err.Error())
		return
	}
	plan, ok := h.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", format.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName(plan, format.Extension)))
	if err := format.Exporter.Export(w, plan); err != nil {
		// Headers are gone by now; the client sees a truncated body.
		logging.WithContext(r.Context()).Error("export failed",
			zap.String("plan", plan.ID),
			zap.String("format", format.Name),
			zap.Error(err),
		)
	}
}

// GetProfile returns the stored bike profile.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetProfile()
	if err != nil {
		logging.WithContext(r.Context()).Error("get profile failed", zap.Error(err))
		respondWithError(w, r, http.StatusInternalServerError, "failed to load profile")
		return
	}
	respondWithSuccess(w, r, http.StatusOK, &p)
}

// UpdateProfile replaces the stored bike profile.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p domain.BikeProfile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := sim.Validate(p.BikeSetup); err != nil {
		respondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if p.Power < 0 {
		respondWithError(w, r, http.StatusBadRequest, "power must not be negative")
		return
	}
	if err := h.store.SaveProfile(p); err != nil {
		logging.WithContext(r.Context()).Error("save profile failed", zap.Error(err))
		respondWithError(w, r, http.StatusInternalServerError, "failed to save profile")
		return
	}
	saved, err := h.store.GetProfile()
	if err != nil {
		respondWithError(w, r, http.StatusInternalServerError, "failed to load profile")
		return
	}
	respondWithSuccess(w, r, http.StatusOK, &saved)
}

func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (*domain.Plan, bool) {
	id := chi.URLParam(r, "id")
	plan, err := h.store.GetPlan(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondWithError(w, r, http.StatusNotFound, "plan not found")
			return nil, false
		}
		logging.WithContext(r.Context()).Error("get plan failed", zap.String("plan", id), zap.Error(err))
		respondWithError(w, r, http.StatusInternalServerError, "failed to load plan")
		return nil, false
	}
	return plan, true
}

func fileName(plan *domain.Plan, ext string) string {
	name := strings.TrimSpace(plan.RouteName)
	if name == "" {
		name = plan.ID
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ':', '*', '?', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	return name + ext
}
