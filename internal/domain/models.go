package domain

import "time"

// TrackPoint is one raw sample of the recorded route.
// The order of a []TrackPoint is the route order and must never be sorted.
type TrackPoint struct {
	Latitude  float64   `json:"lat"`            // Latitude in degrees
	Longitude float64   `json:"lon"`            // Longitude in degrees
	Elevation float64   `json:"ele"`            // Elevation in meters
	Time      time.Time `json:"time,omitempty"` // Optional, zero when absent
}

// HasTime reports whether the sample carried its own timestamp.
func (p TrackPoint) HasTime() bool {
	return !p.Time.IsZero()
}

// Segment is one row of the derived route table.
// Index 0 is the start of the route and carries zeroed deltas.
type Segment struct {
	Index int `json:"index"`

	// Geometry (route stage)
	Latitude        float64 `json:"lat"`
	Longitude       float64 `json:"lon"`
	Elevation       float64 `json:"ele"`             // Raw elevation (m)
	ElevationSmooth float64 `json:"ele_smooth"`      // Smoothed elevation (m)
	Distance        float64 `json:"distance"`        // Distance from the previous point (m)
	Bearing         float64 `json:"bearing"`         // Initial bearing from the previous point (deg)
	ElevationDelta  float64 `json:"elevation_delta"` // Signed smoothed delta (m)
	Slope           float64 `json:"slope"`           // Grade in %
	CumDistance     float64 `json:"cum_distance"`    // Running sum of Distance (m)
	CumGain         float64 `json:"cum_gain"`        // Running sum of positive deltas (m)
	CumLoss         float64 `json:"cum_loss"`        // Running sum of negative deltas (m, <= 0)

	// Physics (solver stage)
	Speed      float64         `json:"speed"` // km/h
	Power      PowerComponents `json:"power"`
	Elapsed    time.Duration   `json:"elapsed"`
	TimeStr    string          `json:"time_str"`
	VAM        float64         `json:"vam"`
	Calories   float64         `json:"calories"`
	Converged  bool            `json:"converged"`
	Iterations int             `json:"iterations"`

	// Schedule (propagation and forecast stages)
	PassageTime time.Time `json:"passage_time"`
	GetForecast bool      `json:"get_forecast"`
	Forecast    *Forecast `json:"forecast,omitempty"`
}

// BikeSetup holds the rider and bicycle configuration used by the solver.
type BikeSetup struct {
	RiderMass           float64 `json:"rider_mass"`           // kg
	BikeMass            float64 `json:"bike_mass"`            // kg
	LoadMass            float64 `json:"load_mass"`            // bags, bottles, tools (kg)
	Crr                 float64 `json:"crr"`                  // Rolling resistance coefficient
	Cd                  float64 `json:"cd"`                   // Drag coefficient
	FrontalArea         float64 `json:"frontal_area"`         // m²
	DrivetrainLoss      float64 `json:"drivetrain_loss"`      // Fraction, e.g. 0.02
	MetabolicEfficiency float64 `json:"metabolic_efficiency"` // Fraction, e.g. 0.25
	MaxDescentSpeed     float64 `json:"max_descent_speed"`    // km/h, informational only
	AirDensity          float64 `json:"air_density"`          // kg/m³
}

// TotalMass is rider + bike + load.
func (b BikeSetup) TotalMass() float64 {
	return b.RiderMass + b.BikeMass + b.LoadMass
}

// PowerComponents is the force balance at the solved speed, in watts.
type PowerComponents struct {
	Gravity        float64 `json:"gravity"`
	Rolling        float64 `json:"rolling"`
	Drag           float64 `json:"drag"`
	DrivetrainLoss float64 `json:"drivetrain_loss"`
	PowerPerKg     float64 `json:"p_rel"` // Total power over rider mass (W/kg)
}

// SegmentInfo holds the quantities derived from the solved speed.
type SegmentInfo struct {
	Grade     float64 `json:"grade"` // %
	TimeHours float64 `json:"time_h"`
	TimeStr   string  `json:"time_str"` // HH:MM:SS
	VAM       float64 `json:"vam"`      // m/h
	Calories  float64 `json:"calories"` // kcal
}

// SolverResult is the fixed-shape output of one power-to-speed solve.
type SolverResult struct {
	Speed      float64         `json:"speed"` // km/h, never negative
	Components PowerComponents `json:"components"`
	Info       SegmentInfo     `json:"info"`
	Iterations int             `json:"iterations"`
	Residual   float64         `json:"residual"`  // |P_total(v) - P_target| in watts
	Converged  bool            `json:"converged"` // Residual fell below tolerance
	Clamped    bool            `json:"clamped"`   // A negative root was clamped to 0
}

// TripSummary is computed once per route after propagation.
type TripSummary struct {
	DistanceKm    float64       `json:"distance_km"`
	TotalTime     string        `json:"total_time"` // HH:MM:SS
	TotalDuration time.Duration `json:"total_duration"`
	AvgSpeed      float64       `json:"avg_speed"` // km/h
	Calories      float64       `json:"calories"`  // kcal
	Gain          float64       `json:"gain"`      // m
	Loss          float64       `json:"loss"`      // m, absolute
	Start         time.Time     `json:"start"`
	End           time.Time     `json:"end"`
	Segments      int           `json:"segments"`
	NonConverged  int           `json:"non_converged"`
}

// RouteStats mirrors the quick statistics shown after loading a route.
type RouteStats struct {
	DistanceKm       float64 `json:"distance_km"`
	Gain             float64 `json:"gain"`
	Loss             float64 `json:"loss"`
	MeanSlope        float64 `json:"mean_slope"`
	MaxSlope         float64 `json:"max_slope"`
	OriginalPoints   int     `json:"original_points"`
	SimplifiedPoints int     `json:"simplified_points"`
}

// ForecastRequest is what the core exposes for each flagged segment.
type ForecastRequest struct {
	Index       int       `json:"index"`
	Latitude    float64   `json:"lat"`
	Longitude   float64   `json:"lon"`
	PassageTime time.Time `json:"passage_time"`
	Bearing     float64   `json:"bearing"`
}

// Forecast is the flat set of weather fields merged back by segment index.
// Nil numeric fields mean the provider had no value.
type Forecast struct {
	Temperature   *float64  `json:"temp,omitempty"`     // °C
	Precipitation *float64  `json:"prec_mm,omitempty"`  // mm
	Rain          *float64  `json:"rain,omitempty"`     // mm
	Snowfall      *float64  `json:"snowfall,omitempty"` // cm
	WindSpeed     *float64  `json:"ws_10m_kmh,omitempty"`
	WindDirection *float64  `json:"wd_10m_deg,omitempty"`
	Tailwind      *float64  `json:"tailwind,omitempty"`  // km/h, positive = favorable
	Crosswind     *float64  `json:"crosswind,omitempty"` // km/h
	WeatherCode   *int      `json:"wmo_code,omitempty"`
	Description   string    `json:"wmo_description"`
	UVIndex       *float64  `json:"uv_index,omitempty"`
	CloudCover    *float64  `json:"cloud_cover,omitempty"` // %
	Model         string    `json:"model"`
	SampleTime    time.Time `json:"sample_time"`
}

// Plan is the immutable result of one pipeline run.
type Plan struct {
	ID        string      `json:"id"`
	RouteName string      `json:"route_name"`
	Power     float64     `json:"power"`
	Setup     BikeSetup   `json:"setup"`
	Segments  []Segment   `json:"segments"`
	Summary   TripSummary `json:"summary"`
	Stats     RouteStats  `json:"stats"`
	CreatedAt time.Time   `json:"created_at"`
}

// PlanInfo is the list view of a stored plan.
type PlanInfo struct {
	ID         string    `json:"id"`
	RouteName  string    `json:"route_name"`
	Power      float64   `json:"power"`
	DistanceKm float64   `json:"distance_km"`
	TotalTime  string    `json:"total_time"`
	Start      time.Time `json:"start"`
	CreatedAt  time.Time `json:"created_at"`
}

// ===============
// DATABASE MODELS
// ===============

// BikeProfile stores a named bike/rider setup.
type BikeProfile struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	BikeSetup `gorm:"embedded"`
	Power     float64   `json:"power"` // Default average power (W)
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
