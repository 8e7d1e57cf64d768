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

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"argus-rideplan/internal/domain"
	"argus-rideplan/internal/service/forecast"
	"argus-rideplan/internal/service/pipeline"
	"argus-rideplan/internal/service/route"
	"argus-rideplan/internal/service/sim"
	"argus-rideplan/internal/service/weather"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "RIDEPLAN"

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Route   RouteConfig   `mapstructure:"route"`
	Bike    BikeConfig    `mapstructure:"bike"`
	Ride    RideConfig    `mapstructure:"ride"`
	Weather WeatherConfig `mapstructure:"weather"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
}

type AppConfig struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

type RouteConfig struct {
	MinDistance     float64 `mapstructure:"min_distance"`
	SmoothingWindow int     `mapstructure:"smoothing_window"`
	PolyOrder       int     `mapstructure:"poly_order"`
}

type BikeConfig struct {
	RiderMass           float64 `mapstructure:"rider_mass"`
	BikeMass            float64 `mapstructure:"bike_mass"`
	LoadMass            float64 `mapstructure:"load_mass"`
	Crr                 float64 `mapstructure:"crr"`
	Cd                  float64 `mapstructure:"cd"`
	FrontalArea         float64 `mapstructure:"frontal_area"`
	DrivetrainLoss      float64 `mapstructure:"drivetrain_loss"`
	MetabolicEfficiency float64 `mapstructure:"metabolic_efficiency"`
	MaxDescentSpeed     float64 `mapstructure:"max_descent_speed"`
	AirDensity          float64 `mapstructure:"air_density"`
	Tyre                string  `mapstructure:"tyre"`
	Position            string  `mapstructure:"position"`
}

type RideConfig struct {
	Power          float64       `mapstructure:"power"`
	Start          string        `mapstructure:"start"` // RFC3339 or "2006-01-02 15:04", empty = next quarter hour
	ForecastWindow time.Duration `mapstructure:"forecast_window"`
}

type WeatherConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	BaseURL          string        `mapstructure:"base_url"`
	Model            string        `mapstructure:"model"`
	Timeout          time.Duration `mapstructure:"timeout"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	RateLimit        float64       `mapstructure:"rate_limit"`
	Burst            int           `mapstructure:"burst"`
	Concurrency      int           `mapstructure:"concurrency"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
}

type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// flag name -> config key
var flagKeys = map[string]string{
	"env":          "app.environment",
	"log-level":    "app.log_level",
	"min-distance": "route.min_distance",
	"power":        "ride.power",
	"start":        "ride.start",
	"window":       "ride.forecast_window",
	"weather":      "weather.enabled",
	"model":        "weather.model",
	"tyre":         "bike.tyre",
	"position":     "bike.position",
	"rider-mass":   "bike.rider_mass",
	"addr":         "server.address",
	"db":           "storage.path",
}

// Flags registers the configuration flags on fs.
func Flags(fs *pflag.FlagSet) {
	def := sim.DefaultSetup()
	fs.String("config", "", "path to a config file (yaml, json or toml)")
	fs.String("env", "development", "environment (development or production)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Float64("min-distance", route.DefaultMinDistance, "minimum spacing between kept points (m)")
	fs.Float64("power", 100, "average power (W)")
	fs.String("start", "", "ride start time, RFC3339 or \"2006-01-02 15:04\" (default next quarter hour)")
	fs.Duration("window", forecast.DefaultWindow, "forecast selection window around each quarter hour")
	fs.Bool("weather", false, "fetch the forecast for the flagged segments")
	fs.String("model", weather.DefaultModel, "forecast model")
	fs.String("tyre", "", "tyre preset, overrides crr")
	fs.String("position", "", "riding position preset, overrides cd and frontal area")
	fs.Float64("rider-mass", def.RiderMass, "rider mass (kg)")
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("db", "rideplan.db", "sqlite database path")
}

func setDefaults(v *viper.Viper) {
	def := sim.DefaultSetup()

	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "")

	v.SetDefault("route.min_distance", route.DefaultMinDistance)
	v.SetDefault("route.smoothing_window", route.DefaultSmoothingWindow)
	v.SetDefault("route.poly_order", route.DefaultPolyOrder)

	v.SetDefault("bike.rider_mass", def.RiderMass)
	v.SetDefault("bike.bike_mass", def.BikeMass)
	v.SetDefault("bike.load_mass", def.LoadMass)
	v.SetDefault("bike.crr", def.Crr)
	v.SetDefault("bike.cd", def.Cd)
	v.SetDefault("bike.frontal_area", def.FrontalArea)
	v.SetDefault("bike.drivetrain_loss", def.DrivetrainLoss)
	v.SetDefault("bike.metabolic_efficiency", def.MetabolicEfficiency)
	v.SetDefault("bike.max_descent_speed", def.MaxDescentSpeed)
	v.SetDefault("bike.air_density", def.AirDensity)
	v.SetDefault("bike.tyre", "")
	v.SetDefault("bike.position", "")

	v.SetDefault("ride.power", 100.0)
	v.SetDefault("ride.start", "")
	v.SetDefault("ride.forecast_window", forecast.DefaultWindow)

	wd := weather.DefaultFetcherOptions()
	v.SetDefault("weather.enabled", false)
	v.SetDefault("weather.base_url", weather.DefaultBaseURL)
	v.SetDefault("weather.model", weather.DefaultModel)
	v.SetDefault("weather.timeout", 10*time.Second)
	v.SetDefault("weather.cache_ttl", wd.CacheTTL)
	v.SetDefault("weather.rate_limit", wd.RateLimit)
	v.SetDefault("weather.burst", wd.Burst)
	v.SetDefault("weather.concurrency", wd.Concurrency)
	v.SetDefault("weather.retry_attempts", wd.Retry.MaxAttempts)
	v.SetDefault("weather.breaker_threshold", int(wd.BreakerThreshold))
	v.SetDefault("weather.breaker_timeout", wd.BreakerTimeout)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("storage.path", "rideplan.db")
}

// Load reads configuration from defaults, an optional config file, the
// environment (RIDEPLAN_ prefix, a .env file is honoured) and the flags in fs
// that were set. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects non-physical or unusable settings.
func (c *Config) Validate() error {
	var errs []error
	b := c.Bike

	if b.RiderMass <= 0 {
		errs = append(errs, fmt.Errorf("bike.rider_mass must be positive, got %v", b.RiderMass))
	}
	if b.BikeMass <= 0 {
		errs = append(errs, fmt.Errorf("bike.bike_mass must be positive, got %v", b.BikeMass))
	}
	if b.LoadMass < 0 {
		errs = append(errs, fmt.Errorf("bike.load_mass must not be negative, got %v", b.LoadMass))
	}
	if b.Crr < 0 || b.Cd < 0 || b.FrontalArea < 0 {
		errs = append(errs, errors.New("bike.crr, bike.cd and bike.frontal_area must not be negative"))
	}
	if b.DrivetrainLoss < 0 || b.DrivetrainLoss >= 1 {
		errs = append(errs, fmt.Errorf("bike.drivetrain_loss must be in [0, 1), got %v", b.DrivetrainLoss))
	}
	if b.MetabolicEfficiency <= 0 || b.MetabolicEfficiency > 1 {
		errs = append(errs, fmt.Errorf("bike.metabolic_efficiency must be in (0, 1], got %v", b.MetabolicEfficiency))
	}
	if b.AirDensity <= 0 {
		errs = append(errs, fmt.Errorf("bike.air_density must be positive, got %v", b.AirDensity))
	}
	if _, err := sim.ApplyPresets(domain.BikeSetup{}, b.Tyre, b.Position); err != nil {
		errs = append(errs, err)
	}

	if c.Route.MinDistance < 0 {
		errs = append(errs, fmt.Errorf("route.min_distance must not be negative, got %v", c.Route.MinDistance))
	}
	if c.Route.PolyOrder < 0 {
		errs = append(errs, fmt.Errorf("route.poly_order must not be negative, got %v", c.Route.PolyOrder))
	}
	if c.Ride.ForecastWindow < 0 {
		errs = append(errs, fmt.Errorf("ride.forecast_window must not be negative, got %v", c.Ride.ForecastWindow))
	}
	if c.Ride.Start != "" {
		if _, err := ParseStart(c.Ride.Start, time.Local); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Weather.Enabled && !weather.IsModel(c.Weather.Model) {
		errs = append(errs, fmt.Errorf("weather.model %q is not supported (known: %v)", c.Weather.Model, weather.ModelIDs()))
	}

	return errors.Join(errs...)
}

// BikeSetup returns the configured setup with tyre and position presets applied.
func (c *Config) BikeSetup() (domain.BikeSetup, error) {
	b := c.Bike
	setup := domain.BikeSetup{
		RiderMass:           b.RiderMass,
		BikeMass:            b.BikeMass,
		LoadMass:            b.LoadMass,
		Crr:                 b.Crr,
		Cd:                  b.Cd,
		FrontalArea:         b.FrontalArea,
		DrivetrainLoss:      b.DrivetrainLoss,
		MetabolicEfficiency: b.MetabolicEfficiency,
		MaxDescentSpeed:     b.MaxDescentSpeed,
		AirDensity:          b.AirDensity,
	}
	return sim.ApplyPresets(setup, b.Tyre, b.Position)
}

// PipelineOptions maps the route and ride groups onto the pipeline stages.
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Route: route.Options{
			MinDistance:     c.Route.MinDistance,
			SmoothingWindow: c.Route.SmoothingWindow,
			PolyOrder:       c.Route.PolyOrder,
		},
		ForecastWindow: c.Ride.ForecastWindow,
	}
}

// FetcherOptions maps the weather group onto the batch fetcher.
func (c *Config) FetcherOptions() weather.FetcherOptions {
	opts := weather.DefaultFetcherOptions()
	w := c.Weather
	opts.Concurrency = w.Concurrency
	opts.RateLimit = w.RateLimit
	opts.Burst = w.Burst
	opts.CacheTTL = w.CacheTTL
	opts.Retry.MaxAttempts = w.RetryAttempts
	if w.BreakerThreshold > 0 {
		opts.BreakerThreshold = uint32(w.BreakerThreshold)
	}
	opts.BreakerTimeout = w.BreakerTimeout
	opts.CacheKey = w.Model
	return opts
}

var startLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04"}

// ParseStart parses a ride start time. Layouts without a zone use loc.
func ParseStart(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid start time %q (use RFC3339 or \"2006-01-02 15:04\")", s)
}

// StartTime resolves the configured start, defaulting to the next quarter
// hour at least five minutes after now.
func (c *Config) StartTime(now time.Time) (time.Time, error) {
	if c.Ride.Start == "" {
		return forecast.NextQuarterHour(now), nil
	}
	return ParseStart(c.Ride.Start, now.Location())
}
