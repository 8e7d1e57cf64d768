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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"argus-rideplan/internal/domain"
)

const DefaultBaseURL = "https://api.open-meteo.com"

var (
	// ErrOutOfRange means the passage time is outside the published forecast.
	ErrOutOfRange = errors.New("passage time outside forecast range")
	// ErrCircuitOpen is returned while the breaker refuses requests.
	ErrCircuitOpen = errors.New("weather circuit breaker open")
)

// Provider error codes.
const (
	ErrCodeNetwork     = "NETWORK_ERROR"
	ErrCodeRateLimited = "RATE_LIMITED"
	ErrCodeBadRequest  = "BAD_REQUEST"
	ErrCodeUpstream    = "UPSTREAM_ERROR"
	ErrCodeDecode      = "DECODE_ERROR"
)

// ProviderError describes a failed call to the forecast API.
type ProviderError struct {
	Code       string
	Message    string
	StatusCode int
	Details    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request may succeed later.
func (e *ProviderError) Retryable() bool {
	switch e.Code {
	case ErrCodeNetwork, ErrCodeRateLimited, ErrCodeUpstream:
		return true
	}
	return false
}

var (
	minutelyVars = []string{
		"temperature_2m", "precipitation", "rain", "snowfall",
		"weather_code", "wind_speed_10m", "wind_direction_10m",
	}
	hourlyVars = []string{"uv_index", "cloud_cover"}
)

type series map[string]json.RawMessage

type forecastResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Minutely  series  `json:"minutely_15"`
	Hourly    series  `json:"hourly"`
}

type apiError struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// OpenMeteo queries the Open-Meteo forecast API for one point at a time.
type OpenMeteo struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

// NewOpenMeteo creates a provider. Empty values fall back to the public API
// and the best match model.
func NewOpenMeteo(baseURL, model string, timeout time.Duration) *OpenMeteo {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenMeteo{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Forecast returns the samples closest to the passage time. Minutely values
// come from the 15-minute series, UV index and cloud cover from the hourly one.
func (p *OpenMeteo) Forecast(ctx context.Context, req domain.ForecastRequest) (*domain.Forecast, error) {
	var resp forecastResponse
	if err := p.doGET(ctx, p.query(req), &resp); err != nil {
		return nil, err
	}

	minTimes, err := resp.Minutely.times()
	if err != nil {
		return nil, err
	}
	if len(minTimes) == 0 {
		return nil, ErrOutOfRange
	}
	target := req.PassageTime.Unix()
	if target < minTimes[0] || target > minTimes[len(minTimes)-1] {
		return nil, fmt.Errorf("%w: %s", ErrOutOfRange, req.PassageTime.Format(time.RFC3339))
	}

	i := closest(minTimes, target)
	fc := &domain.Forecast{
		Model:      p.Model,
		SampleTime: time.Unix(minTimes[i], 0).In(req.PassageTime.Location()),
	}

	temp := resp.Minutely.value("temperature_2m", i)
	prec := resp.Minutely.value("precipitation", i)
	rain := resp.Minutely.value("rain", i)
	snow := resp.Minutely.value("snowfall", i)
	speed := resp.Minutely.value("wind_speed_10m", i)
	dir := resp.Minutely.value("wind_direction_10m", i)

	fc.Temperature = roundPtr(temp, 1)
	fc.Precipitation = roundPtr(prec, 1)
	fc.Rain = roundPtr(rain, 1)
	fc.Snowfall = roundPtr(snow, 1)
	fc.WindSpeed = roundPtr(speed, 1)
	fc.WindDirection = roundPtr(dir, 0)

	if speed != nil && dir != nil {
		tail, cross := WindComponents(*speed, *dir, req.Bearing)
		fc.Tailwind, fc.Crosswind = &tail, &cross
	}

	if code := resp.Minutely.value("weather_code", i); code != nil {
		c := int(*code)
		fc.WeatherCode = &c
		fc.Description = DescribeCode(c)
	} else {
		fc.Description = DescribeCode(-1)
	}

	if hourTimes, err := resp.Hourly.times(); err == nil && len(hourTimes) > 0 {
		h := closest(hourTimes, target)
		fc.UVIndex = roundPtr(resp.Hourly.value("uv_index", h), 1)
		fc.CloudCover = roundPtr(resp.Hourly.value("cloud_cover", h), 0)
	}

	return fc, nil
}

func (p *OpenMeteo) query(req domain.ForecastRequest) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(req.Latitude, 'f', 6, 64))
	q.Set("longitude", strconv.FormatFloat(req.Longitude, 'f', 6, 64))
	q.Set("minutely_15", strings.Join(minutelyVars, ","))
	q.Set("hourly", strings.Join(hourlyVars, ","))
	q.Set("models", p.Model)
	q.Set("timezone", "auto")
	q.Set("timeformat", "unixtime")
	return "/v1/forecast?" + q.Encode()
}

func (p *OpenMeteo) doGET(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+endpoint, nil)
	if err != nil {
		return &ProviderError{Code: ErrCodeNetwork, Message: "Failed to create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return &ProviderError{Code: ErrCodeNetwork, Message: "Weather request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProviderError{Code: ErrCodeNetwork, Message: "Failed to read response body", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return buildHTTPError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &ProviderError{
			Code:       ErrCodeDecode,
			Message:    "Failed to decode response",
			StatusCode: resp.StatusCode,
			Details:    string(body),
			Err:        err,
		}
	}
	return nil
}

func buildHTTPError(status int, body []byte) error {
	reason := string(body)
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Reason != "" {
		reason = apiErr.Reason
	}

	e := &ProviderError{StatusCode: status, Details: string(body)}
	switch {
	case status == http.StatusTooManyRequests:
		e.Code = ErrCodeRateLimited
		e.Message = "Weather API rate limit exceeded"
	case status >= 500:
		e.Code = ErrCodeUpstream
		e.Message = fmt.Sprintf("Weather API returned HTTP %d", status)
	default:
		e.Code = ErrCodeBadRequest
		e.Message = fmt.Sprintf("Weather API rejected the request: %s", reason)
	}
	return e
}

func (s series) times() ([]int64, error) {
	raw, ok := s["time"]
	if !ok {
		return nil, nil
	}
	var t []int64
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, &ProviderError{Code: ErrCodeDecode, Message: "Failed to decode time axis", Err: err}
	}
	return t, nil
}

// value returns nil when the variable is missing, null or shorter than i.
func (s series) value(key string, i int) *float64 {
	raw, ok := s[key]
	if !ok {
		return nil
	}
	var vals []*float64
	if err := json.Unmarshal(raw, &vals); err != nil || i >= len(vals) {
		return nil
	}
	return vals[i]
}

// closest returns the first index with the smallest distance to target.
func closest(times []int64, target int64) int {
	best := 0
	bestDiff := abs64(times[0] - target)
	for i, t := range times[1:] {
		if d := abs64(t - target); d < bestDiff {
			best, bestDiff = i+1, d
		}
	}
	return best
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func roundPtr(v *float64, digits int) *float64 {
	if v == nil {
		return nil
	}
	r := round(*v, digits)
	return &r
}
