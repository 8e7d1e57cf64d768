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
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"argus-rideplan/internal/domain"
	"argus-rideplan/internal/logging"
	"argus-rideplan/internal/metrics"

	"github.com/patrickmn/go-cache"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const cacheName = "weather"

// RetryConfig controls retries of a single lookup.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	EnableJitter      bool
}

// FetcherOptions tunes the batch lookup.
type FetcherOptions struct {
	Concurrency      int
	RateLimit        float64 // requests per second, <= 0 disables limiting
	Burst            int
	CacheTTL         time.Duration
	Retry            RetryConfig
	BreakerThreshold uint32 // consecutive failures before opening
	BreakerTimeout   time.Duration
	CacheKey         string // distinguishes providers sharing a cache, usually the model
}

func DefaultFetcherOptions() FetcherOptions {
	return FetcherOptions{
		Concurrency: 4,
		RateLimit:   5,
		Burst:       5,
		CacheTTL:    time.Hour,
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    200 * time.Millisecond,
			MaxBackoff:        2 * time.Second,
			BackoffMultiplier: 2.0,
			EnableJitter:      true,
		},
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
		CacheKey:         DefaultModel,
	}
}

// Fetcher runs the lookups for every flagged segment of a table.
type Fetcher struct {
	provider domain.WeatherProvider
	opts     FetcherOptions
	limiter  *rate.Limiter
	cache    *cache.Cache
	breaker  *gobreaker.CircuitBreaker
	log      *zap.Logger
}

func NewFetcher(provider domain.WeatherProvider, opts FetcherOptions, logger *zap.Logger) *Fetcher {
	log := logging.Or(logger).Named("weather")

	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	threshold := opts.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}

	name := "weather-" + opts.CacheKey
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Requests the API answered correctly are not provider failures.
			return err == nil || errors.Is(err, ErrOutOfRange) || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.RecordBreakerState(name, breakerStateValue(to))
		},
	})

	return &Fetcher{
		provider: provider,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, opts.Burst),
		cache:    cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		breaker:  breaker,
		log:      log,
	}
}

// Fetch performs every request and returns the forecasts by segment index.
// A failed lookup is logged and left out of the map; it never cancels the
// others. Only a cancelled ctx stops the batch early.
func (f *Fetcher) Fetch(ctx context.Context, reqs []domain.ForecastRequest) map[int]*domain.Forecast {
	results := make(map[int]*domain.Forecast, len(reqs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Concurrency)

	for _, req := range reqs {
		req := req
		g.Go(func() error {
			fc, err := f.lookup(gctx, req)
			if err != nil {
				f.log.Warn("weather lookup failed",
					zap.Int("segment", req.Index),
					zap.Time("passage_time", req.PassageTime),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			results[req.Index] = fc
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Forecast makes the Fetcher itself usable as a provider.
func (f *Fetcher) Forecast(ctx context.Context, req domain.ForecastRequest) (*domain.Forecast, error) {
	return f.lookup(ctx, req)
}

func (f *Fetcher) lookup(ctx context.Context, req domain.ForecastRequest) (*domain.Forecast, error) {
	key := f.key(req)
	if v, ok := f.cache.Get(key); ok {
		metrics.RecordCacheHit(cacheName)
		metrics.RecordWeatherRequest(metrics.OutcomeCached)
		return v.(*domain.Forecast), nil
	}
	metrics.RecordCacheMiss(cacheName)

	fc, err := f.retry(ctx, req)
	switch {
	case err == nil:
		metrics.RecordWeatherRequest(metrics.OutcomeSuccess)
		f.cache.Set(key, fc, cache.DefaultExpiration)
		return fc, nil
	case errors.Is(err, ErrOutOfRange):
		metrics.RecordWeatherRequest(metrics.OutcomeOutOfRange)
	case errors.Is(err, ErrCircuitOpen):
		metrics.RecordWeatherRequest(metrics.OutcomeRejected)
	default:
		metrics.RecordWeatherRequest(metrics.OutcomeError)
	}
	return nil, err
}

func (f *Fetcher) retry(ctx context.Context, req domain.ForecastRequest) (*domain.Forecast, error) {
	cfg := f.opts.Retry
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fc, err := f.call(ctx, req)
		if err == nil {
			if attempt > 1 {
				f.log.Info("weather lookup succeeded after retry",
					zap.Int("segment", req.Index),
					zap.Int("attempt", attempt),
				)
			}
			return fc, nil
		}
		lastErr = err
		if !retryable(err) || attempt == cfg.MaxAttempts {
			break
		}

		wait := backoff(cfg, attempt)
		f.log.Debug("retrying weather lookup",
			zap.Int("segment", req.Index),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (f *Fetcher) call(ctx context.Context, req domain.ForecastRequest) (*domain.Forecast, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := f.breaker.Execute(func() (interface{}, error) {
		return f.provider.Forecast(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return res.(*domain.Forecast), nil
}

func (f *Fetcher) key(req domain.ForecastRequest) string {
	return fmt.Sprintf("%s:%.4f:%.4f:%d:%.0f",
		f.opts.CacheKey, req.Latitude, req.Longitude, req.PassageTime.Unix(), req.Bearing)
}

// Merge returns a copy of the table with forecasts attached by segment index.
// Segments without a result keep a nil Forecast.
func Merge(segments []domain.Segment, forecasts map[int]*domain.Forecast) []domain.Segment {
	out := make([]domain.Segment, len(segments))
	for i, s := range segments {
		if fc, ok := forecasts[s.Index]; ok {
			s.Forecast = fc
		}
		out[i] = s
	}
	return out
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

func isClientError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == ErrCodeBadRequest
}

func backoff(cfg RetryConfig, attempt int) time.Duration {
	mult := cfg.BackoffMultiplier
	if mult <= 0 {
		mult = 2
	}
	d := float64(cfg.InitialBackoff) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxBackoff > 0 && d > float64(cfg.MaxBackoff) {
		d = float64(cfg.MaxBackoff)
	}
	if cfg.EnableJitter && d > 0 {
		d = d/2 + rand.Float64()*d/2
	}
	return time.Duration(d)
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 0.5
	case gobreaker.StateOpen:
		return 1
	default:
		return -1
	}
}
