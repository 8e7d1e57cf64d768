package storage

import (
	"path/filepath"
	"testing"
	"time"

	"argus-rideplan/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	defaults := domain.BikeProfile{
		BikeSetup: domain.BikeSetup{RiderMass: 60, BikeMass: 10, Crr: 0.004},
		Power:     100,
	}
	s, err := NewService(filepath.Join(t.TempDir(), "rideplan.db"), defaults, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func plan(id string, start time.Time, created time.Time, km float64) *domain.Plan {
	temp := 17.5
	return &domain.Plan{
		ID:        id,
		RouteName: "route-" + id,
		Power:     150,
		Setup:     domain.BikeSetup{RiderMass: 70, Crr: 0.005},
		Segments: []domain.Segment{
			{Index: 0, Latitude: 45, Longitude: 7, PassageTime: start, GetForecast: true,
				Forecast: &domain.Forecast{Temperature: &temp, Description: "Clear sky"}},
			{Index: 1, Latitude: 45.01, Longitude: 7, Distance: 1000, Elapsed: 2 * time.Minute,
				PassageTime: start.Add(2 * time.Minute)},
		},
		Summary:   domain.TripSummary{DistanceKm: km, TotalTime: "00:02:00", Start: start, End: start.Add(2 * time.Minute)},
		Stats:     domain.RouteStats{OriginalPoints: 10, SimplifiedPoints: 2},
		CreatedAt: created,
	}
}

func TestDefaultProfile(t *testing.T) {
	s := newTestService(t)

	p, err := s.GetProfile()
	require.NoError(t, err)
	assert.Equal(t, uint(1), p.ID)
	assert.Equal(t, "Cyclist", p.Name)
	assert.Equal(t, 60.0, p.RiderMass)
	assert.Equal(t, 100.0, p.Power)
}

func TestSaveProfile(t *testing.T) {
	s := newTestService(t)

	p, err := s.GetProfile()
	require.NoError(t, err)
	p.Name = "Climber"
	p.RiderMass = 58
	p.ID = 42
	require.NoError(t, s.SaveProfile(p))

	got, err := s.GetProfile()
	require.NoError(t, err)
	assert.Equal(t, uint(1), got.ID)
	assert.Equal(t, "Climber", got.Name)
	assert.Equal(t, 58.0, got.RiderMass)
}

func TestPlanRoundTrip(t *testing.T) {
	s := newTestService(t)
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	want := plan("a", start, start.Add(-time.Hour), 12.5)
	require.NoError(t, s.SavePlan(want))

	got, err := s.GetPlan("a")
	require.NoError(t, err)
	assert.Equal(t, want.RouteName, got.RouteName)
	assert.Equal(t, want.Setup, got.Setup)
	assert.Equal(t, want.Stats, got.Stats)
	require.Len(t, got.Segments, 2)
	assert.True(t, start.Add(2*time.Minute).Equal(got.Segments[1].PassageTime))
	assert.Equal(t, 2*time.Minute, got.Segments[1].Elapsed)
	require.NotNil(t, got.Segments[0].Forecast)
	assert.Equal(t, 17.5, *got.Segments[0].Forecast.Temperature)
	assert.True(t, want.Summary.End.Equal(got.Summary.End))
}

func TestGetPlanNotFound(t *testing.T) {
	s := newTestService(t)
	_, err := s.GetPlan("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPlansNewestFirst(t *testing.T) {
	s := newTestService(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SavePlan(plan("old", base, base, 10)))
	require.NoError(t, s.SavePlan(plan("new", base, base.Add(time.Hour), 20)))
	require.NoError(t, s.SavePlan(plan("mid", base, base.Add(30*time.Minute), 30)))

	all, err := s.ListPlans(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, 20.0, all[0].DistanceKm)

	two, err := s.ListPlans(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	assert.InDelta(t, 60.0, s.TotalPlannedDistance(), 1e-9)
}

func TestPlansByMonth(t *testing.T) {
	s := newTestService(t)
	june := time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)
	july := time.Date(2025, 7, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SavePlan(plan("june", june, june, 10)))
	require.NoError(t, s.SavePlan(plan("july", july, july, 10)))

	got, err := s.PlansByMonth("2025-06")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "june", got[0].ID)
}

func TestDeletePlan(t *testing.T) {
	s := newTestService(t)
	now := time.Now()
	require.NoError(t, s.SavePlan(plan("x", now, now, 1)))

	require.NoError(t, s.DeletePlan("x"))
	assert.ErrorIs(t, s.DeletePlan("x"), ErrNotFound)
	_, err := s.GetPlan("x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmptyTotalDistance(t *testing.T) {
	assert.Zero(t, newTestService(t).TotalPlannedDistance())
}
