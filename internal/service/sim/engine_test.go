package sim

import (
	"math"
	"testing"
	"time"

	"argus-rideplan/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureSetup is a 75 kg system with Cd·A = 0.4 m².
func fixtureSetup() domain.BikeSetup {
	return domain.BikeSetup{
		RiderMass:           65,
		BikeMass:            8,
		LoadMass:            2,
		Crr:                 0.004,
		Cd:                  1.0,
		FrontalArea:         0.4,
		DrivetrainLoss:      0.02,
		MetabolicEfficiency: 0.25,
		MaxDescentSpeed:     50,
		AirDensity:          DefaultAirDensity,
	}
}

func TestSolveFlatRegression(t *testing.T) {
	m := NewModel(fixtureSetup())
	res := m.Solve(Input{Power: 150, DistanceKm: 1})

	require.True(t, res.Converged)
	assert.InDelta(t, 28.6495, res.Speed, 0.001)
	assert.Less(t, res.Residual, Tolerance)
	assert.Zero(t, res.Info.Grade)
	assert.InDelta(t, 1/res.Speed, res.Info.TimeHours, 1e-12)
	assert.Equal(t, "00:02:05", res.Info.TimeStr)
	assert.Zero(t, res.Info.VAM)
}

func TestSolveSelfConsistency(t *testing.T) {
	m := NewModel(fixtureSetup())
	inputs := []Input{
		{Power: 150, DistanceKm: 1, Elevation: 0},
		{Power: 150, DistanceKm: 1, Elevation: 50},
		{Power: 250, DistanceKm: 0.2, Elevation: 30},
		{Power: 150, DistanceKm: 1, Elevation: -120},
		{Power: 0, DistanceKm: 1, Elevation: -120},
		{Power: 120, DistanceKm: 0.5, Elevation: -30, Wind: 15},
		{Power: 180, DistanceKm: 0.5, Elevation: 5, Wind: -20},
	}

	for _, in := range inputs {
		res := m.Solve(in)
		if !res.Converged {
			continue
		}
		p, _ := m.PowerAt(res.Speed, in)
		assert.InDelta(t, in.Power, p, Tolerance, "input %+v", in)
		assert.GreaterOrEqual(t, res.Speed, 0.0)
	}
}

func TestSolveFlatMonotonicInPower(t *testing.T) {
	m := NewModel(fixtureSetup())
	prev := -1.0
	for _, p := range []float64{50, 100, 150, 200, 300, 400} {
		res := m.Solve(Input{Power: p, DistanceKm: 1})
		require.True(t, res.Converged)
		assert.Greater(t, res.Speed, prev)
		prev = res.Speed
	}
}

func TestSolveClimbAndDescent(t *testing.T) {
	m := NewModel(fixtureSetup())

	climb := m.Solve(Input{Power: 150, DistanceKm: 1, Elevation: 50})
	require.True(t, climb.Converged)
	assert.InDelta(t, 12.42, climb.Speed, 0.01)
	assert.InDelta(t, 5, climb.Info.Grade, 1e-9)
	assert.InDelta(t, 50/climb.Info.TimeHours, climb.Info.VAM, 1e-9)
	assert.Greater(t, climb.Components.Gravity, 0.0)

	descent := m.Solve(Input{Power: 150, DistanceKm: 1, Elevation: -120})
	require.True(t, descent.Converged)
	assert.InDelta(t, 69.85, descent.Speed, 0.01)
	assert.Less(t, descent.Components.Gravity, 0.0)
	assert.Less(t, descent.Info.VAM, 0.0)
}

func TestSolveWind(t *testing.T) {
	m := NewModel(fixtureSetup())
	calm := m.Solve(Input{Power: 150, DistanceKm: 1})
	behind := m.Solve(Input{Power: 150, DistanceKm: 1, Wind: 10})
	ahead := m.Solve(Input{Power: 150, DistanceKm: 1, Wind: -10})

	assert.Greater(t, behind.Speed, calm.Speed)
	assert.Less(t, ahead.Speed, calm.Speed)
}

func TestSolveZeroDistance(t *testing.T) {
	m := NewModel(fixtureSetup())
	res := m.Solve(Input{Power: 150, DistanceKm: 0, Elevation: 12})

	assert.Zero(t, res.Info.Grade)
	assert.Zero(t, res.Info.TimeHours)
	assert.Equal(t, "00:00:00", res.Info.TimeStr)
	assert.Zero(t, res.Info.VAM)
	assert.Zero(t, res.Info.Calories)
	assert.False(t, math.IsNaN(res.Speed))
}

func TestSolveClampsNegativeRoot(t *testing.T) {
	// Negative power has no forward root on the flat.
	m := NewModel(fixtureSetup())
	res := m.Solve(Input{Power: -200, DistanceKm: 1})

	assert.GreaterOrEqual(t, res.Speed, 0.0)
	if res.Clamped {
		assert.False(t, res.Converged)
		assert.Zero(t, res.Info.TimeHours)
	}
}

func TestPowerBreakdown(t *testing.T) {
	m := NewModel(fixtureSetup())
	in := Input{Power: 200, DistanceKm: 1, Elevation: 20}
	total, comps := m.PowerAt(30, in)

	wheel := comps.Gravity + comps.Rolling + comps.Drag
	assert.InDelta(t, total, wheel+comps.DrivetrainLoss, 1e-9)
	assert.InDelta(t, wheel/(1-0.02), total, 1e-9)
	assert.InDelta(t, total/65, comps.PowerPerKg, 1e-9)
}

func TestCalories(t *testing.T) {
	m := NewModel(fixtureSetup())
	res := m.Solve(Input{Power: 150, DistanceKm: 10})
	want := 150 / 0.25 * res.Info.TimeHours * 3600 / 4184
	assert.InDelta(t, want, res.Info.Calories, 0.01)
}

func TestInitialGuess(t *testing.T) {
	assert.Equal(t, 30.0, InitialGuess(0.01))
	assert.Equal(t, 50.0, InitialGuess(0))
	assert.Equal(t, 50.0, InitialGuess(-0.049))
	assert.Equal(t, 70.0, InitialGuess(-0.05))
	assert.Equal(t, 70.0, InitialGuess(-0.099))
	assert.Equal(t, 100.0, InitialGuess(-0.10))
	assert.Equal(t, 100.0, InitialGuess(-0.5))
}

func TestNewModelDefaults(t *testing.T) {
	m := NewModel(domain.BikeSetup{Crr: 0.005})
	assert.Equal(t, 60.0, m.Setup.RiderMass)
	assert.Equal(t, 10.0, m.Setup.BikeMass)
	assert.Equal(t, 0.25, m.Setup.MetabolicEfficiency)
	assert.Equal(t, DefaultAirDensity, m.Setup.AirDensity)
	assert.Equal(t, 0.005, m.Setup.Crr)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "01:30:00", FormatHours(1.5))
	assert.Equal(t, "00:00:00", FormatHours(0))
	assert.Equal(t, "00:00:00", FormatHours(math.Inf(1)))
	assert.Equal(t, "02:03:04", FormatDuration(2*time.Hour+3*time.Minute+4*time.Second+900*time.Millisecond))
	assert.Equal(t, 90*time.Minute, Elapsed(1.5))
	assert.Zero(t, Elapsed(-1))
}

func TestApplyPresets(t *testing.T) {
	setup, err := ApplyPresets(DefaultSetup(), "Slick 28mm", "Drop")
	require.NoError(t, err)
	assert.Equal(t, 0.0032, setup.Crr)
	assert.Equal(t, 0.90, setup.Cd)
	assert.Equal(t, 0.35, setup.FrontalArea)

	_, err = ApplyPresets(DefaultSetup(), "Wooden wheels", "")
	assert.Error(t, err)
}
