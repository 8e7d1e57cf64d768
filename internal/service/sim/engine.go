package sim

import (
	"fmt"
	"math"
	"time"

	"argus-rideplan/internal/domain"
)

// Physical constants and solver policy
const (
	Gravity           = 9.81
	DefaultAirDensity = 1.226 // kg/m³
	Tolerance         = 0.01  // W
	MaxIterations     = 100
	derivativeStep    = 0.1 // km/h
	joulesPerKcal     = 4184.0
)

// Input describes one segment to solve.
type Input struct {
	Power      float64 // Target average power (W)
	DistanceKm float64 // Segment length (km)
	Elevation  float64 // Segment elevation delta (m)
	Wind       float64 // Wind along the travel direction (km/h), positive = from behind
	AirDensity float64 // kg/m³, 0 means the setup value
}

// Model solves the steady-state speed for a bike setup.
// It holds no per-call state and can be shared between goroutines.
type Model struct {
	Setup domain.BikeSetup
}

// DefaultSetup is the rider/bike used when no profile is configured.
func DefaultSetup() domain.BikeSetup {
	return domain.BikeSetup{
		RiderMass:           60,
		BikeMass:            10,
		LoadMass:            2.2,
		Crr:                 0.004,
		Cd:                  1.0,
		FrontalArea:         0.4,
		DrivetrainLoss:      0.02,
		MetabolicEfficiency: 0.25,
		MaxDescentSpeed:     50,
		AirDensity:          DefaultAirDensity,
	}
}

// NewModel returns a model for the given setup. Zero masses, efficiency and
// air density fall back to the defaults, the same way a fresh profile does.
func NewModel(setup domain.BikeSetup) *Model {
	def := DefaultSetup()
	if setup.RiderMass == 0 {
		setup.RiderMass = def.RiderMass
	}
	if setup.BikeMass == 0 {
		setup.BikeMass = def.BikeMass
	}
	if setup.MetabolicEfficiency == 0 {
		setup.MetabolicEfficiency = def.MetabolicEfficiency
	}
	if setup.AirDensity == 0 {
		setup.AirDensity = def.AirDensity
	}
	return &Model{Setup: setup}
}

// Grade returns the road angle in radians. Zero distance means flat.
func Grade(distanceKm, elevation float64) float64 {
	if distanceKm <= 0 {
		return 0
	}
	return math.Atan(elevation / (distanceKm * 1000))
}

// InitialGuess picks the Newton starting speed (km/h) from the road angle.
// Steep descents start high so the iteration lands on the physical root.
func InitialGuess(theta float64) float64 {
	switch {
	case theta > 0:
		return 30
	case theta > -0.05:
		return 50
	case theta > -0.10:
		return 70
	default:
		return 100
	}
}

// PowerAt returns the total pedal power needed to hold speed v (km/h) on the
// segment, together with its breakdown.
func (m *Model) PowerAt(v float64, in Input) (float64, domain.PowerComponents) {
	s := m.Setup
	rho := in.AirDensity
	if rho == 0 {
		rho = s.AirDensity
	}

	theta := Grade(in.DistanceKm, in.Elevation)
	mass := s.TotalMass()
	vms := v / 3.6
	vApp := (v - in.Wind) / 3.6

	fGrav := Gravity * math.Sin(theta) * mass
	fRoll := Gravity * math.Cos(theta) * mass * s.Crr
	fDrag := 0.5 * s.Cd * s.FrontalArea * rho * vApp * vApp

	wheel := (fGrav + fRoll + fDrag) * vms
	total := wheel / (1 - s.DrivetrainLoss)

	comps := domain.PowerComponents{
		Gravity:        fGrav * vms,
		Rolling:        fRoll * vms,
		Drag:           fDrag * vms,
		DrivetrainLoss: total - wheel,
	}
	if s.RiderMass > 0 {
		comps.PowerPerKg = total / s.RiderMass
	}
	return total, comps
}

// Solve finds the speed at which the required power equals in.Power using
// Newton's method with a forward-difference derivative. When the iteration
// cap is reached the last iterate is returned with Converged unset.
// A negative root is clamped to zero and reported through Clamped.
func (m *Model) Solve(in Input) domain.SolverResult {
	v := InitialGuess(Grade(in.DistanceKm, in.Elevation))

	var (
		res        domain.SolverResult
		iterations int
	)

	for iterations < MaxIterations {
		p, _ := m.PowerAt(v, in)
		diff := p - in.Power
		if math.Abs(diff) < Tolerance {
			res.Converged = true
			break
		}
		iterations++

		pNext, _ := m.PowerAt(v+derivativeStep, in)
		slope := (pNext - p) / derivativeStep
		if slope == 0 || math.IsNaN(slope) || math.IsInf(slope, 0) {
			break
		}

		next := v - diff/slope
		if math.IsNaN(next) || math.IsInf(next, 0) {
			break
		}
		v = next
	}

	if v < 0 {
		v = 0
		res.Clamped = true
		res.Converged = false
	}

	total, comps := m.PowerAt(v, in)
	res.Speed = v
	res.Components = comps
	res.Iterations = iterations
	res.Residual = math.Abs(total - in.Power)
	if !res.Clamped && res.Residual < Tolerance {
		res.Converged = true
	}
	res.Info = m.info(v, total, in)
	return res
}

func (m *Model) info(v, total float64, in Input) domain.SegmentInfo {
	var info domain.SegmentInfo
	if in.DistanceKm > 0 {
		info.Grade = in.Elevation / (in.DistanceKm * 1000) * 100
	}
	if v > 0 {
		info.TimeHours = in.DistanceKm / v
	}
	info.TimeStr = FormatHours(info.TimeHours)
	if info.TimeHours > 0 {
		info.VAM = in.Elevation / info.TimeHours
	}
	if m.Setup.MetabolicEfficiency > 0 {
		info.Calories = total / m.Setup.MetabolicEfficiency * info.TimeHours * 3600 / joulesPerKcal
	}
	return info
}

// FormatHours renders decimal hours as HH:MM:SS, truncating partial seconds.
func FormatHours(h float64) string {
	if h <= 0 || math.IsNaN(h) || math.IsInf(h, 0) {
		return "00:00:00"
	}
	hours := math.Floor(h)
	minutes := math.Floor((h - hours) * 60)
	seconds := math.Floor(((h-hours)*60 - minutes) * 60)
	return fmt.Sprintf("%02d:%02d:%02d", int(hours), int(minutes), int(seconds))
}

// FormatDuration renders a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "00:00:00"
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

// Elapsed converts decimal hours to a duration at nanosecond resolution.
func Elapsed(hours float64) time.Duration {
	if hours <= 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return 0
	}
	return time.Duration(math.Round(hours * float64(time.Hour)))
}
