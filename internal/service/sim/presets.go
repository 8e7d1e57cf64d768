package sim

import (
	"fmt"
	"sort"

	"argus-rideplan/internal/domain"
)

// TyreCrr maps common tyre choices to rolling resistance coefficients.
var TyreCrr = map[string]float64{
	"Tubular 23mm":           0.0027,
	"Slick 25mm":             0.0030,
	"Slick 28mm":             0.0032,
	"Slick 30mm":             0.0038,
	"Endurance 32mm":         0.0040,
	"Gravel semi-slick 35mm": 0.0055,
	"Gravel 40mm":            0.0065,
	"Gravel 45mm":            0.0075,
	"XC 2.1-2.25\"":          0.0085,
	"Trail 2.3-2.5\"":        0.0110,
	"Enduro 2.4-2.6\"":       0.0135,
	"Fatbike":                0.0300,
}

// Position is a riding position's drag coefficient and frontal area.
type Position struct {
	Cd   float64
	Area float64
}

// Positions maps riding positions to aerodynamic parameters.
var Positions = map[string]Position{
	"TT bike":   {Cd: 0.70, Area: 0.25},
	"Aero bars": {Cd: 0.80, Area: 0.30},
	"Drop":      {Cd: 0.90, Area: 0.35},
	"Hoods":     {Cd: 1.00, Area: 0.40},
	"Tops":      {Cd: 1.15, Area: 0.60},
	"MTB":       {Cd: 1.20, Area: 0.65},
	"Fat bike":  {Cd: 1.30, Area: 0.70},
}

// ApplyPresets overrides Crr and Cd/A from named presets. Empty names are ignored.
func ApplyPresets(setup domain.BikeSetup, tyre, position string) (domain.BikeSetup, error) {
	if tyre != "" {
		crr, ok := TyreCrr[tyre]
		if !ok {
			return setup, fmt.Errorf("unknown tyre preset %q (known: %v)", tyre, names(TyreCrr))
		}
		setup.Crr = crr
	}
	if position != "" {
		pos, ok := Positions[position]
		if !ok {
			return setup, fmt.Errorf("unknown position preset %q (known: %v)", position, names(Positions))
		}
		setup.Cd = pos.Cd
		setup.FrontalArea = pos.Area
	}
	return setup, nil
}

func names[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate rejects non-physical setups.
func Validate(s domain.BikeSetup) error {
	switch {
	case s.RiderMass <= 0:
		return fmt.Errorf("rider mass must be positive, got %v", s.RiderMass)
	case s.BikeMass <= 0:
		return fmt.Errorf("bike mass must be positive, got %v", s.BikeMass)
	case s.LoadMass < 0:
		return fmt.Errorf("load mass must not be negative, got %v", s.LoadMass)
	case s.Crr < 0 || s.Cd < 0 || s.FrontalArea < 0:
		return fmt.Errorf("crr, cd and frontal area must not be negative")
	case s.DrivetrainLoss < 0 || s.DrivetrainLoss >= 1:
		return fmt.Errorf("drivetrain loss must be in [0, 1), got %v", s.DrivetrainLoss)
	case s.MetabolicEfficiency <= 0 || s.MetabolicEfficiency > 1:
		return fmt.Errorf("metabolic efficiency must be in (0, 1], got %v", s.MetabolicEfficiency)
	case s.AirDensity <= 0:
		return fmt.Errorf("air density must be positive, got %v", s.AirDensity)
	}
	return nil
}
