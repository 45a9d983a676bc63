package model

import "math"

// Vehicle is the capability shared by every Car and Locomotive variant: mass,
// length, and the Davis-style resistance law. Locomotives additionally
// expose a locomotive-only capability set (see locomotive.go); Car never
// does. Modeled as a sum type behind this one small interface rather than a
// deep class hierarchy (SPEC_FULL.md §9).
type Vehicle interface {
	VehicleLength() float64
	VehicleMass() float64
	Resistance(speedMS, grade, curvature float64) float64
}

const (
	mphPerMS     = 2.2369362920544
	kgPerShortTon = 907.18474
	newtonsPerLbf = 4.44822
	gravityMS2   = 9.80665
)

// resistance implements the shared US-unit Davis-style formula converted to
// SI (spec.md §4.3): v in mph, m in short tons.
func resistance(speedMS, grade, curvature, massKg, axles, dragCoef, frontalAreaSqFt float64) float64 {
	v := speedMS * mphPerMS
	mShortTons := massKg / kgPerShortTon
	if mShortTons <= 0 {
		return 0
	}
	r := 1.5 + 18*axles/mShortTons + 0.03*v + frontalAreaSqFt*dragCoef*v*v/mShortTons
	R := r*mShortTons + 20*mShortTons*grade + math.Abs(curvature)*20*0.04*mShortTons
	return R * newtonsPerLbf
}
