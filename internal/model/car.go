package model

// CarType tags a non-locomotive vehicle variant (spec.md §3).
type CarType int

const (
	Cargo CarType = iota
	DieselTender
	BiodieselTender
	BatteryTender
	HydrogenFuelCellTender
)

// hasBattery is true only for BatteryTender; hasTank is true for the other
// tender types. Cargo carries neither.
func (t CarType) hasBattery() bool { return t == BatteryTender }
func (t CarType) hasTank() bool {
	return t == DieselTender || t == BiodieselTender || t == HydrogenFuelCellTender
}

// Car is a cargo-car or tender vehicle. Exactly one of Battery/Tank is
// non-nil for tender types; Cargo has neither.
type Car struct {
	Type CarType

	EmptyMassKg   float64
	CurrentMassKg float64
	LengthM       float64
	DragCoef      float64
	FrontalAreaSqFt float64
	Axles         float64

	Battery *Battery
	Tank    *Tank
}

// NewCar constructs a Car, wiring a Battery or Tank per CarType per the
// invariant in spec.md §3.
func NewCar(t CarType, emptyMassKg, currentMassKg, lengthM, dragCoef, frontalAreaSqFt, axles float64, battery *Battery, tank *Tank) (*Car, error) {
	if emptyMassKg <= 0 || currentMassKg < emptyMassKg {
		return nil, errInvalidParam("car mass must be positive with current >= empty")
	}
	if t.hasBattery() && battery == nil {
		return nil, errInvalidParam("battery-tender car requires a Battery")
	}
	if t.hasTank() && tank == nil {
		return nil, errInvalidParam("fuel-tender car requires a Tank")
	}
	if t == Cargo && (battery != nil || tank != nil) {
		return nil, errInvalidParam("cargo car must carry neither Battery nor Tank")
	}
	return &Car{
		Type:            t,
		EmptyMassKg:     emptyMassKg,
		CurrentMassKg:   currentMassKg,
		LengthM:         lengthM,
		DragCoef:        dragCoef,
		FrontalAreaSqFt: frontalAreaSqFt,
		Axles:           axles,
		Battery:         battery,
		Tank:            tank,
	}, nil
}

func (c *Car) VehicleLength() float64 { return c.LengthM }
func (c *Car) VehicleMass() float64   { return c.CurrentMassKg }

func (c *Car) Resistance(speedMS, grade, curvature float64) float64 {
	return resistance(speedMS, grade, curvature, c.CurrentMassKg, c.Axles, c.DragCoef, c.FrontalAreaSqFt)
}
