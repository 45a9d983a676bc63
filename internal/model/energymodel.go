package model

import "math"

// PowerType tags a locomotive's power-train technology (spec.md §3). Car and
// locomotive power-type tags are independent enums (CarType vs PowerType).
type PowerType int

const (
	Diesel PowerType = iota
	Electric
	Biodiesel
	DieselElectric
	DieselHybrid
	HydrogenHybrid
	BiodieselHybrid
)

// PowerMethod distinguishes series vs parallel hybrid routing; only
// meaningful for the three hybrid PowerTypes.
type PowerMethod int

const (
	Series PowerMethod = iota
	Parallel
)

func (t PowerType) hasBattery() bool {
	switch t {
	case Electric, DieselHybrid, HydrogenHybrid, BiodieselHybrid:
		return true
	}
	return false
}

func (t PowerType) hasTank() bool { return t != Electric }

func (t PowerType) isHybrid() bool {
	switch t {
	case DieselHybrid, HydrogenHybrid, BiodieselHybrid:
		return true
	}
	return false
}

// fuelConversionFactor converts kWh to liters per power type (NeTrainSim
// energyconsumption.h's fuelConversionFactor_powerTypes table).
func fuelConversionFactor(t PowerType) float64 {
	switch t {
	case Diesel, DieselHybrid, DieselElectric:
		return 0.1005
	case Biodiesel, BiodieselHybrid:
		return 67.0 / 620.0
	case HydrogenHybrid:
		return 0.002995
	case Electric:
		return 1.0
	}
	return 1.0
}

// fuelDensityTonPerL converts liters of fuel burnt to tons of mass lost.
func fuelDensityTonPerL(t PowerType) float64 {
	switch t {
	case Diesel, DieselHybrid, DieselElectric:
		return 0.00085
	case Biodiesel, BiodieselHybrid:
		return 0.00088
	case HydrogenHybrid:
		return 0.000099836
	}
	return 0
}

// powerReductionFactor is the per-technology tractive-force derating
// constant used in §4.3's tractive-force formula.
func powerReductionFactor(t PowerType) float64 {
	switch t {
	case DieselHybrid:
		return 0.8
	case BiodieselHybrid:
		return 0.8
	case HydrogenHybrid:
		return 0.5
	}
	return 1.0
}

// maxEfficiencyRange is the generator's [lo, hi] used-power-fraction window
// within which fuel is drawn first, and its center used-power fraction.
type maxEfficiencyRange struct {
	Lo, Hi, Center float64
}

func efficiencyRange(t PowerType) maxEfficiencyRange {
	switch t {
	case DieselHybrid, BiodieselHybrid:
		return maxEfficiencyRange{0.7, 0.9, 0.8}
	case HydrogenHybrid:
		return maxEfficiencyRange{0.0, 0.5, 0.0}
	}
	return maxEfficiencyRange{0.0, 1.0, 1.0}
}

// generatorEff is the fuel-generator efficiency at used-power fraction p
// (spec.md §4.3).
func generatorEff(t PowerType, p float64) float64 {
	switch t {
	case DieselHybrid, BiodieselHybrid:
		return -0.24*p*p + 0.3859*p + 0.29
	case HydrogenHybrid:
		return -0.0937*p*p + 0.002*p + 0.5609
	}
	return 1.0
}

// batteryEff is the one-way battery efficiency; a series drivetrain applies
// it twice (into and out of the battery).
func batteryEff(t PowerType) float64 {
	switch t {
	case DieselHybrid, BiodieselHybrid, HydrogenHybrid, Electric:
		return 0.965
	}
	return 1.0
}

// wheelToDCBusEff is the drive-line efficiency from the wheel to the DC bus,
// a function of train speed only (spec.md §4.3).
func wheelToDCBusEff(speedMS float64) float64 {
	v := speedMS * 3.6
	if v <= 58.2 {
		return 0.2 + 0.0261*v - 0.0003*v*v + 0.000001*v*v*v
	}
	return 0.9
}

// dcBusToTankEff is the drive-line efficiency from the DC bus to the
// tank/generator, depending on power type, used-power fraction p, and hybrid
// method (spec.md §4.3).
func dcBusToTankEff(t PowerType, p float64, method PowerMethod) float64 {
	switch t {
	case Diesel, Biodiesel, DieselElectric:
		return -0.24*p*p + 0.3859*p + 0.29
	case Electric:
		return 0.965
	case DieselHybrid, BiodieselHybrid, HydrogenHybrid:
		eff := generatorEff(t, p)
		if method == Series {
			be := batteryEff(t)
			eff *= be * be
		}
		return eff
	}
	return 1.0
}

// driveLineEff composes the two stages (spec.md §4.3).
func driveLineEff(speedMS float64, t PowerType, p float64, method PowerMethod) float64 {
	return wheelToDCBusEff(speedMS) * dcBusToTankEff(t, p, method)
}

// regenRecoveredFraction is the fraction of negative virtual tractive power
// recovered under regenerative braking (spec.md §4.3), gamma = 0.65.
func regenRecoveredFraction(decelMS2 float64) float64 {
	a := math.Abs(decelMS2)
	if a <= 1e-9 {
		return 0
	}
	return 1 / math.Exp(0.65/a)
}
