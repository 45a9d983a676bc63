package model

import "math"

// Locomotive is one of the seven power-type variants (spec.md §3). Exactly
// one of Battery/Tank may be nil depending on PowerType, per the invariant
// "Battery present iff power type ∈ {Electric, *Hybrid}; Tank present iff
// power type ∉ {Electric}".
type Locomotive struct {
	PowerType PowerType
	Method    PowerMethod // meaningful only when PowerType.isHybrid()

	MaxPowerKW      float64
	TransmissionEff float64
	LengthM         float64
	DragCoef        float64
	FrontalAreaSqFt float64
	EmptyMassKg     float64
	CurrentMassKg   float64
	Axles           float64
	NotchCount      int // Nmax
	MaxAchievableNotch int // 0 = unclamped
	AuxLoadKW       float64

	CurrentNotch    int
	CurrentThrottle float64
	Running         bool

	Battery *Battery
	Tank    *Tank
}

// NewLocomotive constructs a Locomotive, validating the Battery/Tank
// invariant for its PowerType.
func NewLocomotive(pt PowerType, method PowerMethod, maxPowerKW, transmissionEff, lengthM, dragCoef, frontalAreaSqFt, emptyMassKg, currentMassKg, axles float64, notchCount, maxAchievableNotch int, auxLoadKW float64, battery *Battery, tank *Tank) (*Locomotive, error) {
	if emptyMassKg <= 0 || currentMassKg < emptyMassKg {
		return nil, errInvalidParam("locomotive mass must be positive with current >= empty")
	}
	if notchCount <= 0 {
		return nil, errInvalidParam("locomotive notch count must be > 0")
	}
	if pt.hasBattery() && battery == nil {
		return nil, errInvalidParam("locomotive power type requires a Battery")
	}
	if !pt.hasBattery() && battery != nil {
		return nil, errInvalidParam("locomotive power type must not carry a Battery")
	}
	if pt.hasTank() && tank == nil {
		return nil, errInvalidParam("locomotive power type requires a Tank")
	}
	if !pt.hasTank() && tank != nil {
		return nil, errInvalidParam("locomotive power type must not carry a Tank")
	}
	return &Locomotive{
		PowerType:          pt,
		Method:             method,
		MaxPowerKW:         maxPowerKW,
		TransmissionEff:    transmissionEff,
		LengthM:            lengthM,
		DragCoef:           dragCoef,
		FrontalAreaSqFt:    frontalAreaSqFt,
		EmptyMassKg:        emptyMassKg,
		CurrentMassKg:      currentMassKg,
		Axles:              axles,
		NotchCount:         notchCount,
		MaxAchievableNotch: maxAchievableNotch,
		AuxLoadKW:          auxLoadKW,
		Running:            true,
		CurrentNotch:       1,
		Battery:            battery,
		Tank:               tank,
	}, nil
}

func (l *Locomotive) VehicleLength() float64 { return l.LengthM }
func (l *Locomotive) VehicleMass() float64   { return l.CurrentMassKg }

func (l *Locomotive) Resistance(speedMS, grade, curvature float64) float64 {
	return resistance(speedMS, grade, curvature, l.CurrentMassKg, l.Axles, l.DragCoef, l.FrontalAreaSqFt)
}

// discreteThrottle is the throttle-discretisation law of spec.md §4.3: a
// continuous target lambda(v) mapped to the notch n in {1,...,Nmax} that
// minimizes |lambda - (n/Nmax)^2|.
func (l *Locomotive) discreteThrottle(speedMS, freeFlowSpeedMS float64) (notch int, throttle float64) {
	vmax := freeFlowSpeedMS
	if vmax <= 0 {
		vmax = 1
	}
	lambda := 1 / (1 + math.Exp(-7.82605*(speedMS/vmax-0.42606)))
	lambda = math.Max(0, math.Min(1, lambda))

	n := l.NotchCount
	best, bestDiff := 1, math.Inf(1)
	for i := 1; i <= n; i++ {
		t := math.Pow(float64(i)/float64(n), 2)
		if diff := math.Abs(lambda - t); diff < bestDiff {
			bestDiff, best = diff, i
		}
	}
	if l.MaxAchievableNotch > 0 && best > l.MaxAchievableNotch {
		best = l.MaxAchievableNotch
	}
	return best, math.Pow(float64(best)/float64(n), 2)
}

// EffectiveThrottle applies the optimizer override: min(discrete(lambda(v)),
// optimum) when optimize is on (spec.md §4.3).
func (l *Locomotive) EffectiveThrottle(speedMS, freeFlowSpeedMS float64, optimize bool, optimum float64) (notch int, throttle float64) {
	notch, throttle = l.discreteThrottle(speedMS, freeFlowSpeedMS)
	if optimize {
		throttle = math.Min(throttle, optimum)
	}
	return notch, throttle
}

// TractiveForce implements spec.md §4.3: mu*m*g at zero speed, else bounded
// by the power-limited force at the current throttle.
func (l *Locomotive) TractiveForce(speedMS, frictionCoef, reductionFactor float64) float64 {
	if reductionFactor <= 0 {
		reductionFactor = 1
	}
	maxAdhesion := frictionCoef * l.CurrentMassKg * gravityMS2
	if speedMS <= 0 {
		return maxAdhesion
	}
	powerLimited := reductionFactor * 1000 * l.TransmissionEff * l.CurrentThrottle * powerReductionFactor(l.PowerType) * l.MaxPowerKW / speedMS
	return math.Min(maxAdhesion, powerLimited)
}

func virtualTractivePowerW(sharedWeightKg, accelMS2, sharedResistanceN, speedMS float64) float64 {
	return (sharedWeightKg*accelMS2 + sharedResistanceN) * speedMS
}

// LocomotiveStepInput carries this tick's kinematic and link context into
// Locomotive.Step.
type LocomotiveStepInput struct {
	SpeedMS          float64
	FreeFlowSpeedMS  float64
	FrictionCoef     float64
	TimestepS        float64
	AccelMS2         float64
	SharedWeightKg   float64
	SharedResistanceN float64
	ReductionFactor  float64
	Optimize         bool
	OptimumThrottle  float64
	HasCatenary      bool
}

// LocomotiveStepResult is what Locomotive.Step produced this tick, for the
// Train to aggregate into its cumulative statistics.
type LocomotiveStepResult struct {
	TractiveForceN        float64
	TractivePowerAtWheelW float64
	TankLitersConsumed    float64
	BatteryKWhConsumed    float64
	BatteryKWhRecharged   float64
	CatenaryKWhRequested  float64
	CatenaryKWhOffered    float64
	TurnedOff             bool

	// DemandKWh and ShortfallKWh are this tick's total energy demand and the
	// portion this locomotive's own Tank/Battery could not supply. The Train
	// routes ShortfallKWh to matching tender cars (spec.md §4.5 step 3)
	// before deciding TurnedOff.
	DemandKWh    float64
	ShortfallKWh float64
}

// Step runs one tick of §4.3 for this locomotive: throttle, tractive force,
// virtual tractive power, then either the motoring energy draw (tank/battery/
// catenary per power type) or regenerative-braking energy recovery. Fuel
// consumed this tick reduces CurrentMassKg, floored at EmptyMassKg.
//
// A motoring demand this locomotive's own sources cannot fully satisfy is
// reported via the result's ShortfallKWh rather than turning the locomotive
// off directly: Train.AccountEnergy routes that shortfall to matching tender
// cars first (spec.md §4.5 step 3) and only sets Running=false if the
// tenders can't cover it either.
func (l *Locomotive) Step(in LocomotiveStepInput) LocomotiveStepResult {
	var res LocomotiveStepResult
	if !l.Running {
		return res
	}

	notch, throttle := l.EffectiveThrottle(in.SpeedMS, in.FreeFlowSpeedMS, in.Optimize, in.OptimumThrottle)
	l.CurrentNotch, l.CurrentThrottle = notch, throttle

	res.TractiveForceN = l.TractiveForce(in.SpeedMS, in.FrictionCoef, in.ReductionFactor)

	vtp := virtualTractivePowerW(in.SharedWeightKg, in.AccelMS2, in.SharedResistanceN, in.SpeedMS)
	res.TractivePowerAtWheelW = vtp

	wheelEnergyKWh := math.Abs(vtp) / 1000 * in.TimestepS / 3600
	maxPowerAtWheelW := l.MaxPowerKW * 1000
	p := 0.0
	if maxPowerAtWheelW > 0 {
		p = math.Min(math.Abs(vtp)/maxPowerAtWheelW, 1)
	}

	if vtp >= 0 {
		eff := driveLineEff(in.SpeedMS, l.PowerType, p, l.Method)
		if eff <= 0 {
			eff = 1
		}
		demandKWh := wheelEnergyKWh / eff
		l.drawEnergy(demandKWh, p, in, &res)
	} else {
		recoveredAtWheelKWh := wheelEnergyKWh * regenRecoveredFraction(in.AccelMS2)
		eff := driveLineEff(in.SpeedMS, l.PowerType, p, l.Method)
		l.absorbRegen(recoveredAtWheelKWh*eff, in, &res)
	}

	l.consumeFuelMass(&res)
	return res
}

// drawEnergy satisfies demandKWh from this locomotive's own sources,
// recording both the demand and whatever it could not supply in res so the
// Train can route the remainder to tender cars (spec.md §4.3, §4.5 step 3).
func (l *Locomotive) drawEnergy(demandKWh, p float64, in LocomotiveStepInput, res *LocomotiveStepResult) {
	if demandKWh <= 1e-9 {
		return
	}
	res.DemandKWh += demandKWh

	var got float64
	switch {
	case l.PowerType == Electric:
		if in.HasCatenary {
			res.CatenaryKWhRequested += demandKWh
			return
		}
		got = l.drawFromBattery(demandKWh, in, res)
	case !l.PowerType.isHybrid():
		got = l.drawFromTank(demandKWh, res)
	default:
		got = l.drawHybridEnergy(demandKWh, p, in, res)
	}

	if shortfall := demandKWh - got; shortfall > 1e-9 {
		res.ShortfallKWh += shortfall
	}
}

// drawHybridEnergy implements the four-step hybrid routing of spec.md §4.3,
// returning the total delivered.
func (l *Locomotive) drawHybridEnergy(demandKWh, p float64, in LocomotiveStepInput, res *LocomotiveStepResult) float64 {
	rng := efficiencyRange(l.PowerType)
	inRange := p >= rng.Lo && p <= rng.Hi

	var got float64
	if inRange {
		got += l.drawFromTank(demandKWh, res)
		if residual := demandKWh - got; residual > 1e-9 {
			got += l.drawFromBattery(residual, in, res)
		}
	} else {
		got += l.drawFromBattery(demandKWh, in, res)
		if residual := demandKWh - got; residual > 1e-9 {
			got += l.drawFromTank(residual, res)
		}
	}

	if l.Battery != nil && l.Battery.RechargeEnabled() && l.Tank != nil {
		offeredKWh := l.Battery.Params.MaxCapacityKWh * l.Battery.rechargeCRate() * in.TimestepS / 3600
		liters := offeredKWh * fuelConversionFactor(l.PowerType)
		if drawn := l.Tank.Withdraw(liters); drawn > 0 {
			drawnKWh := offeredKWh * (drawn / liters)
			res.TankLitersConsumed += drawn
			res.BatteryKWhRecharged += l.Battery.TryRecharge(in.TimestepS, drawnKWh, FromEngine)
		}
	}

	return got
}

func (l *Locomotive) drawFromTank(demandKWh float64, res *LocomotiveStepResult) float64 {
	if l.Tank == nil || demandKWh <= 0 {
		return 0
	}
	liters := demandKWh * fuelConversionFactor(l.PowerType)
	if liters <= 0 {
		return 0
	}
	got := l.Tank.Withdraw(liters)
	res.TankLitersConsumed += got
	return demandKWh * (got / liters)
}

func (l *Locomotive) drawFromBattery(demandKWh float64, in LocomotiveStepInput, res *LocomotiveStepResult) float64 {
	if l.Battery == nil || demandKWh <= 0 {
		return 0
	}
	_, delivered, _ := l.Battery.TryDischarge(in.TimestepS, demandKWh)
	res.BatteryKWhConsumed += delivered
	return delivered
}

// absorbRegen routes recovered braking energy to the battery, then to the
// catenary for any overflow; non-rechargeable power types drop it entirely
// (spec.md §4.3).
func (l *Locomotive) absorbRegen(availableKWh float64, in LocomotiveStepInput, res *LocomotiveStepResult) {
	if availableKWh <= 1e-9 || !l.PowerType.hasBattery() || l.Battery == nil {
		return
	}
	accepted := l.Battery.TryRecharge(in.TimestepS, availableKWh, Regenerated)
	res.BatteryKWhRecharged += accepted
	if overflow := availableKWh - accepted; overflow > 1e-9 && in.HasCatenary {
		res.CatenaryKWhOffered = overflow
	}
}

func (l *Locomotive) consumeFuelMass(res *LocomotiveStepResult) {
	if res.TankLitersConsumed <= 0 {
		return
	}
	massLossKg := res.TankLitersConsumed * fuelDensityTonPerL(l.PowerType) * 1000
	l.CurrentMassKg -= massLossKg
	if l.CurrentMassKg < l.EmptyMassKg {
		l.CurrentMassKg = l.EmptyMassKg
	}
}
