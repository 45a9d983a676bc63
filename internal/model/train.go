package model

import "math"

const (
	speedOfSoundMS     = 343.0
	lowTractionSpeedMS = 1.0 // "at low speed" threshold for ResistanceExceedsTraction (spec.md §7)
	lowTractionStreakLimit = 5
	stopSnapSpeedMS    = 0.5
	floorKickDistanceM = 0.01 // livelock-prevention nudge (spec.md §4.4)
)

// CriticalPoint is one of the points ahead of a train that bounds its future
// speed (spec.md §4.4, §4.5.1): a lower-speed segment start, a stopping
// node/red signal (LeaderSpeedMS = 0), or the tail of a leading train.
type CriticalPoint struct {
	GapM           float64
	IsLeadingTrain bool
	LeaderSpeedMS  float64
}

// DynamicsParams are the car-following calibration constants of spec.md
// §4.4, exposed so internal/config can override the defaults.
type DynamicsParams struct {
	PerceptionReactionS float64
	DesiredDecelMS2     float64 // d_des
	MinGapM             float64
	MinGapLeadingM      float64
	InitialGapM         float64
	MaxJerkMS3          float64
}

// DefaultDynamicsParams mirrors NeTrainSim's car-following defaults: a
// perception-reaction time around human driver reaction, a comfortable
// desired deceleration, and conservative following gaps.
func DefaultDynamicsParams() DynamicsParams {
	return DynamicsParams{
		PerceptionReactionS: 1.0,
		DesiredDecelMS2:     0.8,
		MinGapM:             5.0,
		MinGapLeadingM:      25.0,
		InitialGapM:         10.0,
		MaxJerkMS3:          1.0,
	}
}

// TrainDynamicsState is the minimal kinematic snapshot exposed to a
// ThrottlePolicy (SPEC_FULL.md §4.7).
type TrainDynamicsState struct {
	SpeedMS       float64
	AccelMS2      float64
	NotchThrottle float64
	PositionM     float64
}

// Train is an ordered composition of locomotives and cars along an expanded
// path, with its own dynamics state and cumulative statistics (spec.md §3).
type Train struct {
	ID           int
	Path         []int // expanded node user ids
	StartTimeS   float64
	FrictionCoef float64
	Optimize     bool

	Dynamics DynamicsParams

	Vehicles    []Vehicle
	Locomotives []*Locomotive
	TotalLengthM float64
	TotalMassKg  float64

	CurrentSpeedMS    float64
	PreviousSpeedMS   float64
	CurrentAccelMS2   float64
	PreviousAccelMS2  float64
	CurrentNotch      int
	TravelledDistanceM float64

	CurrentLinks  map[int]bool
	PreviousLinks map[int]bool

	TripTimeS                 float64
	TotalEnergyConsumedKWh    float64
	TotalEnergyRegeneratedKWh float64
	TotalEnergyNetKWh         float64
	EnergyByRegion            map[string]float64
	DelayTimeVsMinS           float64
	DelayTimeVsMaxS           float64
	StopCount                 int

	Loaded             bool
	ReachedDestination bool
	OutOfEnergy        bool

	lowTractionStreak int
}

// NewTrain arranges locos/cars per the deterministic vehicle-arrangement
// rule (spec.md §3) and computes composition statistics.
func NewTrain(id int, path []int, startTimeS, frictionCoef float64, locos []*Locomotive, cars []*Car, optimize bool) (*Train, error) {
	if len(path) == 0 {
		return nil, errInvalidParam("train path must not be empty")
	}
	if len(locos) == 0 {
		return nil, errInvalidParam("train must have at least one locomotive")
	}

	vehicles := arrangeVehicles(locos, cars)
	tr := &Train{
		ID:             id,
		Path:           path,
		StartTimeS:     startTimeS,
		FrictionCoef:   frictionCoef,
		Optimize:       optimize,
		Dynamics:       DefaultDynamicsParams(),
		Vehicles:       vehicles,
		Locomotives:    locos,
		CurrentLinks:   make(map[int]bool),
		PreviousLinks:  make(map[int]bool),
		EnergyByRegion: make(map[string]float64),
	}
	for _, v := range vehicles {
		tr.TotalLengthM += v.VehicleLength()
		tr.TotalMassKg += v.VehicleMass()
	}
	return tr, nil
}

// arrangeVehicles implements spec.md §3's deterministic arrangement rule,
// driven only by loco/car counts.
func arrangeVehicles(locos []*Locomotive, cars []*Car) []Vehicle {
	L, C := len(locos), len(cars)
	out := make([]Vehicle, 0, L+C)

	switch {
	case L == 1 || C == 0:
		for _, l := range locos {
			out = append(out, l)
		}
		for _, c := range cars {
			out = append(out, c)
		}
	case (L >= 2 && L <= 6) || C < 2:
		head := (L + 1) / 2 // ceil(L/2)
		for i := 0; i < head; i++ {
			out = append(out, locos[i])
		}
		for _, c := range cars {
			out = append(out, c)
		}
		for i := head; i < L; i++ {
			out = append(out, locos[i])
		}
	default:
		headN := (L + 2) / 3 // ceil(L/3)
		midN := L / 3        // floor(L/3)
		half := C / 2
		idx := 0
		for i := 0; i < headN; i++ {
			out = append(out, locos[idx])
			idx++
		}
		for i := 0; i < half; i++ {
			out = append(out, cars[i])
		}
		for i := 0; i < midN; i++ {
			out = append(out, locos[idx])
			idx++
		}
		for i := half; i < C; i++ {
			out = append(out, cars[i])
		}
		for ; idx < L; idx++ {
			out = append(out, locos[idx])
		}
	}
	return out
}

// VehicleCentroidOffsets returns, for each vehicle in arrangement order, its
// distance from the train's tip to its centroid (spec.md §3): cumulative
// length from the tip minus half the vehicle's own length.
func (tr *Train) VehicleCentroidOffsets() []float64 {
	offsets := make([]float64, len(tr.Vehicles))
	cum := 0.0
	for i, v := range tr.Vehicles {
		cum += v.VehicleLength()
		offsets[i] = cum - v.VehicleLength()/2
	}
	return offsets
}

// VehicleGeometry is the grade/curvature sampled at one vehicle's centroid.
type VehicleGeometry struct {
	Grade, Curvature float64
}

// AggregateDynamics sums per-vehicle resistance (sampled at each vehicle's
// own geometry) and per-locomotive tractive force at the current speed,
// returning the train's (F-R)/m ceiling acceleration.
func (tr *Train) AggregateDynamics(geoms []VehicleGeometry) (maxAccelMS2, totalResistanceN, totalTractionN float64, perVehicleResistanceN []float64) {
	perVehicleResistanceN = make([]float64, len(tr.Vehicles))
	for i, v := range tr.Vehicles {
		var g VehicleGeometry
		if i < len(geoms) {
			g = geoms[i]
		}
		r := v.Resistance(tr.CurrentSpeedMS, g.Grade, g.Curvature)
		perVehicleResistanceN[i] = r
		totalResistanceN += r
	}
	for _, l := range tr.Locomotives {
		totalTractionN += l.TractiveForce(tr.CurrentSpeedMS, tr.FrictionCoef, 1.0)
	}
	if tr.TotalMassKg > 0 {
		maxAccelMS2 = (totalTractionN - totalResistanceN) / tr.TotalMassKg
	}
	return
}

// accelForCriticalPoint runs the car-following recursion of spec.md §4.4 for
// one critical point.
func (tr *Train) accelForCriticalPoint(cp CriticalPoint, maxAccel, uFree, dt float64) float64 {
	u := tr.CurrentSpeedMS
	mu := tr.FrictionCoef
	g := gravityMS2
	Ts := tr.Dynamics.PerceptionReactionS + tr.TotalLengthM/speedOfSoundMS

	minGap := tr.Dynamics.MinGapM
	if cp.IsLeadingTrain {
		minGap = tr.Dynamics.MinGapLeadingM
	}

	safeGapThreshold := tr.Dynamics.InitialGapM + Ts*u + u*u/(2*tr.Dynamics.DesiredDecelMS2)
	if cp.GapM > safeGapThreshold && maxAccel > 0 {
		if u < uFree {
			return maxAccel
		}
		return 0
	}

	uHat := math.Min((cp.GapM-minGap)/Ts, uFree)
	lower, upper := u-mu*g*dt, u+maxAccel*dt
	uHat = math.Max(lower, math.Min(upper, uHat))

	denom := math.Max(u-cp.LeaderSpeedMS, 1e-4)
	ttc := (cp.GapM - minGap) / denom
	aTTC := math.Max((uHat-u)/ttc, -mu*g)
	aComfort := math.Min((uHat-u)/Ts, maxAccel)
	// a_leader = max(min((leaderSpeed-u)/Ts, maxAccel), -mu*g) is named by spec
	// as a third candidate but the blend formula below never consumes it.

	beta := 0.0
	if aTTC > 0 {
		beta = 1
	}
	a1 := beta*aComfort + (1-beta)*aTTC

	gapClosure := math.Max(cp.GapM-minGap, 1e-4)
	speedDiffSq := u*u - cp.LeaderSpeedMS*cp.LeaderSpeedMS
	a2 := (speedDiffSq * speedDiffSq / (4 * tr.Dynamics.DesiredDecelMS2)) / (gapClosure * gapClosure)
	if a2 > mu*g {
		a2 = mu * g
	}

	gamma := 0.0
	if u > cp.LeaderSpeedMS {
		gamma = 1
	}
	return a1*(1-gamma) - gamma*a2
}

// TrainStepInput carries this tick's context into Train.Step.
type TrainStepInput struct {
	Dt                   float64
	CriticalPoints       []CriticalPoint
	FreeFlowSpeedMS      float64
	TotalPathLengthM     float64
	NextIsRedSignalAhead bool
	MaxAccelMS2          float64
	TractiveForceAtZeroN float64
	TotalResistanceN     float64
}

// TrainStepResult reports what happened to the train this tick, for the
// simulator to turn into warnings/events.
type TrainStepResult struct {
	ReachedDestination   bool
	SnapStop             bool
	JerkLimited          bool
	ResistanceExceedsTraction bool
}

// Step runs one tick of spec.md §4.4: minimum acceleration over all critical
// points, jerk limiting, speed/position update, stop-snap and livelock-kick
// edge cases, and terminal detection.
func (tr *Train) Step(in TrainStepInput) TrainStepResult {
	var res TrainStepResult

	u := tr.CurrentSpeedMS
	a := in.MaxAccelMS2
	if len(in.CriticalPoints) > 0 {
		a = math.Inf(1)
		for _, cp := range in.CriticalPoints {
			if cand := tr.accelForCriticalPoint(cp, in.MaxAccelMS2, in.FreeFlowSpeedMS, in.Dt); cand < a {
				a = cand
			}
		}
	}

	maxDelta := tr.Dynamics.MaxJerkMS3 * in.Dt
	if delta := a - tr.CurrentAccelMS2; delta > maxDelta {
		a = tr.CurrentAccelMS2 + maxDelta
		res.JerkLimited = true
	} else if delta < -maxDelta {
		a = tr.CurrentAccelMS2 - maxDelta
		res.JerkLimited = true
	}

	uNew := clampf(u+a*in.Dt, 0, in.FreeFlowSpeedMS)
	aEff := (uNew - u) / in.Dt
	sNew := tr.TravelledDistanceM + uNew*in.Dt

	if in.NextIsRedSignalAhead && uNew < stopSnapSpeedMS && len(in.CriticalPoints) > 0 {
		nearest := math.Inf(1)
		for _, cp := range in.CriticalPoints {
			if cp.GapM < nearest {
				nearest = cp.GapM
			}
		}
		if nearest <= uNew*in.Dt+1e-6 {
			uNew, aEff = 0, 0
			sNew = tr.TravelledDistanceM
			res.SnapStop = true
		}
	} else if uNew < 1e-3 && len(in.CriticalPoints) == 0 && sNew < in.TotalPathLengthM {
		sNew = math.Min(in.TotalPathLengthM, tr.TravelledDistanceM+floorKickDistanceM)
	}

	if sNew >= in.TotalPathLengthM {
		sNew = in.TotalPathLengthM
		res.ReachedDestination = true
		tr.ReachedDestination = true
	}

	tr.PreviousSpeedMS, tr.PreviousAccelMS2 = tr.CurrentSpeedMS, tr.CurrentAccelMS2
	tr.CurrentSpeedMS, tr.CurrentAccelMS2 = uNew, aEff
	tr.TravelledDistanceM = sNew
	tr.TripTimeS += in.Dt

	res.ResistanceExceedsTraction = tr.updateLowTractionStreak(in.TractiveForceAtZeroN, in.TotalResistanceN)
	return res
}

func (tr *Train) updateLowTractionStreak(tractiveAtZeroN, totalResistanceN float64) bool {
	if tr.CurrentSpeedMS < lowTractionSpeedMS && tractiveAtZeroN < totalResistanceN {
		tr.lowTractionStreak++
	} else {
		tr.lowTractionStreak = 0
	}
	if tr.lowTractionStreak >= lowTractionStreakLimit {
		tr.lowTractionStreak = 0
		return true
	}
	return false
}

// AccountEnergy steps every locomotive's powertrain for this tick (spec.md
// §4.3), aggregating consumed/regenerated energy into the train's
// cumulative and per-region statistics (SPEC_FULL.md §4.8).
func (tr *Train) AccountEnergy(dt, freeFlowSpeedMS float64, region string, hasCatenary bool, geoms []VehicleGeometry, perVehicleResistanceN []float64, optimumThrottles []float64) []LocomotiveStepResult {
	results := make([]LocomotiveStepResult, 0, len(tr.Locomotives))
	anyRunning := false
	li := 0
	for i, v := range tr.Vehicles {
		loco, ok := v.(*Locomotive)
		if !ok {
			continue
		}
		optimum := 0.0
		if tr.Optimize && li < len(optimumThrottles) {
			optimum = optimumThrottles[li]
		}
		li++

		var resistN float64
		if i < len(perVehicleResistanceN) {
			resistN = perVehicleResistanceN[i]
		}

		stepRes := loco.Step(LocomotiveStepInput{
			SpeedMS:           tr.CurrentSpeedMS,
			FreeFlowSpeedMS:   freeFlowSpeedMS,
			FrictionCoef:      tr.FrictionCoef,
			TimestepS:         dt,
			AccelMS2:          tr.CurrentAccelMS2,
			SharedWeightKg:    loco.CurrentMassKg,
			SharedResistanceN: resistN,
			ReductionFactor:   1.0,
			Optimize:          tr.Optimize,
			OptimumThrottle:   optimum,
			HasCatenary:       hasCatenary,
		})

		if loco.Running && stepRes.ShortfallKWh > 1e-9 {
			stepRes.ShortfallKWh -= tr.drawFromTenders(loco, stepRes.ShortfallKWh, dt, &stepRes)
			if stepRes.ShortfallKWh > 1e-9 {
				loco.Running = false
				stepRes.TurnedOff = true
			}
		}
		results = append(results, stepRes)

		consumed := stepRes.BatteryKWhConsumed + stepRes.CatenaryKWhRequested
		if stepRes.TankLitersConsumed > 0 {
			consumed += stepRes.TankLitersConsumed / fuelConversionFactor(loco.PowerType)
		}
		regenerated := stepRes.BatteryKWhRecharged + stepRes.CatenaryKWhOffered

		tr.TotalEnergyConsumedKWh += consumed
		tr.TotalEnergyRegeneratedKWh += regenerated
		tr.TotalEnergyNetKWh += consumed - regenerated
		if region != "" {
			tr.EnergyByRegion[region] += consumed
		}

		if loco.Running {
			anyRunning = true
		}
	}
	if !anyRunning {
		tr.OutOfEnergy = true
	}
	return results
}

// tankTenderTypeFor maps a locomotive's fuel-burning PowerType to the
// CarType of tender that carries matching fuel (spec.md §4.5 step 3).
// Electric locomotives have no tank and draw no tank tenders.
func tankTenderTypeFor(pt PowerType) (CarType, bool) {
	switch pt {
	case Diesel, DieselElectric, DieselHybrid:
		return DieselTender, true
	case Biodiesel, BiodieselHybrid:
		return BiodieselTender, true
	case HydrogenHybrid:
		return HydrogenFuelCellTender, true
	}
	return 0, false
}

// drawFromTenders implements spec.md §4.5 step 3's residual-demand
// distribution: once a locomotive's own Tank/Battery can't cover its
// motoring demand, the remainder is split equally among this train's active
// tender cars of the matching fuel type (tank fuel tried before battery
// charge, mirroring the locomotive's own hybrid routing order).
func (tr *Train) drawFromTenders(loco *Locomotive, demandKWh, dt float64, res *LocomotiveStepResult) float64 {
	var delivered float64
	if loco.PowerType.hasTank() {
		delivered += tr.drawFromMatchingTankTenders(loco, demandKWh-delivered, res)
	}
	if remaining := demandKWh - delivered; remaining > 1e-9 && loco.PowerType.hasBattery() {
		delivered += tr.drawFromMatchingBatteryTenders(remaining, dt, res)
	}
	return delivered
}

func (tr *Train) drawFromMatchingTankTenders(loco *Locomotive, demandKWh float64, res *LocomotiveStepResult) float64 {
	ct, ok := tankTenderTypeFor(loco.PowerType)
	if !ok || demandKWh <= 1e-9 {
		return 0
	}
	var active []*Car
	for _, v := range tr.Vehicles {
		c, ok := v.(*Car)
		if !ok || c.Type != ct || c.Tank == nil {
			continue
		}
		if c.Tank.CurrentL > c.Tank.Floor() {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return 0
	}

	conv := fuelConversionFactor(loco.PowerType)
	share := demandKWh / float64(len(active))
	var delivered float64
	for _, c := range active {
		liters := share * conv
		got := c.Tank.Withdraw(liters)
		if got <= 0 {
			continue
		}
		delivered += got / conv
		res.TankLitersConsumed += got

		massLossKg := got * fuelDensityTonPerL(loco.PowerType) * 1000
		c.CurrentMassKg -= massLossKg
		if c.CurrentMassKg < c.EmptyMassKg {
			c.CurrentMassKg = c.EmptyMassKg
		}
	}
	return delivered
}

func (tr *Train) drawFromMatchingBatteryTenders(demandKWh, dt float64, res *LocomotiveStepResult) float64 {
	if demandKWh <= 1e-9 {
		return 0
	}
	var active []*Car
	for _, v := range tr.Vehicles {
		c, ok := v.(*Car)
		if !ok || c.Type != BatteryTender || c.Battery == nil {
			continue
		}
		floor := (1 - c.Battery.Params.DoD) * c.Battery.Params.MaxCapacityKWh
		if c.Battery.State.CurrentKWh > floor {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return 0
	}

	share := demandKWh / float64(len(active))
	var delivered float64
	for _, c := range active {
		_, got, _ := c.Battery.TryDischarge(dt, share)
		delivered += got
		res.BatteryKWhConsumed += got
	}
	return delivered
}

func clampf(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
