// Package model implements the powertrain and vehicle data types: Battery,
// Tank, Car and Locomotive variants, the table-driven EnergyModel, and Train
// (composition, dynamics, and cumulative statistics).
package model

import "math"

// BatteryParams are the fixed physical parameters of one battery (spec.md
// §3). Units: MaxCapacityKWh in kWh, DischargeCRate/RechargeCRate in h⁻¹.
type BatteryParams struct {
	MaxCapacityKWh   float64
	DoD              float64 // depth of discharge, 0..1
	DischargeCRate   float64
	RechargeCRate    float64 // 0 = default to half DischargeCRate
	LowerSOC         float64 // recharge-enable sets when SOC <= LowerSOC
	UpperSOC         float64 // recharge-enable clears when SOC >= UpperSOC
}

// BatteryState is the mutable state of one battery.
type BatteryState struct {
	CurrentKWh    float64
	RechargeLatch bool // true while recharge is enabled (SOC in low band)

	CumConsumedKWh   float64
	CumRegeneratedKWh float64
	CumNetKWh        float64 // consumption positive, per spec.md §4.2
}

// Battery is a bounded energy store with charge/discharge C-rate limits and
// an SOC recharge hysteresis window (spec.md §3, §4.2).
type Battery struct {
	Params BatteryParams
	State  BatteryState
}

// NewBattery constructs a Battery, validating its parameters and clamping the
// initial charge to the capacity.
func NewBattery(params BatteryParams, initialSOC float64) (*Battery, error) {
	b := &Battery{Params: params}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	b.State.CurrentKWh = clamp01(initialSOC) * params.MaxCapacityKWh
	b.syncLatch()
	return b, nil
}

func (b *Battery) Validate() error {
	p := b.Params
	if p.MaxCapacityKWh <= 0 {
		return errInvalidParam("battery MaxCapacityKWh must be > 0")
	}
	if p.DoD <= 0 || p.DoD > 1 {
		return errInvalidParam("battery DoD must be in (0, 1]")
	}
	if p.DischargeCRate <= 0 {
		return errInvalidParam("battery DischargeCRate must be > 0")
	}
	if p.LowerSOC < 0 || p.UpperSOC > 1 || p.LowerSOC > p.UpperSOC {
		return errInvalidParam("battery LowerSOC/UpperSOC must satisfy 0<=lower<=upper<=1")
	}
	return nil
}

// SOC is the current state of charge, a fraction in [0,1].
func (b *Battery) SOC() float64 {
	return b.State.CurrentKWh / b.Params.MaxCapacityKWh
}

func (b *Battery) rechargeCRate() float64 {
	if b.Params.RechargeCRate > 0 {
		return b.Params.RechargeCRate
	}
	return b.Params.DischargeCRate / 2
}

// DischargeOutcome is the result kind of TryDischarge.
type DischargeOutcome int

const (
	Refused DischargeOutcome = iota
	Accepted
	Partial
)

// TryDischarge draws up to requestedKWh over timestep seconds, bounded by the
// C-rate and the depth-of-discharge floor (spec.md §4.2).
func (b *Battery) TryDischarge(timestep, requestedKWh float64) (outcome DischargeOutcome, deliveredKWh, shortfallKWh float64) {
	floor := (1 - b.Params.DoD) * b.Params.MaxCapacityKWh
	if b.State.CurrentKWh <= floor {
		return Refused, 0, requestedKWh
	}
	maxStep := b.Params.MaxCapacityKWh * b.Params.DischargeCRate * timestep / 3600
	available := b.State.CurrentKWh - floor
	limit := math.Min(maxStep, available)

	delivered := math.Min(requestedKWh, limit)
	if delivered < 0 {
		delivered = 0
	}
	b.State.CurrentKWh -= delivered
	b.State.CumConsumedKWh += delivered
	b.State.CumNetKWh += delivered
	b.syncLatch()

	shortfall := requestedKWh - delivered
	if shortfall <= 1e-9 {
		return Accepted, delivered, 0
	}
	return Partial, delivered, shortfall
}

// RechargeSource tags where recharge energy originates.
type RechargeSource int

const (
	Regenerated RechargeSource = iota
	FromEngine
)

// TryRecharge offers offeredKWh of recharge energy, capped by the recharge
// C-rate and refused once SOC reaches the upper hysteresis bound (spec.md
// §4.2).
func (b *Battery) TryRecharge(timestep, offeredKWh float64, _ RechargeSource) float64 {
	if b.SOC() >= b.Params.UpperSOC {
		return 0
	}
	maxStep := b.Params.MaxCapacityKWh * b.rechargeCRate() * timestep / 3600
	headroom := b.Params.MaxCapacityKWh - b.State.CurrentKWh
	limit := math.Min(maxStep, headroom)

	accepted := math.Min(offeredKWh, limit)
	if accepted < 0 {
		accepted = 0
	}
	b.State.CurrentKWh += accepted
	b.State.CumRegeneratedKWh += accepted
	b.State.CumNetKWh -= accepted
	b.syncLatch()
	return accepted
}

// syncLatch applies the recharge-enable hysteresis: sets when SOC <= lower,
// clears when SOC >= upper, holds otherwise.
func (b *Battery) syncLatch() {
	soc := b.SOC()
	if soc <= b.Params.LowerSOC {
		b.State.RechargeLatch = true
	} else if soc >= b.Params.UpperSOC {
		b.State.RechargeLatch = false
	}
}

// RechargeEnabled reports the current hysteresis latch state.
func (b *Battery) RechargeEnabled() bool { return b.State.RechargeLatch }

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
