package model_test

import (
	"testing"

	"netrailsim/internal/model"

	"github.com/stretchr/testify/require"
)

func newDieselLocomotive(t *testing.T) *model.Locomotive {
	t.Helper()
	tank, err := model.NewTank(10000, 0.05, 1.0)
	require.NoError(t, err)
	loco, err := model.NewLocomotive(
		model.Diesel, model.Series, 2000, 0.9, 20, 0.8, 120,
		100000, 120000, 6, 8, 8, 10, nil, tank,
	)
	require.NoError(t, err)
	return loco
}

func TestNewLocomotive_RejectsBatteryTankMismatch(t *testing.T) {
	tank, err := model.NewTank(10000, 0.05, 1.0)
	require.NoError(t, err)

	// Diesel must not carry a Battery.
	battery, err := model.NewBattery(defaultBatteryParams(), 0.5)
	require.NoError(t, err)
	_, err = model.NewLocomotive(model.Diesel, model.Series, 2000, 0.9, 20, 0.8, 120,
		100000, 120000, 6, 8, 8, 10, battery, tank)
	require.Error(t, err)

	// Electric must carry a Battery and must not carry a Tank.
	_, err = model.NewLocomotive(model.Electric, model.Series, 2000, 0.9, 20, 0.8, 120,
		100000, 120000, 6, 8, 8, 10, nil, tank)
	require.Error(t, err)
}

func TestNewLocomotive_RejectsInvalidMass(t *testing.T) {
	tank, err := model.NewTank(10000, 0.05, 1.0)
	require.NoError(t, err)
	_, err = model.NewLocomotive(model.Diesel, model.Series, 2000, 0.9, 20, 0.8, 120,
		120000, 100000, 6, 8, 8, 10, nil, tank)
	require.Error(t, err, "current mass below empty mass must be rejected")
}

func TestLocomotive_TractiveForce_AdhesionLimitedAtZeroSpeed(t *testing.T) {
	loco := newDieselLocomotive(t)
	f := loco.TractiveForce(0, 0.3, 1.0)
	require.InDelta(t, 0.3*loco.CurrentMassKg*9.80665, f, 1.0)
}

func TestLocomotive_EffectiveThrottle_OptimizerCapsThrottle(t *testing.T) {
	loco := newDieselLocomotive(t)
	_, uncapped := loco.EffectiveThrottle(15, 20, false, 0)
	_, capped := loco.EffectiveThrottle(15, 20, true, 0.01)
	require.LessOrEqual(t, capped, uncapped)
	require.LessOrEqual(t, capped, 0.01+1e-9)
}

func TestLocomotive_Step_ConsumesTankFuelWhenMotoring(t *testing.T) {
	loco := newDieselLocomotive(t)
	startL := loco.Tank.CurrentL

	res := loco.Step(model.LocomotiveStepInput{
		SpeedMS: 10, FreeFlowSpeedMS: 20, FrictionCoef: 0.3, TimestepS: 1.0,
		AccelMS2: 0.5, SharedWeightKg: loco.CurrentMassKg, SharedResistanceN: 5000,
		ReductionFactor: 1.0,
	})
	require.Greater(t, res.TractiveForceN, 0.0)
	require.Greater(t, res.TankLitersConsumed, 0.0)
	require.Less(t, loco.Tank.CurrentL, startL)
}

func TestLocomotive_Step_NotRunningIsNoop(t *testing.T) {
	loco := newDieselLocomotive(t)
	loco.Running = false
	res := loco.Step(model.LocomotiveStepInput{SpeedMS: 10, FreeFlowSpeedMS: 20, TimestepS: 1.0})
	require.Equal(t, model.LocomotiveStepResult{}, res)
}
