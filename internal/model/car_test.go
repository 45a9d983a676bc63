package model_test

import (
	"testing"

	"netrailsim/internal/model"

	"github.com/stretchr/testify/require"
)

func TestNewCar_CargoRejectsBatteryOrTank(t *testing.T) {
	tank, err := model.NewTank(1000, 0.1, 1.0)
	require.NoError(t, err)
	_, err = model.NewCar(model.Cargo, 10000, 12000, 15, 0.9, 100, 4, nil, tank)
	require.Error(t, err)
}

func TestNewCar_DieselTenderRequiresTank(t *testing.T) {
	_, err := model.NewCar(model.DieselTender, 10000, 12000, 15, 0.9, 100, 4, nil, nil)
	require.Error(t, err)

	tank, err := model.NewTank(1000, 0.1, 1.0)
	require.NoError(t, err)
	c, err := model.NewCar(model.DieselTender, 10000, 12000, 15, 0.9, 100, 4, nil, tank)
	require.NoError(t, err)
	require.NotNil(t, c.Tank)
}

func TestNewCar_BatteryTenderRequiresBattery(t *testing.T) {
	_, err := model.NewCar(model.BatteryTender, 10000, 12000, 15, 0.9, 100, 4, nil, nil)
	require.Error(t, err)

	battery, err := model.NewBattery(defaultBatteryParams(), 0.5)
	require.NoError(t, err)
	c, err := model.NewCar(model.BatteryTender, 10000, 12000, 15, 0.9, 100, 4, battery, nil)
	require.NoError(t, err)
	require.NotNil(t, c.Battery)
}

func TestCar_ResistanceIncreasesWithSpeed(t *testing.T) {
	c, err := model.NewCar(model.Cargo, 10000, 12000, 15, 0.9, 100, 4, nil, nil)
	require.NoError(t, err)

	low := c.Resistance(5, 0, 0)
	high := c.Resistance(25, 0, 0)
	require.Greater(t, high, low, "aerodynamic drag must grow with speed")
}
