package model_test

import (
	"testing"

	"netrailsim/internal/model"

	"github.com/stretchr/testify/require"
)

func TestNewTank_InitialFill(t *testing.T) {
	tk, err := model.NewTank(1000, 0.1, 0.5)
	require.NoError(t, err)
	require.InDelta(t, 500.0, tk.CurrentL, 1e-9)
}

func TestNewTank_RejectsInvalidParams(t *testing.T) {
	_, err := model.NewTank(0, 0.1, 0.5)
	require.Error(t, err)

	_, err = model.NewTank(1000, 1.5, 0.5)
	require.Error(t, err)
}

func TestTank_WithdrawStopsAtFloor(t *testing.T) {
	tk, err := model.NewTank(1000, 0.1, 1.0)
	require.NoError(t, err)

	// floor = (1-0.1)*1000 = 900; 1000 starting, so 100 is withdrawable.
	got := tk.Withdraw(500)
	require.InDelta(t, 100.0, got, 1e-9)
	require.InDelta(t, 900.0, tk.CurrentL, 1e-9)

	got = tk.Withdraw(1)
	require.Equal(t, 0.0, got)
}

func TestTank_FillStopsAtCapacity(t *testing.T) {
	tk, err := model.NewTank(1000, 0.1, 0.0)
	require.NoError(t, err)

	got := tk.Fill(1500)
	require.InDelta(t, 1000.0, got, 1e-9)
	require.InDelta(t, 1000.0, tk.CurrentL, 1e-9)

	got = tk.Fill(1)
	require.Equal(t, 0.0, got)
}
