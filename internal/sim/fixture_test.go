package sim_test

import (
	"testing"

	"netrailsim/internal/model"
	"netrailsim/internal/network"
)

// buildLineNetwork constructs a three-node straight line: terminal 1 --
// link A (lengthAB) -- node 2 -- link B (lengthBC) -- terminal 3. Node 2 is
// not a terminal. Useful as the shared fixture for simulator tests that
// don't need junctions or parallel links.
func buildLineNetwork(t *testing.T, lengthAB, lengthBC, speedAB, speedBC float64) *network.Network {
	t.Helper()
	nodes := []network.NodeRecord{
		{UserID: 1, X: 0, Y: 0, IsTerminal: true},
		{UserID: 2, X: lengthAB, Y: 0},
		{UserID: 3, X: lengthAB + lengthBC, Y: 0, IsTerminal: true},
	}
	links := []network.LinkRecord{
		{UserID: 101, FromNodeUserID: 1, ToNodeUserID: 2, Length: lengthAB, FreeFlowSpeed: speedAB, Directions: 1},
		{UserID: 102, FromNodeUserID: 2, ToNodeUserID: 3, Length: lengthBC, FreeFlowSpeed: speedBC, Directions: 1},
	}
	net, err := network.NewNetwork(nodes, links)
	if err != nil {
		t.Fatalf("buildLineNetwork: %v", err)
	}
	return net
}

// buildDieselTrain builds a minimal one-locomotive, one-car diesel train
// along path (expanded node user ids), starting at startTimeS.
func buildDieselTrain(t *testing.T, id int, path []int, startTimeS float64) *model.Train {
	t.Helper()
	spec := model.TrainSpec{
		UserID:              id,
		StartTimeS:          startTimeS,
		FrictionCoefficient: 0.3,
		Locomotives: []model.LocomotiveSpec{{
			Count: 1, PowerType: model.Diesel, MaxPowerKW: 2000, TransmissionEff: 0.9,
			LengthM: 20, DragCoef: 0.8, FrontalAreaSqFt: 120, WeightTons: 120, Axles: 6,
			NotchCount: 8, MaxAchievableNotch: 8, AuxLoadKW: 10,
			Tank: &model.TankSpec{MaxCapacityL: 10000, MinDoD: 0.05, InitialFraction: 1},
		}},
		Cars: []model.CarSpec{{
			Count: 2, Type: model.Cargo, LengthM: 15, DragCoef: 0.9, FrontalAreaSqFt: 100,
			CurrentWeightTons: 80, EmptyWeightTons: 20, Axles: 4,
		}},
		Optimize: false,
	}
	tr, err := model.BuildTrain(path, spec)
	if err != nil {
		t.Fatalf("buildDieselTrain: %v", err)
	}
	return tr
}
