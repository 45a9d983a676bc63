package sim_test

import (
	"context"
	"testing"
	"time"

	"netrailsim/internal/model"
	"netrailsim/internal/network"
	"netrailsim/internal/policy"
	"netrailsim/internal/sim"
	"netrailsim/internal/telemetry"

	"github.com/stretchr/testify/require"
)

// drainEvents collects every event published on ch until it closes or a
// DoneEvent arrives, whichever comes first.
func drainEvents(ch <-chan telemetry.Event) []telemetry.Event {
	var out []telemetry.Event
	for ev := range ch {
		out = append(out, ev)
		if _, ok := ev.(telemetry.DoneEvent); ok {
			return out
		}
	}
	return out
}

func moveEvents(events []telemetry.Event, trainID int) []telemetry.MoveEvent {
	var out []telemetry.MoveEvent
	for _, ev := range events {
		if m, ok := ev.(telemetry.MoveEvent); ok && m.TrainID == trainID {
			out = append(out, m)
		}
	}
	return out
}

// TestSimulator_RegenOnDowngradeChargesBattery is spec.md §8's S2: a
// diesel-hybrid locomotive descending a negative-grade link must recover
// braking energy into its battery at least once, and the train's cumulative
// regenerated total must be positive.
func TestSimulator_RegenOnDowngradeChargesBattery(t *testing.T) {
	nodes := []network.NodeRecord{
		{UserID: 1, X: 0, Y: 0, IsTerminal: true},
		{UserID: 2, X: 2000, Y: 0, IsTerminal: true},
	}
	links := []network.LinkRecord{
		{UserID: 101, FromNodeUserID: 1, ToNodeUserID: 2, Length: 2000, FreeFlowSpeed: 30, Directions: 1, Grade: -0.01},
	}
	net, err := network.NewNetwork(nodes, links)
	require.NoError(t, err)

	spec := model.TrainSpec{
		UserID:              1,
		FrictionCoefficient: 0.3,
		Locomotives: []model.LocomotiveSpec{{
			Count: 1, PowerType: model.DieselHybrid, Method: model.Series, MaxPowerKW: 2500, TransmissionEff: 0.9,
			LengthM: 20, DragCoef: 0.8, FrontalAreaSqFt: 120, WeightTons: 130, Axles: 6,
			NotchCount: 8, MaxAchievableNotch: 8, AuxLoadKW: 10,
			Tank:    &model.TankSpec{MaxCapacityL: 10000, MinDoD: 0.05, InitialFraction: 1},
			Battery: &model.BatterySpec{MaxCapacityKWh: 50, DoD: 0.8, DischargeCRate: 1, RechargeCRate: 1, LowerSOC: 0.2, UpperSOC: 0.9, InitialSOC: 0.6},
		}},
	}
	tr, err := model.BuildTrain([]int{1, 2}, spec)
	require.NoError(t, err)

	s := sim.NewSimulator(net, []*model.Train{tr}, policy.Constant{}, 1.0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events := s.Events(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	battery := tr.Locomotives[0].Battery
	var samples []float64
	var completion *telemetry.CompletionEvent
	for ev := range events {
		if _, ok := ev.(telemetry.MoveEvent); ok {
			samples = append(samples, battery.State.CurrentKWh)
		}
		if c, ok := ev.(telemetry.CompletionEvent); ok {
			cc := c
			completion = &cc
		}
		if _, ok := ev.(telemetry.DoneEvent); ok {
			break
		}
	}
	require.NoError(t, <-runDone)
	require.NotNil(t, completion)
	require.Greater(t, completion.TotalEnergyRegeneratedKWh, 0.0)

	increased := false
	for i := 1; i < len(samples); i++ {
		if samples[i] > samples[i-1] {
			increased = true
			break
		}
	}
	require.True(t, increased, "battery charge must strictly increase for at least one tick while braking downhill")
}

// TestSimulator_RedSignalStopsTrainAtNode is spec.md §8's S3: a train
// approaching a red signal must decelerate to a complete stop with its head
// within [0, 2] m of the signalled node, then proceed once the controller
// (trivially, as the lone member of its FIFO) clears it.
func TestSimulator_RedSignalStopsTrainAtNode(t *testing.T) {
	nodes := []network.NodeRecord{
		{UserID: 1, X: 0, Y: 0, IsTerminal: true},
		{UserID: 2, X: 500, Y: 0},
		{UserID: 3, X: 1000, Y: 0, IsTerminal: true},
	}
	links := []network.LinkRecord{
		{UserID: 101, FromNodeUserID: 1, ToNodeUserID: 2, Length: 500, FreeFlowSpeed: 15, Directions: 1, SignalID: 5},
		{UserID: 102, FromNodeUserID: 2, ToNodeUserID: 3, Length: 500, FreeFlowSpeed: 15, Directions: 1},
	}
	net, err := network.NewNetwork(nodes, links)
	require.NoError(t, err)

	tr := buildDieselTrain(t, 1, []int{1, 2, 3}, 0)
	s := sim.NewSimulator(net, []*model.Train{tr}, policy.Constant{}, 1.0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	events := s.Events(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	all := drainEvents(events)
	require.NoError(t, <-runDone)
	require.True(t, tr.ReachedDestination)

	var stoppedNearSignal bool
	for _, m := range moveEvents(all, 1) {
		if m.SpeedMS < 0.05 && m.HeadX >= 498 && m.HeadX <= 502 && float64(m.Tick) <= 60 {
			stoppedNearSignal = true
			break
		}
	}
	require.True(t, stoppedNearSignal, "train must come to a complete stop within 2m of the red-signal node within 60s")
}

// buildJunctionNetwork builds a four-arm crossing: W--S--E on the x-axis and
// Na--S--Nb on the y-axis, sharing junction node S. Each inbound arm carries
// its own signal at S, so buildSignalGroups coalesces both into the single
// controller that arbitrates the crossing (spec.md §8's S4).
func buildJunctionNetwork(t *testing.T) *network.Network {
	t.Helper()
	nodes := []network.NodeRecord{
		{UserID: 1, X: -1000, Y: 0, IsTerminal: true},  // W
		{UserID: 2, X: 0, Y: 0},                        // S
		{UserID: 3, X: 1000, Y: 0, IsTerminal: true},   // E
		{UserID: 4, X: 0, Y: -1000, IsTerminal: true},  // Na
		{UserID: 5, X: 0, Y: 1000, IsTerminal: true},   // Nb
	}
	links := []network.LinkRecord{
		{UserID: 101, FromNodeUserID: 1, ToNodeUserID: 2, Length: 1000, FreeFlowSpeed: 20, Directions: 1, SignalID: 1},
		{UserID: 102, FromNodeUserID: 2, ToNodeUserID: 3, Length: 1000, FreeFlowSpeed: 20, Directions: 1},
		{UserID: 103, FromNodeUserID: 4, ToNodeUserID: 2, Length: 1000, FreeFlowSpeed: 20, Directions: 1, SignalID: 2},
		{UserID: 104, FromNodeUserID: 2, ToNodeUserID: 5, Length: 1000, FreeFlowSpeed: 20, Directions: 1},
	}
	net, err := network.NewNetwork(nodes, links)
	require.NoError(t, err)
	return net
}

// TestSimulator_SignalGroupArbitratesCrossingConflict is spec.md §8's S4:
// two trains approaching the same junction from perpendicular paths within a
// few seconds of each other must be serialized by the shared controller
// (the earlier to request passage crosses first; the other is held), and
// neither collides with the other.
func TestSimulator_SignalGroupArbitratesCrossingConflict(t *testing.T) {
	net := buildJunctionNetwork(t)
	trA := buildDieselTrain(t, 1, []int{1, 2, 3}, 0)
	trB := buildDieselTrain(t, 2, []int{4, 2, 5}, 0)

	s := sim.NewSimulator(net, []*model.Train{trA, trB}, policy.Constant{}, 1.0)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	events := s.Events(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	all := drainEvents(events)
	require.NoError(t, <-runDone)
	require.True(t, trA.ReachedDestination)
	require.True(t, trB.ReachedDestination)

	for _, ev := range all {
		_, isCollision := ev.(telemetry.CollisionEvent)
		require.False(t, isCollision, "perpendicular crossing must be serialized, never collide")
	}

	crossTick := func(trainID int, crossed func(telemetry.MoveEvent) bool) (int64, bool) {
		for _, m := range moveEvents(all, trainID) {
			if crossed(m) {
				return m.Tick, true
			}
		}
		return 0, false
	}

	tickA, okA := crossTick(1, func(m telemetry.MoveEvent) bool { return m.HeadX >= 0 })
	tickB, okB := crossTick(2, func(m telemetry.MoveEvent) bool { return m.HeadY >= 0 })
	require.True(t, okA, "train A must reach junction node S")
	require.True(t, okB, "train B must reach junction node S")
	require.Less(t, tickA, tickB, "the earlier-arriving train (lower id, processed first) must clear the junction before the other")
}

// TestSimulator_OutOfEnergyLocomotiveCoastsWithoutAborting is spec.md §8's
// S5: a pure-electric locomotive with an already-exhausted battery and no
// catenary turns off immediately, the train never reaches its destination,
// and the simulator keeps running (context cancellation, not a panic or
// error return) rather than aborting.
func TestSimulator_OutOfEnergyLocomotiveCoastsWithoutAborting(t *testing.T) {
	nodes := []network.NodeRecord{
		{UserID: 1, X: 0, Y: 0, IsTerminal: true},
		{UserID: 2, X: 5000, Y: 0, IsTerminal: true},
	}
	links := []network.LinkRecord{
		{UserID: 101, FromNodeUserID: 1, ToNodeUserID: 2, Length: 5000, FreeFlowSpeed: 20, Directions: 1},
	}
	net, err := network.NewNetwork(nodes, links)
	require.NoError(t, err)

	spec := model.TrainSpec{
		UserID:              1,
		FrictionCoefficient: 0.3,
		Locomotives: []model.LocomotiveSpec{{
			Count: 1, PowerType: model.Electric, MaxPowerKW: 2000, TransmissionEff: 0.9,
			LengthM: 20, DragCoef: 0.8, FrontalAreaSqFt: 120, WeightTons: 120, Axles: 6,
			NotchCount: 8, MaxAchievableNotch: 8, AuxLoadKW: 10,
			Battery: &model.BatterySpec{MaxCapacityKWh: 50, DoD: 0.8, DischargeCRate: 1, RechargeCRate: 1, LowerSOC: 0.2, UpperSOC: 0.9, InitialSOC: 0.02},
		}},
	}
	tr, err := model.BuildTrain([]int{1, 2}, spec)
	require.NoError(t, err)

	s := sim.NewSimulator(net, []*model.Train{tr}, policy.Constant{}, 1.0)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	events := s.Events(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	all := drainEvents(events)
	err = <-runDone
	require.ErrorIs(t, err, context.DeadlineExceeded, "the simulator must stop via context cancellation, not abort")
	require.False(t, tr.ReachedDestination)
	require.True(t, tr.OutOfEnergy)
	require.False(t, tr.Locomotives[0].Running)

	var sawOutOfEnergyWarning bool
	for _, ev := range all {
		if w, ok := ev.(telemetry.WarningEvent); ok && w.Kind == "out of energy" {
			sawOutOfEnergyWarning = true
			break
		}
	}
	require.True(t, sawOutOfEnergyWarning, "an out-of-energy warning must be published")
}

// TestSimulator_CollisionDetectedOnOpposingTrains exercises detectCollisions
// end to end: two trains loaded onto opposite ends of the same bidirectional
// link, travelling toward each other, must produce a CollisionEvent once
// their head-to-tail segments overlap.
func TestSimulator_CollisionDetectedOnOpposingTrains(t *testing.T) {
	nodes := []network.NodeRecord{
		{UserID: 1, X: 0, Y: 0, IsTerminal: true},
		{UserID: 2, X: 2000, Y: 0, IsTerminal: true},
	}
	links := []network.LinkRecord{
		{UserID: 101, FromNodeUserID: 1, ToNodeUserID: 2, Length: 2000, FreeFlowSpeed: 25, Directions: 2},
	}
	net, err := network.NewNetwork(nodes, links)
	require.NoError(t, err)

	trA := buildDieselTrain(t, 1, []int{1, 2}, 0)
	trB := buildDieselTrain(t, 2, []int{2, 1}, 0)

	s := sim.NewSimulator(net, []*model.Train{trA, trB}, policy.Constant{}, 1.0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	events := s.Events(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	var sawCollision bool
	for ev := range events {
		if _, ok := ev.(telemetry.CollisionEvent); ok {
			sawCollision = true
		}
		if _, ok := ev.(telemetry.DoneEvent); ok {
			break
		}
	}
	<-runDone
	require.True(t, sawCollision, "two trains converging head-on on a shared bidirectional link must collide")
}
