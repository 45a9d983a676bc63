// Package telemetry defines the simulator's event taxonomy and the fan-out
// hub that publishes it to zero or more subscribers, grounded on
// brt08/backend/sim/events.go's Event marker interface and runner.go's
// single-producer channel pattern.
package telemetry

// Event is a marker for every event the simulator emits.
type Event interface{ isEvent() }

// InitEvent marks the start of a run.
type InitEvent struct {
	TrainCount int
	LinkCount  int
	NodeCount  int
}

func (InitEvent) isEvent() {}

// MoveEvent is a per-tick position update for one train (spec.md §6
// "snapshot emissions").
type MoveEvent struct {
	TrainID  int
	Tick     int64
	HeadX    float64
	HeadY    float64
	TailX    float64
	TailY    float64
	SpeedMS  float64
	AccelMS2 float64
}

func (MoveEvent) isEvent() {}

// ArriveEvent marks a train loading onto the network at its start node.
type ArriveEvent struct {
	TrainID int
	Tick    int64
	NodeID  int
}

func (ArriveEvent) isEvent() {}

// CompletionEvent is the per-train completion emission of spec.md §6: trip
// time, travelled distance, energy totals (overall and by region) and final
// speed. It carries no tender status.
type CompletionEvent struct {
	TrainID                int
	TripTimeS              float64
	TravelledDistanceM     float64
	TotalEnergyConsumedKWh float64
	TotalEnergyRegeneratedKWh float64
	TotalEnergyNetKWh      float64
	EnergyByRegion         map[string]float64
	FinalSpeedMS           float64
}

func (CompletionEvent) isEvent() {}

// CollisionEvent reports two trains whose segments intersected while sharing
// a link (spec.md §4.5 step 5 / §7 ErrCollision).
type CollisionEvent struct {
	Tick     int64
	TrainA   int
	TrainB   int
	LinkID   int
}

func (CollisionEvent) isEvent() {}

// WarningEvent carries a non-fatal error kind (spec.md §7:
// SuddenAcceleration, ResistanceExceedsTraction, OutOfEnergy).
type WarningEvent struct {
	TrainID int
	Tick    int64
	Kind    string
	Detail  string
}

func (WarningEvent) isEvent() {}

// DoneEvent marks the end of a run: every train reached its destination or
// the driver cancelled.
type DoneEvent struct {
	Tick      int64
	Cancelled bool
}

func (DoneEvent) isEvent() {}
