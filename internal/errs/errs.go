// Package errs defines the typed error kinds surfaced at the simulator
// boundary. Only PathNotFound and InvalidGeometry are fatal; everything else
// is reported and handled locally by the caller.
package errs

import "fmt"

import "errors"

// Sentinel kinds. Wrap with fmt.Errorf("...: %w", ErrX) to attach context.
var (
	// ErrPathNotFound means a train's user-supplied path could not be
	// expanded into a connected link sequence. Fatal: the simulator refuses
	// to start that train.
	ErrPathNotFound = errors.New("path not found")

	// ErrInvalidGeometry means a link's computed length is <= 0, or a
	// vehicle's grade/curvature sampling does not match the vehicle count.
	// Fatal at startup.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrOutOfEnergy means every locomotive on a train has been turned off.
	// Non-fatal: the train coasts and the simulator continues.
	ErrOutOfEnergy = errors.New("out of energy")

	// ErrSuddenAcceleration means the jerk limit would have been exceeded
	// after all smoothing. The jerk-limited value is still used; this is
	// reported as a warning only.
	ErrSuddenAcceleration = errors.New("sudden acceleration")

	// ErrResistanceExceedsTraction means a train at low speed has had
	// resistance exceed its maximum tractive force for five consecutive
	// ticks. Reported as a warning only.
	ErrResistanceExceedsTraction = errors.New("resistance exceeds traction")

	// ErrCollision means two trains' segments intersect and they share a
	// link. Reported; the simulator continues unless the operator cancels.
	ErrCollision = errors.New("collision")
)

// Warning carries a non-fatal error kind plus enough context to report it
// without aborting the run. SignalStarvation is deliberately absent here: per
// spec it is handled locally by the signal controller and never surfaces.
type Warning struct {
	Kind    error
	TrainID int
	Tick    int64
	Detail  string
}

func (w Warning) Error() string {
	if w.Detail == "" {
		return fmt.Sprintf("train %d @ tick %d: %v", w.TrainID, w.Tick, w.Kind)
	}
	return fmt.Sprintf("train %d @ tick %d: %v: %s", w.TrainID, w.Tick, w.Kind, w.Detail)
}

func (w Warning) Unwrap() error { return w.Kind }

// Fatal reports whether a kind aborts the simulation on its own (without
// operator intervention), per spec.md §7.
func Fatal(kind error) bool {
	return errors.Is(kind, ErrPathNotFound) || errors.Is(kind, ErrInvalidGeometry)
}
