package model

import (
	"fmt"

	"netrailsim/internal/errs"
)

// errInvalidParam wraps a construction-time parameter violation in
// ErrInvalidGeometry: spec.md §7 treats bad vehicle/battery/tank parameters
// the same as bad link geometry — fatal at startup.
func errInvalidParam(msg string) error {
	return fmt.Errorf("%s: %w", msg, errs.ErrInvalidGeometry)
}
