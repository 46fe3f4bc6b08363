package oxido

import (
	"fmt"

	"github.com/agilira/go-errors"
)

// Error codes returned by the public API.
const (
	ErrCodeNilConfig      = "OXIDO_NIL_CONFIG"
	ErrCodeConfigReleased = "OXIDO_CONFIG_RELEASED"
)

// ExitError is returned by Run when a program exits with a non-zero code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("program exited with code %d", e.Code)
}

func errNilConfig() error {
	return errors.New(ErrCodeNilConfig, "config is nil")
}

func errConfigReleased() error {
	return errors.New(ErrCodeConfigReleased, "config has already been released")
}
