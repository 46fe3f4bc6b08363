package oxido

import (
	"context"
	"os"
	"sync/atomic"
)

// version is replaced at link time with -ldflags "-X github.com/eugenenazirov/oxido.version=...".
var version = "0.1.0"

// Version returns the build identifier.
func Version() string {
	return version
}

// Config selects how Run treats a program. It is immutable and must be
// released with Free exactly once.
type Config struct {
	debug  bool
	dryRun bool
	time   bool

	released atomic.Bool
}

// NewConfig creates a config. debug prints tokens, the syntax tree and phase
// timings; dryRun stops after parsing; time prints the total run time.
func NewConfig(debug, dryRun, time bool) *Config {
	return &Config{debug: debug, dryRun: dryRun, time: time}
}

func (c *Config) Debug() bool  { return c.debug }
func (c *Config) DryRun() bool { return c.dryRun }
func (c *Config) Time() bool   { return c.time }

// Free releases the config. Releasing twice, or releasing a nil config,
// returns a coded error.
func (c *Config) Free() error {
	if c == nil {
		return errNilConfig()
	}
	if !c.released.CompareAndSwap(false, true) {
		return errConfigReleased()
	}
	return nil
}

// usable reports whether c may still be passed to Run.
func (c *Config) usable() error {
	if c == nil {
		return errNilConfig()
	}
	if c.released.Load() {
		return errConfigReleased()
	}
	return nil
}

// Run executes contents, named name in diagnostics, using the process's
// standard streams. Language errors are rendered to stderr and returned. A
// non-zero exit from the program is reported as *ExitError.
func Run(name, contents string, cfg *Config) error {
	engine := NewEngine(
		WithStdout(os.Stdout),
		WithStderr(os.Stderr),
		WithStdin(os.Stdin),
		WithColor(os.Getenv("NO_COLOR") == ""),
	)
	report, err := engine.Run(context.Background(), name, contents, cfg)
	if err != nil {
		return err
	}
	if report.ExitCode != 0 {
		return &ExitError{Code: report.ExitCode}
	}
	return nil
}
