package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/oxido"
	"github.com/eugenenazirov/oxido/internal/application"
	"github.com/eugenenazirov/oxido/internal/config"
	"github.com/eugenenazirov/oxido/internal/diag"
	"github.com/eugenenazirov/oxido/internal/logging"
	"github.com/eugenenazirov/oxido/internal/source"
)

var signalNotify = signal.Notify

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// cli holds the parsed command line.
type cli struct {
	app *kingpin.Application

	run     *kingpin.CmdClause
	serve   *kingpin.CmdClause
	version *kingpin.CmdClause

	configFile string
	envFile    string
	logLevel   optional[string]

	debug    optional[bool]
	dryRun   optional[bool]
	time     optional[bool]
	color    optional[bool]
	maxSteps optional[int64]
	code     string
	input    string

	port           optional[string]
	rateLimitRPS   optional[float64]
	rateLimitBurst optional[int]
}

// optional is a flag value plus whether the user passed it.
type optional[T any] struct {
	value T
	set   bool
}

func (o optional[T]) ptr() *T {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

func newCLI() *cli {
	c := &cli{}
	c.app = kingpin.New("oxido", "Run oxido programs or serve the oxido playground")
	c.app.Version(oxido.Version())
	c.app.Flag("config", "Path to YAML configuration file").StringVar(&c.configFile)
	c.app.Flag("env-file", "Path to a .env file (defaults to ./.env)").StringVar(&c.envFile)
	c.app.Flag("log-level", "Log level: debug, info, warn or error").
		IsSetByUser(&c.logLevel.set).StringVar(&c.logLevel.value)

	c.run = c.app.Command("run", "Run a program").Default()
	c.run.Flag("debug", "Print tokens, the syntax tree and timings").Short('d').
		IsSetByUser(&c.debug.set).BoolVar(&c.debug.value)
	c.run.Flag("dry-run", "Lex and parse without executing").
		IsSetByUser(&c.dryRun.set).BoolVar(&c.dryRun.value)
	c.run.Flag("time", "Print the elapsed time").Short('t').
		IsSetByUser(&c.time.set).BoolVar(&c.time.value)
	c.run.Flag("color", "Colour diagnostics (use --no-color to disable)").
		IsSetByUser(&c.color.set).BoolVar(&c.color.value)
	c.run.Flag("max-steps", "Statement budget, 0 for unlimited").
		IsSetByUser(&c.maxSteps.set).Int64Var(&c.maxSteps.value)
	c.run.Flag("code", "Program text to run instead of a file").Short('c').StringVar(&c.code)
	c.run.Arg("input", "Program file, or a directory with main.oxi or src/main.oxi").StringVar(&c.input)

	c.serve = c.app.Command("serve", "Serve the playground over HTTP")
	c.serve.Flag("port", "HTTP port exposed by the service").
		IsSetByUser(&c.port.set).StringVar(&c.port.value)
	c.serve.Flag("rate-limit-rps", "Requests per second allowed per client (set 0 to disable)").
		IsSetByUser(&c.rateLimitRPS.set).Float64Var(&c.rateLimitRPS.value)
	c.serve.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").
		IsSetByUser(&c.rateLimitBurst.set).IntVar(&c.rateLimitBurst.value)

	c.version = c.app.Command("version", "Print the version")
	return c
}

// overrides converts the flags the user passed into configuration overrides.
func (c *cli) overrides() *config.CLIOverrides {
	return &config.CLIOverrides{
		ConfigFile:     c.configFile,
		EnvFile:        c.envFile,
		Debug:          c.debug.ptr(),
		DryRun:         c.dryRun.ptr(),
		Time:           c.time.ptr(),
		Color:          c.color.ptr(),
		MaxSteps:       c.maxSteps.ptr(),
		LogLevel:       c.logLevel.ptr(),
		Port:           c.port.ptr(),
		RateLimitRPS:   c.rateLimitRPS.ptr(),
		RateLimitBurst: c.rateLimitBurst.ptr(),
	}
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := newCLI()
	c.app.UsageWriter(stdout)
	c.app.ErrorWriter(stderr)

	terminated := -1
	c.app.Terminate(func(code int) {
		if terminated < 0 {
			terminated = code
		}
	})

	command, err := c.app.Parse(args)
	if terminated >= 0 {
		return terminated
	}
	if err != nil {
		c.app.Errorf("%s, try --help", err)
		return 2
	}

	switch command {
	case c.version.FullCommand():
		fmt.Fprintln(stdout, oxido.Version())
		return 0
	case c.serve.FullCommand():
		return c.runServe(stderr)
	default:
		return c.runProgram(stdin, stdout, stderr)
	}
}

func (c *cli) runProgram(stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Load(c.overrides())
	if err != nil {
		fmt.Fprintf(stderr, "error: failed to load configuration: %v\n", err)
		return 1
	}

	file, err := source.Resolve(c.code, c.input)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "error: failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	runCfg := oxido.NewConfig(cfg.Debug, cfg.DryRun, cfg.Time)
	defer func() {
		_ = runCfg.Free()
	}()

	engine := oxido.NewEngine(
		oxido.WithStdout(stdout),
		oxido.WithStderr(stderr),
		oxido.WithStdin(stdin),
		oxido.WithLogger(logger),
		oxido.WithColor(cfg.Color),
		oxido.WithMaxSteps(cfg.MaxSteps),
		oxido.WithMaxCallDepth(cfg.MaxCallDepth),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := engine.Run(ctx, file.Name, file.Contents, runCfg)
	if err != nil {
		var d *diag.Diagnostic
		if !errors.As(err, &d) {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 1
	}
	return report.ExitCode
}

func (c *cli) runServe(stderr io.Writer) int {
	cfg, err := config.Load(c.overrides())
	if err != nil {
		fmt.Fprintf(stderr, "error: failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "error: failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", zap.Error(err))
		return 1
	}

	if err := app.Start(); err != nil {
		logger.Error("failed to start server", zap.Error(err))
		return 1
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
	return 0
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
