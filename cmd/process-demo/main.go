// Command process-demo runs the account processes against a SQLite
// database, prints their event logs and keeps their traces.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-logger/glog"
	"github.com/joho/godotenv"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	process "github.com/goliatone/go-process"
	"github.com/goliatone/go-process/eventlog"
	"github.com/goliatone/go-process/examples/accounts"
	"github.com/goliatone/go-process/runner"
	"github.com/goliatone/go-process/telemetry"
	"github.com/goliatone/go-process/tracestore"
)

type CLI struct {
	Traces   TracesCmd   `cmd:"" help:"Inspect stored traces."`
	Settings SettingsCmd `cmd:"" help:"Print the effective configuration."`
}

type TracesCmd struct {
	List TracesListCmd `cmd:"" default:"withargs" help:"List stored traces, newest first."`
	Show TracesShowCmd `cmd:"" help:"Print the event log of a stored trace."`
}

type TracesListCmd struct {
	Root   string `help:"Only traces of this root process."`
	Status string `help:"Only traces with this status (finished or interrupted)."`
	Limit  int    `help:"Maximum number of traces." default:"20"`
}

func (c *TracesListCmd) Run(a *app) error {
	if a.traces == nil {
		return fmt.Errorf("trace store is disabled")
	}
	list, err := a.traces.List(a.ctx, tracestore.Filter{Root: c.Root, Status: c.Status, Limit: c.Limit})
	if err != nil {
		return err
	}
	for _, s := range list {
		fmt.Fprintf(a.out, "%s  %-11s %-28s %s\n", s.ID, s.Status, s.Root, s.Duration())
	}
	return nil
}

type TracesShowCmd struct {
	ID string `arg:"" help:"Trace id."`
}

func (c *TracesShowCmd) Run(a *app) error {
	if a.traces == nil {
		return fmt.Errorf("trace store is disabled")
	}
	snap, err := a.traces.Load(a.ctx, c.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, strings.Join(eventlog.Lines(snap.Trace()), "\n"))
	if snap.Interrupted() {
		fmt.Fprintf(a.out, "\nException:\n  %s\n", snap.Error)
	}
	return nil
}

type SettingsCmd struct{}

func (SettingsCmd) Run(a *app) error {
	enc := yaml.NewEncoder(a.out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(a.cfg)
}

type app struct {
	ctx      context.Context
	cfg      Config
	out      io.Writer
	db       *sql.DB
	traces   *tracestore.Store
	provider *sdktrace.TracerProvider
	registry *process.Registry
	runner   *runner.Runner
}

func newApp(ctx context.Context, cfg Config, out, errOut io.Writer) (*app, error) {
	a := &app{ctx: ctx, cfg: cfg, out: out}

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.db = db
	if strings.Contains(cfg.Database.DSN, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	logger := eventlog.FromGlog(glog.NewLogger(
		glog.WithWriter(errOut),
		glog.WithLevel(levelOrDefault(cfg.Process.LogLevel)),
	))

	eventLogs, err := eventlog.FromSettings(cfg.Process, out)
	if err != nil {
		a.Close()
		return nil, err
	}
	listeners := process.Listeners{eventLogs}

	if cfg.TraceStore.Enabled {
		a.traces, err = tracestore.New(ctx, db, cfg.Database.Driver, tracestore.WithLogger(logger))
		if err != nil {
			a.Close()
			return nil, err
		}
		listeners = append(listeners, a.traces.Listener())
	}

	if cfg.Telemetry.Enabled {
		a.provider, err = telemetry.NewStdoutProvider(cfg.Telemetry.Service, errOut)
		if err != nil {
			a.Close()
			return nil, err
		}
		listeners = append(listeners, telemetry.NewSpanListener(a.provider))
	}

	a.runner = runner.New(
		runner.WithLogger(logger),
		runner.WithMaxRetries(cfg.Runner.Retries),
		runner.WithTimeout(cfg.Runner.Timeout),
		runner.WithRetryStrategy(runner.ExponentialBackoffStrategy{Base: cfg.Runner.Backoff, Factor: 2}),
	)

	repo, err := accounts.NewRepository(ctx, db, cfg.Database.Driver)
	if err != nil {
		a.Close()
		return nil, err
	}

	base := process.DefaultConfig()
	base.Logger = logger
	pcfg := cfg.Process.Apply(base)
	pcfg.Listener = listeners

	procs, err := accounts.New(repo, nil, process.WithConfig(pcfg))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.registry = process.NewRegistry().MustRegister(procs.OwnerCreation, procs.UserCreation, procs.TokenCreation)
	if err := a.registry.Initialize(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) call(ctx context.Context, def *process.Definition, attrs map[string]any) (process.Outcome, error) {
	return a.runner.Call(ctx, def, attrs)
}

func (a *app) report(name string, out process.Outcome) error {
	enc := yaml.NewEncoder(a.out)
	enc.SetIndent(2)
	defer enc.Close()

	kind, typ, value := out.Unpack()
	return enc.Encode(map[string]any{
		"process": name,
		"outcome": kind.String(),
		"type":    typ,
		"value":   value.Map(),
	})
}

func (a *app) Close() error {
	var err error
	if a.provider != nil {
		err = a.provider.Shutdown(context.Background())
	}
	if a.db != nil {
		if cerr := a.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func levelOrDefault(level string) string {
	if strings.TrimSpace(level) == "" {
		return "info"
	}
	return strings.ToLower(level)
}

func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	_ = godotenv.Load()

	configPath := os.Getenv(envPrefix + "CONFIG")
	if configPath == "" {
		configPath = "process.yaml"
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, out, errOut)
	if err != nil {
		return err
	}
	defer a.Close()

	options, err := a.registry.CLIOptions()
	if err != nil {
		return err
	}

	var cli CLI
	parser, err := kong.New(&cli, append(options,
		kong.Name("process-demo"),
		kong.Description("Runs the account processes and inspects their traces."),
		kong.Writers(out, errOut),
		kong.Bind(a, &process.CLIRun{Context: ctx, Call: a.call, Report: a.report}),
	)...)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
