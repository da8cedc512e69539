package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	jobsystem "github.com/Swind/go-job-system"
	"github.com/Swind/go-job-system/config"
	"github.com/Swind/go-job-system/core"
	"github.com/Swind/go-job-system/internal/stress"
	promexporter "github.com/Swind/go-job-system/observability/prometheus"
	"github.com/Swind/go-job-system/observability/zaplog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML config file (JOBSYSTEM_* environment variables override it)",
		},
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "fiber or thread",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "worker count (0 = one per CPU)",
		},
		&cli.IntFlag{
			Name:  "max-fibers",
			Usage: "fiber pool limit",
		},
		&cli.StringFlag{
			Name:  "exhaustion-policy",
			Usage: "fatal or wait",
		},
	}
}

// RunCommand runs the stress scenarios.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run stress scenarios",

		Flags: append(configFlags(),
			&cli.StringSliceFlag{
				Name:    "scenario",
				Aliases: []string{"s"},
				Value:   cli.NewStringSlice("all"),
				Usage:   "flat, tree, onesided or all",
			},
			&cli.IntFlag{
				Name:  "jobs",
				Value: 1000,
				Usage: "batch size of the flat and one-sided scenarios",
			},
			&cli.IntFlag{
				Name:  "depth",
				Value: 10,
				Usage: "depth of the tree scenario",
			},
			&cli.DurationFlag{
				Name:  "spin",
				Usage: "busy time per job",
			},
			&cli.IntFlag{
				Name:  "rounds",
				Value: 1,
				Usage: "how many times to repeat the scenarios",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve Prometheus metrics on this address while running, e.g. :9090",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log at debug level",
			},
		),

		Action: RunAction,
	}
}

// ConfigCommand prints the resolved configuration.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:   "config",
		Usage:  "Print the configuration a run would use",
		Flags:  configFlags(),
		Action: ConfigAction,
	}
}

// loadConfig merges defaults, the config file, the environment and the
// flags that were set, in increasing precedence.
func loadConfig(c *cli.Context) (core.Config, error) {
	v := config.New()
	if path := c.String("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return core.Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	overrideFromFlags(c, v)
	return config.FromViper(v)
}

func overrideFromFlags(c *cli.Context, v *viper.Viper) {
	if c.IsSet("backend") {
		v.Set("backend", c.String("backend"))
	}
	if c.IsSet("workers") {
		v.Set("workers", c.Int("workers"))
	}
	if c.IsSet("max-fibers") {
		v.Set("max_fibers", c.Int("max-fibers"))
	}
	if c.IsSet("exhaustion-policy") {
		v.Set("exhaustion_policy", c.String("exhaustion-policy"))
	}
}

func newZapLogger(debug bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

func scenarioList(names []string) ([]string, error) {
	var out []string
	for _, name := range names {
		if name == "all" {
			out = append(out, stress.Scenarios...)
			continue
		}
		if !slices.Contains(stress.Scenarios, name) {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		out = append(out, name)
	}
	return out, nil
}

// RunAction builds the job system and runs the selected scenarios.
func RunAction(c *cli.Context) error {
	// 1. Get flags
	scenarios, err := scenarioList(c.StringSlice("scenario"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	opts := stress.Options{
		Jobs:  c.Int("jobs"),
		Depth: c.Int("depth"),
		Spin:  c.Duration("spin"),
	}

	// 2. Validate (format only)
	if opts.Jobs < 1 || opts.Depth < 1 || opts.Depth > 24 || c.Int("rounds") < 1 {
		return cli.Exit("jobs and rounds must be positive, depth must be within 1..24", 2)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	zl, err := newZapLogger(c.Bool("debug"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to build logger: %v", err), 1)
	}
	defer func() { _ = zl.Sync() }()
	logger := zaplog.New(zl).Named("jobstress")

	// 3. Wire the job system
	reg := prometheus.NewRegistry()
	exporter, err := promexporter.NewMetricsExporter("", reg, promexporter.ExporterOptions{})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to register metrics: %v", err), 1)
	}
	poller, err := promexporter.NewSnapshotPoller(reg, 250*time.Millisecond)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to register metrics: %v", err), 1)
	}

	cfg.Name = "jobstress"
	cfg.Logger = logger
	cfg.Metrics = exporter
	cfg.StatsOutput = os.Stdout
	js, err := jobsystem.New(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to start job system: %v", err), 1)
	}
	poller.AddSystem(cfg.Name, js)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	poller.Start(ctx)
	defer poller.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if addr := c.String("metrics-addr"); addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		logger.Info("serving metrics", core.F("addr", addr))
	}

	// 4. Run scenarios
	failed := 0
	g.Go(func() error {
		defer stop()
		defer js.Shutdown()
		for round := 1; round <= c.Int("rounds"); round++ {
			for _, name := range scenarios {
				if ctx.Err() != nil {
					return nil
				}
				res, err := stress.Run(ctx, js, name, opts)
				if err != nil {
					return err
				}
				if !res.OK() {
					failed++
				}
				fmt.Fprintf(c.App.Writer, "round %d %s\n", round, res)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	// 5. Format output
	st := js.Stats()
	fmt.Fprintf(c.App.Writer, "✓ stolen=%d panicked=%d fibers(max)=%d\n", st.Stolen, st.Panicked, cfg.MaxFibers)
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d scenario run(s) lost jobs", failed), 1)
	}
	return nil
}

// ConfigAction prints the resolved configuration.
func ConfigAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	fmt.Fprintf(c.App.Writer,
		"name=%s backend=%s workers=%d stack_size=%d max_fibers=%d exhaustion_policy=%s history_size=%d idle_backoff_max=%s\n",
		cfg.Name, cfg.Backend, cfg.Workers, cfg.StackSize, cfg.MaxFibers, cfg.ExhaustionPolicy, cfg.HistorySize, cfg.IdleBackoffMax)
	return nil
}
