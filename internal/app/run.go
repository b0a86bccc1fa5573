package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/anatolysokolov293-max/stock-pg/internal/config"
)

// runnable is anything with a blocking Run(ctx) loop, satisfied by every
// daemon and by the metrics HTTP server.
type runnable interface {
	Run(ctx context.Context) error
}

// App is the root application object: it owns the configuration, logger,
// and the dependency bundle, and runs whichever daemon(s) cfg.Daemon
// selects until ctx is cancelled.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   *Dependencies
}

// New constructs an App. Call Wire first to build deps.
func New(cfg *config.Config, logger *slog.Logger, deps *Dependencies) *App {
	return &App{cfg: cfg, logger: logger.With(slog.String("component", "app")), deps: deps}
}

// Run starts the configured daemon (or every daemon, for "all") and blocks
// until ctx is cancelled or one of them returns an error, matching the
// teacher's errgroup-supervised mode runners.
func (a *App) Run(ctx context.Context) error {
	daemon := strings.ToLower(a.cfg.Daemon)

	a.logger.InfoContext(ctx, "starting application", slog.String("daemon", daemon))

	runners, err := a.runnersFor(daemon)
	if err != nil {
		return err
	}
	if a.deps.MetricsServer != nil {
		runners = append(runners, a.deps.MetricsServer)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		r := r
		g.Go(func() error { return r.Run(gctx) })
	}
	return g.Wait()
}

func (a *App) runnersFor(daemon string) ([]runnable, error) {
	switch daemon {
	case "aggregator":
		return []runnable{buildAggregator(a.deps, a.logger, a.cfg)}, nil
	case "strategyrunner":
		return []runnable{buildStrategyRunner(a.deps, a.logger, a.cfg)}, nil
	case "execengine":
		return []runnable{buildRiskEngine(a.deps, a.logger, a.cfg)}, nil
	case "broker":
		return []runnable{buildBroker(a.deps, a.logger, a.cfg)}, nil
	case "healthmonitor":
		return []runnable{buildHealthMonitor(a.deps, a.logger, a.cfg)}, nil
	case "all":
		runners := []runnable{
			buildAggregator(a.deps, a.logger, a.cfg),
			buildStrategyRunner(a.deps, a.logger, a.cfg),
			buildRiskEngine(a.deps, a.logger, a.cfg),
			buildBroker(a.deps, a.logger, a.cfg),
			buildHealthMonitor(a.deps, a.logger, a.cfg),
		}
		if arch := buildArchiver(a.deps, a.logger, a.cfg); arch != nil {
			runners = append(runners, arch)
		}
		return runners, nil
	default:
		return nil, fmt.Errorf("app: unsupported daemon %q", daemon)
	}
}
