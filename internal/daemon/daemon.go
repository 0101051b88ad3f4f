// Package daemon owns the process lifecycle: detachment, the PID file,
// signal-driven shutdown, and startup ordering (configure link, open server,
// serve). The only durable state it leaves behind is the PID file, and only
// while the daemon is alive.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edlund/gpslinkd/internal/config"
	"github.com/edlund/gpslinkd/internal/link"
	"github.com/edlund/gpslinkd/internal/metrics"
	"github.com/edlund/gpslinkd/internal/server"
	"github.com/edlund/gpslinkd/internal/telemetry"
)

// State is the daemon lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting down"
	default:
		return "unknown"
	}
}

// Daemon wires the adapters into the serving loop and runs it for the life
// of the process.
type Daemon struct {
	logger zerolog.Logger
	// base is the untagged logger handed to sub-components so each can
	// attach its own component field.
	base        zerolog.Logger
	cfg         *config.Config
	link        link.Configurator
	source      telemetry.Source
	newListener func(channel int) (server.Listener, error)

	state atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a daemon from its collaborators. newListener opens the
// listening endpoint; in production that is server.ListenRFCOMM.
func New(
	logger zerolog.Logger,
	cfg *config.Config,
	lc link.Configurator,
	src telemetry.Source,
	newListener func(channel int) (server.Listener, error),
) *Daemon {
	return &Daemon{
		logger:      logger.With().Str("component", "daemon").Logger(),
		base:        logger,
		cfg:         cfg,
		link:        lc,
		source:      src,
		newListener: newListener,
	}
}

// State returns the current lifecycle state.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

// Shutdown requests termination of a running daemon. Idempotent: calling it
// on an already stopping or stopped daemon does nothing.
func (d *Daemon) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

// Run executes the daemon until terminated by signal, Shutdown, or context
// cancellation. Startup order: PID file, signal handling, link
// configuration, listening endpoint, service record, serve loop. Teardown
// reverses it and runs entirely on this goroutine; the signal handler only
// cancels.
func (d *Daemon) Run(ctx context.Context) error {
	d.state.Store(int32(StateStarting))
	defer d.state.Store(int32(StateStopped))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			d.logger.Info().Str("signal", sig.String()).Msg("received termination signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := WritePidFile(d.cfg.PidFile, os.Getpid()); err != nil {
		d.logger.Error().Err(err).Msg("failed to write pid file")
		return err
	}
	defer func() {
		if err := RemovePidFile(d.cfg.PidFile); err != nil {
			d.logger.Warn().Err(err).Msg("failed to remove pid file")
		}
		d.logger.Info().Msg("daemon stopped")
	}()

	// Discoverability and the service record are amenities: peers that
	// already know the channel can connect without them.
	if !d.link.MakeDiscoverable(ctx) {
		d.logger.Warn().Msg("radio not discoverable, continuing anyway")
	}

	ln, err := d.newListener(d.cfg.Channel)
	if err != nil {
		d.logger.Error().Err(err).Int("channel", d.cfg.Channel).Msg("failed to open server")
		return fmt.Errorf("open server: %w", err)
	}
	defer ln.Close()

	if !d.link.RegisterService(ctx, d.cfg.Channel) {
		d.logger.Warn().Int("channel", d.cfg.Channel).Msg("service record not registered, peers may not discover the channel")
	}
	defer func() {
		uctx, ucancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer ucancel()
		if !d.link.UnregisterService(uctx) {
			d.logger.Warn().Msg("service record teardown failed")
		}
	}()

	reg := prometheus.NewRegistry()
	m := metrics.NewSet(reg)
	srv := server.New(d.base, server.Config{
		SendInterval:     d.cfg.SendInterval,
		AcceptRetryDelay: d.cfg.AcceptRetryDelay,
		WriteTimeout:     d.cfg.WriteTimeout,
	}, ln, d.source, m)

	g, gctx := errgroup.WithContext(ctx)

	if d.cfg.MetricsListenAddr != "" {
		ms := metrics.NewServer(d.cfg.MetricsListenAddr, reg)
		g.Go(func() error {
			// Metrics are best-effort: a bind failure must not take the
			// serving loop down.
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.logger.Warn().Err(err).Str("addr", d.cfg.MetricsListenAddr).Msg("metrics server unavailable")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			_ = ms.Shutdown(sctx)
			return nil
		})
	}

	d.state.Store(int32(StateRunning))
	d.logger.Info().
		Int("channel", d.cfg.Channel).
		Int("pid", os.Getpid()).
		Msg("daemon started")

	g.Go(func() error { return srv.Run(gctx) })

	err = g.Wait()
	d.state.Store(int32(StateShuttingDown))
	return err
}
