package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/edlund/gpslinkd/internal/config"
	"github.com/edlund/gpslinkd/internal/daemon"
	"github.com/edlund/gpslinkd/internal/link"
	"github.com/edlund/gpslinkd/internal/logging"
	"github.com/edlund/gpslinkd/internal/server"
	"github.com/edlund/gpslinkd/internal/telemetry"
)

// restartDelay is the pause between stop and start on restart, giving the
// old process time to release the RFCOMM channel.
const restartDelay = 2 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Bluetooth sockets and /var/run both need root; refuse before
	// touching any state.
	if os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "Error: gpslinkd must be run as root (use sudo)")
		os.Exit(1)
	}

	switch strings.ToLower(os.Args[1]) {
	case "start":
		cmdStart(loadConfig())

	case "stop":
		cmdStop(loadConfig())

	case "status":
		cmdStatus(loadConfig())

	case "restart":
		cfg := loadConfig()
		cmdStop(cfg)
		time.Sleep(restartDelay)
		cmdStart(cfg)

	case "run":
		// Hidden mode: the detached daemon process itself.
		cmdRun(loadConfig())

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func cmdStart(cfg *config.Config) {
	if status, pid, _ := daemon.Probe(cfg.PidFile); status == daemon.StatusRunning {
		fmt.Fprintf(os.Stderr, "gpslinkd is already running (PID %d)\n", pid)
		os.Exit(1)
	}

	fmt.Println("Starting gpslinkd daemon...")
	pid, err := daemon.StartDetached()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("gpslinkd started (PID %d), logging to %s\n", pid, cfg.LogFile)
}

func cmdStop(cfg *config.Config) {
	outcome, pid, err := daemon.Stop(cfg.PidFile, cfg.StopGracePeriod)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch outcome {
	case daemon.StopClean:
		fmt.Printf("Stopped gpslinkd (PID %d)\n", pid)
	case daemon.StopNotRunning:
		fmt.Println("gpslinkd is not running")
	case daemon.StopKilled:
		fmt.Printf("gpslinkd (PID %d) did not stop within %s; killed\n", pid, cfg.StopGracePeriod)
	}
}

func cmdStatus(cfg *config.Config) {
	status, pid, err := daemon.Probe(cfg.PidFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch status {
	case daemon.StatusRunning:
		fmt.Printf("gpslinkd is running (PID %d)\n", pid)
		fmt.Printf("  log file: %s\n", cfg.LogFile)
	case daemon.StatusNotRunning:
		fmt.Println("gpslinkd is not running")
	case daemon.StatusStale:
		fmt.Printf("gpslinkd pid file was stale (PID %d is dead); removed\n", pid)
	}
}

func cmdRun(cfg *config.Config) {
	logger, closer, err := logging.NewLogger(cfg)
	if err != nil {
		// stderr is already /dev/null here, but exit non-zero regardless.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	source := telemetry.NewGpsdSource(logger, cfg.GpsdAddress)
	defer source.Close()

	configurator := link.NewBluez(logger, cfg.AdapterName)

	d := daemon.New(logger, cfg, configurator, source, func(channel int) (server.Listener, error) {
		return server.ListenRFCOMM(channel)
	})

	if err := d.Run(context.Background()); err != nil {
		logger.Error().Err(err).Msg("daemon failed")
		closer.Close()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage:
  sudo gpslinkd start    - Start the daemon
  sudo gpslinkd stop     - Stop the daemon
  sudo gpslinkd status   - Check daemon status
  sudo gpslinkd restart  - Restart the daemon`)
}
