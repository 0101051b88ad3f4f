package link

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// bluetoothctlScript keeps the adapter powered, discoverable, and pairable
// across bluetoothd restarts, complementing the raw hciconfig scan-mode flip.
const bluetoothctlScript = "power on\ndiscoverable on\npairable on\nexit\n"

// Bluez configures the radio through the stock bluez command line tools
// (hciconfig, bluetoothctl, sdptool). It requires root, like the rest of
// the daemon.
type Bluez struct {
	logger  zerolog.Logger
	adapter string
}

// NewBluez creates a bluez-backed configurator for the named adapter
// (e.g. "hci0").
func NewBluez(logger zerolog.Logger, adapter string) *Bluez {
	return &Bluez{
		logger:  logger.With().Str("component", "bluez").Logger(),
		adapter: adapter,
	}
}

// MakeDiscoverable powers the adapter and enables page and inquiry scan.
// Only the scan-mode change is decisive; the power-up and bluetoothctl
// steps are opportunistic.
func (b *Bluez) MakeDiscoverable(ctx context.Context) bool {
	// The adapter may already be up. Give it a moment to settle if not.
	_ = b.run(ctx, "hciconfig", b.adapter, "up")
	time.Sleep(time.Second)

	if err := b.run(ctx, "hciconfig", b.adapter, "piscan"); err != nil {
		b.logger.Warn().Err(err).Str("adapter", b.adapter).Msg("failed to enable scan mode")
		return false
	}

	btctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(btctx, "bluetoothctl")
	cmd.Stdin = bytes.NewBufferString(bluetoothctlScript)
	_ = cmd.Run()

	b.logger.Info().Str("adapter", b.adapter).Msg("device is discoverable")
	return true
}

// RegisterService advertises a serial-port (SP) record on the channel. Any
// previous record is removed first so repeated starts do not stack entries.
func (b *Bluez) RegisterService(ctx context.Context, channel int) bool {
	_ = b.run(ctx, "sdptool", "del", "SP")

	if err := b.run(ctx, "sdptool", "add", fmt.Sprintf("--channel=%d", channel), "SP"); err != nil {
		b.logger.Warn().Err(err).Int("channel", channel).Msg("failed to register service record")
		return false
	}

	b.logger.Info().Int("channel", channel).Msg("serial-port service record registered")
	return true
}

// UnregisterService removes the serial-port record.
func (b *Bluez) UnregisterService(ctx context.Context) bool {
	if err := b.run(ctx, "sdptool", "del", "SP"); err != nil {
		b.logger.Warn().Err(err).Msg("failed to remove service record")
		return false
	}
	return true
}

// run executes a radio configuration command, folding its output into the
// returned error.
func (b *Bluez) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %v: %s: %w", name, args, string(output), err)
	}
	return nil
}
