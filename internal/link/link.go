// Package link prepares the local radio for incoming connections: scan-mode
// discoverability and the serial-port service record peers use to find the
// channel. Every operation is best-effort; the serving loop works without it,
// peers just cannot discover the channel on their own.
package link

import "context"

// Configurator is the capability interface over the radio configuration
// stack. Implementations report failure as false, never as an error the
// caller must handle.
type Configurator interface {
	// MakeDiscoverable powers the adapter and enables page/inquiry scan so
	// peers can find and pair with the device.
	MakeDiscoverable(ctx context.Context) bool
	// RegisterService advertises a serial-port service record on the given
	// RFCOMM channel.
	RegisterService(ctx context.Context, channel int) bool
	// UnregisterService removes the service record during shutdown.
	UnregisterService(ctx context.Context) bool
}

// Noop is a Configurator that does nothing and reports success. Used in
// tests and on hosts where the radio is managed externally.
type Noop struct{}

func (Noop) MakeDiscoverable(context.Context) bool     { return true }
func (Noop) RegisterService(context.Context, int) bool { return true }
func (Noop) UnregisterService(context.Context) bool    { return true }
