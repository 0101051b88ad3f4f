package server

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// ListenRFCOMM binds a connection-oriented bluetooth endpoint on the given
// RFCOMM channel, listening on any local adapter with a backlog of one.
// Requires CAP_NET_BIND_SERVICE on bluetooth sockets, which in practice
// means root.
func ListenRFCOMM(channel int) (*RFCOMMListener, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, fmt.Errorf("create rfcomm socket: %w", err)
	}

	sa := &unix.SockaddrRFCOMM{Channel: uint8(channel)} // zero Addr = BDADDR_ANY
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind rfcomm channel %d: %w", channel, err)
	}

	// Backlog of one: a second caller is refused while a session is live.
	if err := unix.Listen(fd, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen on rfcomm channel %d: %w", channel, err)
	}

	return &RFCOMMListener{fd: fd}, nil
}

// RFCOMMListener is the bluetooth implementation of Listener.
type RFCOMMListener struct {
	fd        int
	closeOnce sync.Once
}

// Accept blocks until a peer connects. Closing the listener makes a pending
// Accept return an error.
func (l *RFCOMMListener) Accept() (Conn, error) {
	nfd, sa, err := unix.Accept(l.fd)
	if err != nil {
		return nil, fmt.Errorf("accept rfcomm connection: %w", err)
	}

	peer := "unknown"
	if rsa, ok := sa.(*unix.SockaddrRFCOMM); ok {
		peer = formatBDAddr(rsa.Addr)
	}

	return &rfcommConn{fd: nfd, peer: peer}, nil
}

func (l *RFCOMMListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = unix.Close(l.fd)
	})
	return err
}

type rfcommConn struct {
	fd        int
	peer      string
	closeOnce sync.Once
}

func (c *rfcommConn) Write(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if err != nil {
		return 0, fmt.Errorf("write to %s: %w", c.peer, err)
	}
	if n < len(p) {
		return n, fmt.Errorf("write to %s: short write (%d of %d bytes)", c.peer, n, len(p))
	}
	return n, nil
}

// SetWriteDeadline maps the deadline onto SO_SNDTIMEO. The zero time clears
// the timeout.
func (c *rfcommConn) SetWriteDeadline(t time.Time) error {
	var tv unix.Timeval
	if !t.IsZero() {
		d := time.Until(t)
		if d <= 0 {
			d = time.Nanosecond
		}
		tv = unix.NsecToTimeval(d.Nanoseconds())
	}
	if err := unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv); err != nil {
		return fmt.Errorf("set send timeout: %w", err)
	}
	return nil
}

func (c *rfcommConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = unix.Close(c.fd)
	})
	return err
}

func (c *rfcommConn) RemoteAddr() string { return c.peer }

// formatBDAddr renders a sockaddr bdaddr, which is stored little-endian, in
// the conventional display order.
func formatBDAddr(addr [6]byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		addr[5], addr[4], addr[3], addr[2], addr[1], addr[0])
}
