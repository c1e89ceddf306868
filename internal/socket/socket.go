// Package socket manages the loomd control socket. The daemon claims a
// Unix domain socket with Listen; the CLI reaches it through Dialer, which
// waits briefly for a daemon that is still binding its socket.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	// _daemonName is the executable name Dialer and stale-socket cleanup
	// look for when deciding whether a loomd is alive.
	_daemonName = "loomd"

	// _dialWindow bounds how long Dialer keeps retrying a daemon that is
	// running but has not bound its socket yet.
	_dialWindow   = 5 * time.Second
	_dialInterval = 250 * time.Millisecond

	// _socketMode is world-connectable: any local user may ask loomd to
	// resolve, same as the system resolver it fronts.
	_socketMode = os.FileMode(0o666)
)

var (
	// ErrAddressInUse is returned when the socket is held by a live daemon.
	ErrAddressInUse = errors.New("address already in use")
	// ErrNotRunning is returned when no daemon process exists to dial.
	ErrNotRunning = errors.New("daemon not running")
)

// Listen claims path for the daemon: it creates the parent directory,
// clears a socket file left behind by a crashed loomd, binds, and widens
// the socket mode so any local user can connect.
func Listen(path string) (net.Listener, error) {
	return ListenWith(path, &DefaultProcessChecker{})
}

// ListenWith is Listen with an injectable process checker.
func ListenWith(path string, check ProcessChecker) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating socket directory: %w", err)
	}
	if err := clearStale(path, check); err != nil {
		return nil, err
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("creating socket listener: %w", err)
	}
	if err := os.Chmod(path, _socketMode); err != nil {
		ln.Close()
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}
	return ln, nil
}

// clearStale removes a socket file nobody answers on. A live peer, or
// another loomd process that may be mid-startup, keeps the file in place.
func clearStale(path string, check ProcessChecker) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking socket: %w", err)
	}

	if conn, err := net.Dial("unix", path); err == nil {
		conn.Close()
		return ErrAddressInUse
	}
	if check.IsRunning(_daemonName) {
		return ErrAddressInUse
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket: %w", err)
	}
	return nil
}

// Dialer returns a DialContext function for an http.Transport pointed at
// the daemon socket. Dial failures are retried while a loomd process
// exists, so commands issued right after the daemon starts still land;
// with no daemon at all it fails immediately with ErrNotRunning.
func Dialer(path string, check ProcessChecker) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, _, _ string) (net.Conn, error) {
		return dialRetry(ctx, path, check)
	}
}

func dialRetry(ctx context.Context, path string, check ProcessChecker) (net.Conn, error) {
	var d net.Dialer
	deadline := time.Now().Add(_dialWindow)

	for {
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
		if !check.IsRunning(_daemonName) {
			return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: gave up after %s: %v", ErrNotRunning, _dialWindow, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(_dialInterval):
		}
	}
}
