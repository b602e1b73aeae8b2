// Package sdnotify implements the notify-socket protocol (spec §6
// "Startup notification": "when launched under a notify-style service
// manager, the daemon sends a ready notification ... and periodically
// extends the service-manager watchdog"). It speaks the wire format
// directly over a Unix datagram socket; there is no library dependency
// for this because the protocol is three lines of envelope over a
// socket address read from the environment.
package sdnotify

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// Notifier sends state-change datagrams to the service manager's notify
// socket. A nil *Notifier (returned when NOTIFY_SOCKET is unset) makes
// every method a safe no-op, so callers never need to branch on whether
// they're running under a notify-aware supervisor.
type Notifier struct {
	addr *net.UnixAddr
}

// New reads NOTIFY_SOCKET from the environment and returns a Notifier
// bound to it, or (nil, false) if the daemon was not launched under a
// notify-style supervisor.
func New() (*Notifier, bool) {
	path := os.Getenv("NOTIFY_SOCKET")
	if path == "" {
		return nil, false
	}
	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	return &Notifier{addr: addr}, true
}

func (n *Notifier) send(state string) error {
	if n == nil {
		return nil
	}
	conn, err := net.DialUnix("unixgram", nil, n.addr)
	if err != nil {
		return fmt.Errorf("sdnotify: dial %s: %w", n.addr.Name, err)
	}
	defer conn.Close()
	_, err = conn.Write([]byte(state))
	return err
}

// Ready signals READY=1 once plugins are up (spec §6).
func (n *Notifier) Ready() error { return n.send("READY=1\n") }

// Stopping signals STOPPING=1 during graceful shutdown.
func (n *Notifier) Stopping() error { return n.send("STOPPING=1\n") }

// Reloading signals RELOADING=1 for the duration of a config reload.
func (n *Notifier) Reloading() error { return n.send("RELOADING=1\n") }

// Watchdog signals WATCHDOG=1, extending the supervisor's watchdog
// deadline.
func (n *Notifier) Watchdog() error { return n.send("WATCHDOG=1\n") }

// Status sends a free-form STATUS= line for `systemctl status` display.
func (n *Notifier) Status(msg string) error { return n.send("STATUS=" + msg + "\n") }

// WatchdogInterval reads WATCHDOG_USEC from the environment and returns
// the interval at which Watchdog should be called to stay within the
// supervisor's deadline (half the configured timeout, the conventional
// safety margin), or (0, false) if no watchdog is configured.
func WatchdogInterval() (time.Duration, bool) {
	raw := os.Getenv("WATCHDOG_USEC")
	if raw == "" {
		return 0, false
	}
	usec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || usec <= 0 {
		return 0, false
	}
	return time.Duration(usec) * time.Microsecond / 2, true
}

// RunWatchdog sends Watchdog on interval until done is closed.
func (n *Notifier) RunWatchdog(interval time.Duration, done <-chan struct{}) {
	if n == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = n.Watchdog()
		}
	}
}
