// Package svcmgr owns the promoter's exclusive filesystem contract with
// the host service manager (spec §4.4, §6 "Service manager"): drop-in
// files under a fixed runtime directory, and CLI-driven unit lifecycle
// operations. Nothing here parses or cares about the service manager's
// own unit model beyond that wire contract.
package svcmgr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/drbd-reactor-go/reactor/internal/rerr"
)

// Prefix names every drop-in file this daemon writes. The daemon must
// never delete or overwrite a file that doesn't carry it (spec §9
// "must not delete files it did not create").
const Prefix = "drbd-reactor"

// CallTimeout bounds one service-manager CLI invocation before it is
// retried once (spec §5 "a hung service-manager call is retried once,
// then logged and failed upward").
const CallTimeout = 10 * time.Second

// Manager materializes override files under runtimeDir and drives unit
// lifecycle through the systemctl-style CLI. Concurrent promoters on the
// same host are kept out by the config package's snippet-directory flock
// (spec §5); Manager itself only serializes its own writes.
type Manager struct {
	runtimeDir string
	log        *zap.Logger

	mu sync.Mutex
}

// New returns a Manager rooted at runtimeDir (e.g. "/run/systemd/system").
func New(runtimeDir string, log *zap.Logger) *Manager {
	return &Manager{runtimeDir: runtimeDir, log: log}
}

func (m *Manager) overrideDir(unit string) string {
	return filepath.Join(m.runtimeDir, unit+".d")
}

func (m *Manager) overridePath(unit string) string {
	return filepath.Join(m.overrideDir(unit), Prefix+".conf")
}

// WriteOverride materializes the drop-in for unit with the given
// directive lines, writing via a temp file plus rename so a reader never
// observes a partial file. Byte-identical content on a second call
// produces a byte-identical file (spec §8 "Override idempotence").
func (m *Manager) WriteOverride(unit string, lines []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := m.overrideDir(unit)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rerr.Wrap(rerr.ServiceManagerFailed, fmt.Sprintf("create override directory for %s", unit), err)
	}

	content := strings.Join(lines, "\n") + "\n"
	path := m.overridePath(unit)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return rerr.Wrap(rerr.ServiceManagerFailed, fmt.Sprintf("write override for %s", unit), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return rerr.Wrap(rerr.ServiceManagerFailed, fmt.Sprintf("install override for %s", unit), err)
	}
	return nil
}

// OverridePath exposes the materialized path for unit, used by tests and
// by diagnostics logging.
func (m *Manager) OverridePath(unit string) string { return m.overridePath(unit) }

// RemoveOverride deletes unit's override file, refusing to touch
// anything whose basename does not match Prefix (spec §9 "identify its
// files by a fixed filename prefix and refuse to act on anything else").
func (m *Manager) RemoveOverride(unit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.overridePath(unit)
	if filepath.Base(path) != Prefix+".conf" {
		return fmt.Errorf("svcmgr: refusing to remove file not owned by this daemon: %s", path)
	}
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return rerr.Wrap(rerr.ServiceManagerFailed, fmt.Sprintf("remove override for %s", unit), err)
	}
	return nil
}

// run invokes the systemctl CLI with args, retrying once after
// CallTimeout before surfacing a ServiceManagerFailed error.
func (m *Manager) run(ctx context.Context, args ...string) error {
	attempt := func() error {
		cctx, cancel := context.WithTimeout(ctx, CallTimeout)
		defer cancel()
		cmd := exec.CommandContext(cctx, "systemctl", args...)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return rerr.Wrap(rerr.ServiceManagerFailed,
				fmt.Sprintf("systemctl %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out))), err)
		}
		return nil
	}

	if err := attempt(); err != nil {
		m.log.Warn("svcmgr: command failed, retrying once", zap.Strings("args", args), zap.Error(err))
		if err2 := attempt(); err2 != nil {
			return err2
		}
	}
	return nil
}

func (m *Manager) DaemonReload(ctx context.Context) error { return m.run(ctx, "daemon-reload") }
func (m *Manager) StartUnit(ctx context.Context, unit string) error {
	return m.run(ctx, "start", unit)
}
func (m *Manager) StopUnit(ctx context.Context, unit string) error {
	return m.run(ctx, "stop", unit)
}
func (m *Manager) FreezeUnit(ctx context.Context, unit string) error {
	return m.run(ctx, "freeze", unit)
}
func (m *Manager) ThawUnit(ctx context.Context, unit string) error {
	return m.run(ctx, "thaw", unit)
}
func (m *Manager) MaskUnit(ctx context.Context, unit string) error {
	return m.run(ctx, "mask", unit)
}
func (m *Manager) UnmaskUnit(ctx context.Context, unit string) error {
	return m.run(ctx, "unmask", unit)
}
