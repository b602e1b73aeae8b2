package svcmgr

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/drbd-reactor-go/reactor/internal/rerr"
)

// ShellRunner executes a resource's start/stop lists as literal shell
// commands with no service-manager interaction (spec §4.4 "Shell runner
// alternative").
type ShellRunner struct {
	StartCommands []string
	StopCommands  []string
}

// Start runs every command in r.StartCommands sequentially, stopping at
// the first failure.
func (r ShellRunner) Start(ctx context.Context) error {
	for _, cmd := range r.StartCommands {
		if err := runShell(ctx, cmd); err != nil {
			return rerr.Wrap(rerr.ServiceManagerFailed, fmt.Sprintf("shell start command %q", cmd), err)
		}
	}
	return nil
}

// Stop runs r.StopCommands if non-empty, else r.StartCommands reversed
// (spec §4.4 "on stop it runs the stop list (or start reversed)").
func (r ShellRunner) Stop(ctx context.Context) error {
	cmds := r.StopCommands
	if len(cmds) == 0 {
		cmds = make([]string, len(r.StartCommands))
		for i, c := range r.StartCommands {
			cmds[len(r.StartCommands)-1-i] = c
		}
	}
	var firstErr error
	for _, cmd := range cmds {
		if err := runShell(ctx, cmd); err != nil && firstErr == nil {
			firstErr = rerr.Wrap(rerr.ServiceManagerFailed, fmt.Sprintf("shell stop command %q", cmd), err)
		}
	}
	return firstErr
}

func runShell(ctx context.Context, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}
