package promoter

import (
	"context"
	"os/exec"

	"go.uber.org/zap"
)

// runEscalation executes the configured on-drbd-demote-failure action
// (spec §4.4, §6). The documented closed set is none/reboot/
// reboot-force/reboot-immediate/poweroff/poweroff-force/
// poweroff-immediate; any other non-empty value is treated as a literal
// shell command (spec's "or a user shell string").
func runEscalation(ctx context.Context, log *zap.Logger, resourceName, action string) {
	args := escalationArgs(action)
	if args == nil {
		if action != "" && action != "none" {
			runShellEscalation(ctx, log, resourceName, action)
		}
		return
	}

	log.Warn("promoter: escalating after demotion failure",
		zap.String("resource", resourceName), zap.String("action", action))
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if err := cmd.Run(); err != nil {
		log.Error("promoter: escalation command failed",
			zap.String("resource", resourceName), zap.String("action", action), zap.Error(err))
	}
}

func escalationArgs(action string) []string {
	switch action {
	case "reboot":
		return []string{"systemctl", "reboot"}
	case "reboot-force":
		return []string{"systemctl", "reboot", "--force"}
	case "reboot-immediate":
		return []string{"systemctl", "reboot", "--force", "--force"}
	case "poweroff":
		return []string{"systemctl", "poweroff"}
	case "poweroff-force":
		return []string{"systemctl", "poweroff", "--force"}
	case "poweroff-immediate":
		return []string{"systemctl", "poweroff", "--force", "--force"}
	default:
		return nil
	}
}

func runShellEscalation(ctx context.Context, log *zap.Logger, resourceName, action string) {
	log.Warn("promoter: escalating after demotion failure via shell command",
		zap.String("resource", resourceName), zap.String("command", action))
	cmd := exec.CommandContext(ctx, "sh", "-c", action)
	if err := cmd.Run(); err != nil {
		log.Error("promoter: escalation shell command failed",
			zap.String("resource", resourceName), zap.Error(err))
	}
}
