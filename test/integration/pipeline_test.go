// Package integration exercises the daemon's components wired together
// the way main.go wires them: event lines in, a promoter resource
// reacting to the resulting PluginUpdate stream out. Unlike the
// package-level unit tests, nothing here stubs the pieces in between.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/drbd-reactor-go/reactor/internal/config"
	"github.com/drbd-reactor-go/reactor/internal/ingest"
	"github.com/drbd-reactor-go/reactor/internal/model"
	"github.com/drbd-reactor-go/reactor/internal/observability"
	"github.com/drbd-reactor-go/reactor/internal/pluginhost"
	"github.com/drbd-reactor-go/reactor/internal/promoter"
)

// TestEventLineToPromotion feeds raw event-stream lines through Parse and
// Apply, publishes the resulting PluginUpdate records on a real
// pluginhost.Broadcaster, and asserts a promoter resource subscribed
// through the host ends up running its shell-runner start command
// once may-promote flips true — the full path main.go
// wires at startup (model → diff → broadcast → plugin), minus the
// external drbdsetup process and a real service manager.
func TestEventLineToPromotion(t *testing.T) {
	zapLog := zap.NewNop()
	m := model.New()
	host := pluginhost.NewHost(zapLog, observability.NewMetrics())

	marker := filepath.Join(t.TempDir(), "started")
	resourceCfg := config.PromoterResourceConfig{
		Start:                    []string{"touch " + marker},
		Runner:                   "shell",
		DependenciesAs:           "requires",
		TargetAs:                 "requires",
		SleepBeforePromoteFactor: 1.0,
	}

	r := promoter.NewResource("promoter-0", "foo", resourceCfg, nil, zapLog, observability.NewMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host.Reconcile(ctx, []pluginhost.Instance{r})
	defer host.Shutdown()

	lines := []string{
		"exists resource name:foo role:Secondary suspended:no write-ordering:flush force-io-failures:no may-promote:no promotion-score:0",
		"exists device name:foo volume:0 minor:7 disk:UpToDate",
		"change resource name:foo role:Secondary suspended:no write-ordering:flush force-io-failures:no may-promote:yes promotion-score:0",
	}

	for _, line := range lines {
		pl, err := ingest.Parse(line)
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		updates, err := ingest.Apply(m, pl)
		if err != nil {
			t.Fatalf("apply %q: %v", line, err)
		}
		for _, u := range updates {
			host.Broadcaster().Publish(u)
		}
	}

	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(marker); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("marker file %s was never created; promoter never ran its start command", marker)
}
