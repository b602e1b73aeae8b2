package ingest

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/drbd-reactor-go/reactor/internal/diff"
)

// RunStatisticsPoll ticks every ig.cfg.StatisticsPollInterval and invokes
// the one-shot statistics utility, merging its output into the model as
// synthetic change events identically to the live stream (spec §4.1
// "Statistics refresh"). Blocks until ctx is canceled.
func (ig *Ingester) RunStatisticsPoll(ctx context.Context, onUpdates func([]diff.PluginUpdate)) {
	if len(ig.cfg.StatisticsCommand) == 0 {
		return
	}

	ticker := time.NewTicker(ig.cfg.StatisticsPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ig.pollOnce(ctx, onUpdates)
		}
	}
}

func (ig *Ingester) pollOnce(ctx context.Context, onUpdates func([]diff.PluginUpdate)) {
	cmd := exec.CommandContext(ctx, ig.cfg.StatisticsCommand[0], ig.cfg.StatisticsCommand[1:]...)
	out, err := cmd.Output()
	if err != nil {
		ig.log.Warn("ingest: statistics poll invocation failed", zap.Error(err))
		return
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		pl, perr := Parse(line)
		if perr != nil {
			ig.logMalformedOnce(line, perr)
			continue
		}
		updates, aerr := Apply(ig.model, pl)
		if aerr != nil {
			ig.logMalformedOnce(line, aerr)
			continue
		}
		if len(updates) > 0 {
			onUpdates(updates)
		}
	}
}
