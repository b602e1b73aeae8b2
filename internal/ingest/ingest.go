package ingest

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/drbd-reactor-go/reactor/internal/diff"
	"github.com/drbd-reactor-go/reactor/internal/model"
	"github.com/drbd-reactor-go/reactor/internal/rerr"
)

// MinimumVersion is the oldest accepted output of the external utility's
// version probe (spec §4.1 "A version probe on startup refuses to run if
// the external utility is older than a documented minimum").
const MinimumVersion = "9.0.0"

// Config controls how Ingester spawns and supervises the event source.
type Config struct {
	// Command is the event-stream command, e.g. ["drbdsetup", "events2", "all"].
	Command []string
	// VersionCommand is run once at startup; its first line of stdout is
	// compared against MinimumVersion.
	VersionCommand []string
	// StatisticsPollInterval is how often the statistics refresh timer
	// fires (spec §4.1, default 60s; zero selects the default).
	StatisticsPollInterval time.Duration
	// StatisticsCommand is the one-shot invocation used by the poll loop.
	StatisticsCommand []string

	MaxRespawnBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRespawnBackoff == 0 {
		c.MaxRespawnBackoff = 30 * time.Second
	}
	if c.StatisticsPollInterval == 0 {
		c.StatisticsPollInterval = 60 * time.Second
	}
	return c
}

// Ingester owns the model, the event-source child process, and the
// statistics poll loop (spec §4.1).
type Ingester struct {
	cfg   Config
	model *model.Model
	log   *zap.Logger

	errSigMu sync.Mutex
	seenErrs map[string]struct{}
}

// New returns an Ingester bound to m. Updates are delivered via the
// onUpdates callback passed to Run, invoked once per parsed line that
// produced at least one PluginUpdate record.
func New(cfg Config, m *model.Model, log *zap.Logger) *Ingester {
	return &Ingester{
		cfg:      cfg.withDefaults(),
		model:    m,
		log:      log,
		seenErrs: make(map[string]struct{}),
	}
}

// Run blocks until ctx is canceled, spawning and respawning the event
// source with exponential backoff on unexpected exit (spec §4.1 "Failure
// semantics"). onUpdates is called from the single reader goroutine, so
// it and the model it ultimately feeds see events strictly in wire order.
func (ig *Ingester) Run(ctx context.Context, onUpdates func([]diff.PluginUpdate)) error {
	if err := ig.probeVersion(ctx); err != nil {
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // supervise forever; only ctx cancellation stops us
	bo.MaxInterval = ig.cfg.MaxRespawnBackoff

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := ig.runOnce(ctx, onUpdates)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			ig.log.Error("ingest: event source exited, respawning", zap.Error(err))
		}

		wait := bo.NextBackOff()
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (ig *Ingester) probeVersion(ctx context.Context) error {
	if len(ig.cfg.VersionCommand) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, ig.cfg.VersionCommand[0], ig.cfg.VersionCommand[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return rerr.Wrap(rerr.Fatal, "run version probe", err)
	}
	version := firstLine(string(out))
	if version < MinimumVersion {
		return rerr.New(rerr.Fatal, fmt.Sprintf("event source version %q is older than minimum %q", version, MinimumVersion))
	}
	return nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

// runOnce spawns the event source once, rebuilds the model from its
// initial "exists" prelude, streams events until the child exits or ctx
// is canceled, and returns the exit error (if any).
func (ig *Ingester) runOnce(ctx context.Context, onUpdates func([]diff.PluginUpdate)) error {
	if len(ig.cfg.Command) == 0 {
		<-ctx.Done()
		return nil
	}

	cmd := exec.CommandContext(ctx, ig.cfg.Command[0], ig.cfg.Command[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: unix.SIGKILL}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return rerr.Wrap(rerr.EventSourceGone, "open stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return rerr.Wrap(rerr.EventSourceGone, "start event source", err)
	}

	ig.model.Clear()
	ig.log.Info("ingest: event source started, model cleared pending exists prelude")

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
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

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if waitErr != nil {
		return rerr.Wrap(rerr.EventSourceGone, "event source exited", waitErr)
	}
	return rerr.New(rerr.EventSourceGone, "event source exited cleanly but unexpectedly")
}

// logMalformedOnce logs a malformed line once per unique error signature,
// rate-limiting repeat occurrences of the same failure (spec §4.1 "A
// malformed line is logged once per unique error signature").
func (ig *Ingester) logMalformedOnce(line string, err error) {
	sig := err.Error()
	ig.errSigMu.Lock()
	_, seen := ig.seenErrs[sig]
	if !seen {
		ig.seenErrs[sig] = struct{}{}
	}
	ig.errSigMu.Unlock()

	if seen {
		return
	}
	ig.log.Error("ingest: malformed event line, skipping", zap.String("line", line), zap.Error(err))
}
