// Package config assembles and validates the daemon's configuration
// document (spec §4.3, §6). The document is not a single file: it is a
// root TOML document concatenated with every *.toml file under a
// snippets directory, read in lexicographic order, and parsed as one
// merged document with github.com/BurntSushi/toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/sys/unix"
)

// Version, GitCommit, BuildTime are injected by the Makefile via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Document is the root configuration document (spec §6 "Configuration file").
type Document struct {
	Snippets               string `toml:"snippets"`
	StatisticsPollInterval int    `toml:"statistics-poll-interval"`

	Log []LogConfig `toml:"log"`

	Promoter      []PromoterConfig      `toml:"promoter"`
	UserModeHelper []UserModeHelperConfig `toml:"user-mode-helper"`
	WebExposition []WebExpositionConfig `toml:"web-exposition"`
	Subagent      []SubagentConfig      `toml:"subagent"`
	Debugger      []DebuggerConfig      `toml:"debugger"`
}

// LogConfig is one `[[log]]` table.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// PromoterConfig is one `[[promoter]]` table (spec §4.4, §6).
type PromoterConfig struct {
	ID string `toml:"id"`

	Resources map[string]PromoterResourceConfig `toml:"resources"`
}

// PromoterResourceConfig is a single resource's entry in a promoter's
// resource table (spec §6 "Promoter resource table keys").
type PromoterResourceConfig struct {
	Start []string `toml:"start"`
	Stop  []string `toml:"stop"`

	Runner         string `toml:"runner"` // "" (service-manager) or "shell"
	DependenciesAs string `toml:"dependencies-as"`
	TargetAs       string `toml:"target-as"`

	OnDRBDDemoteFailure string `toml:"on-drbd-demote-failure"`
	OnStopFailure        string `toml:"on-stop-failure"`
	StopServicesOnExit   bool   `toml:"stop-services-on-exit"`

	// SecondaryForce is a pointer so an absent key can default to true
	// (spec §6 "secondary-force (default true)") without a zero-value
	// bool masking that default. Use SecondaryForceEnabled to read it.
	SecondaryForce *bool `toml:"secondary-force"`

	PreferredNodes       []string `toml:"preferred-nodes"`
	PreferredNodesPolicy string   `toml:"preferred-nodes-policy"`
	OnQuorumLoss         string   `toml:"on-quorum-loss"`

	SleepBeforePromoteFactor float64 `toml:"sleep-before-promote-factor"`
}

func (c PromoterResourceConfig) withDefaults() PromoterResourceConfig {
	c.DependenciesAs = strings.ToLower(c.DependenciesAs)
	c.TargetAs = strings.ToLower(c.TargetAs)
	if c.DependenciesAs == "" {
		c.DependenciesAs = "requires"
	}
	if c.TargetAs == "" {
		c.TargetAs = "requires"
	}
	if c.SleepBeforePromoteFactor == 0 {
		c.SleepBeforePromoteFactor = 1.0
	}
	if c.SecondaryForce == nil {
		enabled := true
		c.SecondaryForce = &enabled
	}
	return c
}

// SecondaryForceEnabled reports whether a failed plain demotion should be
// retried with a forced variant before escalation; unset defaults to true
// (spec §6 "secondary-force (default true)").
func (c PromoterResourceConfig) SecondaryForceEnabled() bool {
	return c.SecondaryForce == nil || *c.SecondaryForce
}

// UserModeHelperConfig is one `[[user-mode-helper]]` table (spec §4.5).
type UserModeHelperConfig struct {
	ID    string           `toml:"id"`
	Rules []UMHRuleConfig  `toml:"rule"`
}

// UMHRuleConfig is one filter rule.
type UMHRuleConfig struct {
	Scope        string            `toml:"scope"` // resource, device, peer-device, connection
	Name         string            `toml:"name"`
	ResourceName string            `toml:"resource-name"`
	Command      string            `toml:"command"`
	Env          map[string]string `toml:"env"`

	Old map[string]any `toml:"old"`
	New map[string]any `toml:"new"`
}

// WebExpositionConfig is one `[[web-exposition]]` table (spec §6).
type WebExpositionConfig struct {
	ID      string `toml:"id"`
	Address string `toml:"address"`
	Enums   bool   `toml:"enums"`
}

// SubagentConfig is one `[[subagent]]` table (spec §6).
type SubagentConfig struct {
	ID            string `toml:"id"`
	Address       string `toml:"address"`
	CacheMax      int    `toml:"cache-max"`
	AgentTimeout  int    `toml:"agent-timeout"`
	PeerStates    bool   `toml:"peer-states"`
}

// DebuggerConfig is one `[[debugger]]` table: logs every PluginUpdate it
// receives. Carries no fields beyond an identifier.
type DebuggerConfig struct {
	ID string `toml:"id"`
}

func (d Document) withDefaults() Document {
	if d.StatisticsPollInterval == 0 {
		d.StatisticsPollInterval = 60
	}
	for i := range d.Promoter {
		for name, r := range d.Promoter[i].Resources {
			d.Promoter[i].Resources[name] = r.withDefaults()
		}
	}
	for i := range d.Subagent {
		if d.Subagent[i].CacheMax == 0 {
			d.Subagent[i].CacheMax = 60
		}
		if d.Subagent[i].AgentTimeout == 0 {
			d.Subagent[i].AgentTimeout = 5
		}
	}
	return d
}

// Load reads rootPath, appends every *.toml file in the configured
// snippets directory (lexicographic order), parses the concatenation as
// one TOML document, assigns deterministic plugin IDs, and validates it
// (spec §4.3 "Configuration is assembled by concatenating a root
// document with every *.toml file ... in lexicographic order").
//
// The returned unlock func releases the advisory flock taken on the
// snippets directory's lock file; callers must hold it until reload or
// shutdown to honor "concurrent promoters on the same host are
// prevented by locking the snippets file at load time" (spec §5).
func Load(rootPath string) (*Document, func() error, error) {
	rootBytes, err := os.ReadFile(rootPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: read root document %q: %w", rootPath, err)
	}

	var probe struct {
		Snippets string `toml:"snippets"`
	}
	if _, err := toml.Decode(string(rootBytes), &probe); err != nil {
		return nil, nil, fmt.Errorf("config: parse root document %q: %w", rootPath, err)
	}

	merged := strings.Builder{}
	merged.Write(rootBytes)

	unlock := func() error { return nil }
	if probe.Snippets != "" {
		snippetBytes, snippetFiles, err := readSnippets(probe.Snippets)
		if err != nil {
			return nil, nil, err
		}
		merged.WriteByte('\n')
		merged.Write(snippetBytes)

		lockPath := filepath.Join(probe.Snippets, ".reactor.lock")
		lf, err := flockSnippets(lockPath)
		if err != nil {
			return nil, nil, fmt.Errorf("config: lock snippets directory %q: %w", probe.Snippets, err)
		}
		unlock = lf.Close
		_ = snippetFiles // retained for callers that want to log which files were merged
	}

	var doc Document
	if _, err := toml.Decode(merged.String(), &doc); err != nil {
		return nil, unlock, fmt.Errorf("config: parse merged document: %w", err)
	}
	doc = doc.withDefaults()
	assignPluginIDs(&doc)

	if err := Validate(&doc); err != nil {
		_ = unlock()
		return nil, nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &doc, unlock, nil
}

// readSnippets reads every *.toml file under dir in lexicographic order
// and returns their concatenation plus the list of file names merged.
func readSnippets(dir string) ([]byte, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("config: read snippets directory %q: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var out strings.Builder
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, fmt.Errorf("config: read snippet %q: %w", name, err)
		}
		out.Write(b)
		out.WriteByte('\n')
	}
	return []byte(out.String()), names, nil
}

// flockLock is a held advisory lock on the snippets directory.
type flockLock struct {
	f *os.File
}

func (l *flockLock) Close() error {
	if l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	cerr := l.f.Close()
	l.f = nil
	if err != nil {
		return err
	}
	return cerr
}

func flockSnippets(path string) (*flockLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("snippets directory already locked by another daemon instance: %w", err)
	}
	return &flockLock{f: f}, nil
}

// assignPluginIDs synthesizes a stable identifier for any plugin
// instance that did not specify one, deterministically derived from its
// ordinal position within its type's array (spec §4.3 "configuration
// lacking an identifier receives one synthesized deterministically").
func assignPluginIDs(doc *Document) {
	for i := range doc.Promoter {
		if doc.Promoter[i].ID == "" {
			doc.Promoter[i].ID = fmt.Sprintf("promoter-%d", i)
		}
	}
	for i := range doc.UserModeHelper {
		if doc.UserModeHelper[i].ID == "" {
			doc.UserModeHelper[i].ID = fmt.Sprintf("user-mode-helper-%d", i)
		}
	}
	for i := range doc.WebExposition {
		if doc.WebExposition[i].ID == "" {
			doc.WebExposition[i].ID = fmt.Sprintf("web-exposition-%d", i)
		}
	}
	for i := range doc.Subagent {
		if doc.Subagent[i].ID == "" {
			doc.Subagent[i].ID = fmt.Sprintf("subagent-%d", i)
		}
	}
	for i := range doc.Debugger {
		if doc.Debugger[i].ID == "" {
			doc.Debugger[i].ID = fmt.Sprintf("debugger-%d", i)
		}
	}
}

// StatisticsPollPeriod returns the configured poll interval as a Duration.
func (d Document) StatisticsPollPeriod() time.Duration {
	return time.Duration(d.StatisticsPollInterval) * time.Second
}

// Validate checks the merged document for correctness (spec §7
// "ConfigInvalid: malformed document or contradictory options").
func Validate(d *Document) error {
	var errs []string

	if d.StatisticsPollInterval < 1 {
		errs = append(errs, fmt.Sprintf("statistics-poll-interval must be >= 1, got %d", d.StatisticsPollInterval))
	}
	for _, l := range d.Log {
		switch l.Level {
		case "debug", "info", "warn", "error":
		default:
			errs = append(errs, fmt.Sprintf("log level %q is not one of debug/info/warn/error", l.Level))
		}
	}
	for _, p := range d.Promoter {
		for name, r := range p.Resources {
			if len(r.Start) == 0 {
				errs = append(errs, fmt.Sprintf("promoter %q resource %q: start list must not be empty", p.ID, name))
			}
			if r.Runner != "" && r.Runner != "shell" {
				errs = append(errs, fmt.Sprintf("promoter %q resource %q: runner must be \"\" or \"shell\", got %q", p.ID, name, r.Runner))
			}
			if r.DependenciesAs != "requires" && r.DependenciesAs != "wants" {
				errs = append(errs, fmt.Sprintf("promoter %q resource %q: dependencies-as must be requires or wants, got %q", p.ID, name, r.DependenciesAs))
			}
		}
	}
	for _, u := range d.UserModeHelper {
		for _, r := range u.Rules {
			if r.Command == "" {
				errs = append(errs, fmt.Sprintf("user-mode-helper %q: rule missing required command", u.ID))
			}
			switch r.Scope {
			case "resource", "device", "peer-device", "connection":
			default:
				errs = append(errs, fmt.Sprintf("user-mode-helper %q: rule scope %q is not recognized", u.ID, r.Scope))
			}
		}
	}
	for _, w := range d.WebExposition {
		if w.Address == "" {
			errs = append(errs, fmt.Sprintf("web-exposition %q: address must not be empty", w.ID))
		}
	}
	for _, s := range d.Subagent {
		if s.CacheMax < 1 {
			errs = append(errs, fmt.Sprintf("subagent %q: cache-max must be >= 1, got %d", s.ID, s.CacheMax))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
