// Package webexposition implements the web-exposition plugin (spec
// §4.6): an atomically swapped text buffer rebuilt from the latest
// snapshot of every resource whenever a PluginUpdate arrives, served over plain
// HTTP. The daemon only owns buffer generation; body formatting is a
// trivial formatter over already-public state (spec §1 "OUT OF SCOPE").
package webexposition

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/drbd-reactor-go/reactor/internal/config"
	"github.com/drbd-reactor-go/reactor/internal/diff"
	"github.com/drbd-reactor-go/reactor/internal/model"
	"github.com/drbd-reactor-go/reactor/internal/pluginhost"
)

// Server is one [[web-exposition]] instance.
type Server struct {
	id      string
	address string
	enums   bool
	log     *zap.Logger

	buf atomic.Value // holds []byte

	fingerprint string
}

// New returns a Server that will listen on cfg.Address once Run starts.
func New(cfg config.WebExpositionConfig, log *zap.Logger) *Server {
	s := &Server{
		id:          cfg.ID,
		address:     cfg.Address,
		enums:       cfg.Enums,
		log:         log,
		fingerprint: fmt.Sprintf("%s|%v", cfg.Address, cfg.Enums),
	}
	s.buf.Store([]byte{})
	return s
}

func (s *Server) ID() string            { return s.id }
func (s *Server) Kind() pluginhost.Kind { return pluginhost.KindWebExposition }
func (s *Server) Fingerprint() string   { return s.fingerprint }

// Run listens on s.address, serving the current buffer on every request,
// and rebuilds the buffer after each incoming PluginUpdate from the
// latest snapshot of every resource seen so far, in resource-name order.
func (s *Server) Run(ctx context.Context, updates <-chan diff.PluginUpdate) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(s.buf.Load().([]byte))
	})

	srv := &http.Server{
		Addr:         s.address,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	snaps := map[string]model.Snapshot{}
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)

		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return err
			}

		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Dimension == diff.DimensionResourceRole && upd.EventType == diff.EventDestroy {
				delete(snaps, upd.ResourceName)
			} else {
				snaps[upd.ResourceName] = upd.Snapshot
			}
			names := make([]string, 0, len(snaps))
			for n := range snaps {
				names = append(names, n)
			}
			sort.Strings(names)
			body := []byte{}
			for _, n := range names {
				body = append(body, render(snaps[n], s.enums)...)
			}
			s.buf.Store(body)
		}
	}
}

// render formats a Resource snapshot as the plain-text body (spec §4.6
// "a trivial formatter over the state described here").
func render(snap model.Snapshot, enums bool) []byte {
	var out []byte
	r := snap.Resource
	line := func(format string, args ...any) {
		out = append(out, []byte(fmt.Sprintf(format, args...)+"\n")...)
	}

	line("resource %s role=%s suspended=%t may_promote=%t promotion_score=%d",
		r.Name, roleString(r.Role, enums), r.Suspended, r.MayPromote, r.PromotionScore)

	volumes := make([]uint32, 0, len(r.Devices))
	for v := range r.Devices {
		volumes = append(volumes, v)
	}
	sort.Slice(volumes, func(i, j int) bool { return volumes[i] < volumes[j] })
	for _, v := range volumes {
		d := r.Devices[v]
		line("device volume=%d minor=%d disk=%s quorum=%t open=%t", v, d.Minor, diskString(d.Disk, enums), d.Quorum, d.Open)
	}

	peers := make([]uint32, 0, len(r.Connections))
	for p := range r.Connections {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	for _, p := range peers {
		c := r.Connections[p]
		line("connection peer_node_id=%d state=%s peer_role=%s", p, connString(c.State, enums), roleString(c.PeerRole, enums))
	}

	return out
}

func roleString(r model.Role, enums bool) string {
	if enums {
		return fmt.Sprintf("%d", r)
	}
	return r.String()
}

func diskString(d model.DiskState, enums bool) string {
	if enums {
		return fmt.Sprintf("%d", d)
	}
	return d.String()
}

func connString(c model.ConnState, enums bool) string {
	if enums {
		return fmt.Sprintf("%d", c)
	}
	return c.String()
}
