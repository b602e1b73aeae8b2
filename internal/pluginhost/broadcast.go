// Package pluginhost implements the pluggable fan-out (spec §4.3): an
// unbounded multi-producer, multi-consumer broadcast of PluginUpdate
// records, and the host that starts/stops/reloads plugin workers against
// it.
package pluginhost

import (
	"sync"

	"github.com/drbd-reactor-go/reactor/internal/diff"
)

// mailbox is one consumer's unbounded, FIFO queue of updates. Sends never
// block the producer; a pump goroutine drains an internal slice into Out
// as the consumer keeps up (spec §4.2 "Delivery: ... unbounded ...
// broadcast channel", §5 "a slow plugin applies backpressure only to
// itself").
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []diff.PluginUpdate
	closed bool

	Out chan diff.PluginUpdate
}

func newMailbox() *mailbox {
	mb := &mailbox{Out: make(chan diff.PluginUpdate)}
	mb.cond = sync.NewCond(&mb.mu)
	go mb.pump()
	return mb
}

// Send enqueues upd without blocking the caller.
func (mb *mailbox) Send(upd diff.PluginUpdate) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.queue = append(mb.queue, upd)
	mb.cond.Signal()
}

// Close marks the mailbox closed; the pump drains any queued updates to
// Out, then closes Out. Send after Close is a no-op.
func (mb *mailbox) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.closed = true
	mb.cond.Signal()
}

func (mb *mailbox) pump() {
	for {
		mb.mu.Lock()
		for len(mb.queue) == 0 && !mb.closed {
			mb.cond.Wait()
		}
		if len(mb.queue) == 0 && mb.closed {
			mb.mu.Unlock()
			close(mb.Out)
			return
		}
		next := mb.queue[0]
		mb.queue = mb.queue[1:]
		mb.mu.Unlock()

		mb.Out <- next
	}
}

// Broadcaster fans PluginUpdate records out to every registered consumer,
// preserving per-resource order for each consumer independently (spec
// §4.2 "The channel must preserve per-resource ordering"; per-resource
// ordering is automatic here because every consumer's mailbox is FIFO and
// the ingester is single-writer, so updates for one resource are always
// Sent in the order the ingester derived them).
type Broadcaster struct {
	mu        sync.RWMutex
	mailboxes map[string]*mailbox
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{mailboxes: make(map[string]*mailbox)}
}

// Register creates a new receiver channel for consumerID. Registering an
// ID that already exists replaces it — callers must Unregister first if
// that is not intended.
func (b *Broadcaster) Register(consumerID string) <-chan diff.PluginUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	mb := newMailbox()
	b.mailboxes[consumerID] = mb
	return mb.Out
}

// Unregister closes and removes consumerID's mailbox.
func (b *Broadcaster) Unregister(consumerID string) {
	b.mu.Lock()
	mb, ok := b.mailboxes[consumerID]
	delete(b.mailboxes, consumerID)
	b.mu.Unlock()
	if ok {
		mb.Close()
	}
}

// Publish enqueues upd on every registered consumer's mailbox.
func (b *Broadcaster) Publish(upd diff.PluginUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, mb := range b.mailboxes {
		mb.Send(upd)
	}
}

// CloseAll closes every registered mailbox, used on full daemon shutdown.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, mb := range b.mailboxes {
		mb.Close()
		delete(b.mailboxes, id)
	}
}
