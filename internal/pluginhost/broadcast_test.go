package pluginhost

import (
	"testing"
	"time"

	"github.com/drbd-reactor-go/reactor/internal/diff"
)

func TestBroadcaster_DeliversToAllConsumers(t *testing.T) {
	b := NewBroadcaster()
	a := b.Register("a")
	c := b.Register("b")

	b.Publish(diff.PluginUpdate{ResourceName: "foo"})

	select {
	case u := <-a:
		if u.ResourceName != "foo" {
			t.Fatalf("unexpected update: %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for consumer a")
	}
	select {
	case u := <-c:
		if u.ResourceName != "foo" {
			t.Fatalf("unexpected update: %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for consumer b")
	}
}

func TestBroadcaster_SlowConsumerDoesNotBlockFast(t *testing.T) {
	b := NewBroadcaster()
	slow := b.Register("slow")
	fast := b.Register("fast")

	for i := 0; i < 100; i++ {
		b.Publish(diff.PluginUpdate{ResourceName: "r"})
	}

	for i := 0; i < 100; i++ {
		select {
		case <-fast:
		case <-time.After(time.Second):
			t.Fatalf("fast consumer stalled at %d", i)
		}
	}

	// the slow consumer's queue still has everything buffered
	select {
	case <-slow:
	case <-time.After(time.Second):
		t.Fatal("slow consumer never receives its backlog")
	}
}

func TestBroadcaster_UnregisterClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Register("x")
	b.Unregister("x")

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to be closed after Unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
