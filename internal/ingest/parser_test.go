package ingest

import (
	"testing"

	"github.com/drbd-reactor-go/reactor/internal/diff"
)

func TestParse_BasicResourceLine(t *testing.T) {
	pl, err := Parse(`exists resource name:foo role:Secondary may-promote:no suspended:no`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pl.Event != diff.EventExists || pl.Object != ObjectResource {
		t.Fatalf("unexpected event/object: %v/%v", pl.Event, pl.Object)
	}
	if pl.Keys["name"] != "foo" || pl.Keys["role"] != "Secondary" {
		t.Fatalf("unexpected keys: %+v", pl.Keys)
	}
}

func TestParse_QuotedValueWithSpaces(t *testing.T) {
	pl, err := Parse(`change device name:foo volume:0 backing:"/dev/my disk/sdb1"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pl.Keys["backing"] != "/dev/my disk/sdb1" {
		t.Fatalf("expected quoted value preserved, got %q", pl.Keys["backing"])
	}
}

func TestParse_UnterminatedQuoteFails(t *testing.T) {
	_, err := Parse(`change device name:foo backing:"unterminated`)
	if err == nil {
		t.Fatal("expected an error for an unterminated quote")
	}
}

func TestParse_UnrecognizedEventTypeFails(t *testing.T) {
	_, err := Parse(`frobnicate resource name:foo`)
	if err == nil {
		t.Fatal("expected an error for an unrecognized event-type")
	}
}

func TestParse_UnknownKeysSurviveForCallerToIgnore(t *testing.T) {
	pl, err := Parse(`change resource name:foo some-future-key:123`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pl.Keys["some-future-key"] != "123" {
		t.Fatal("expected an unrecognized key to survive tokenizing, not abort the line")
	}
}

func TestParse_SentinelLine(t *testing.T) {
	pl, err := Parse(`exists exists-done`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pl.Object != ObjectSentinel {
		t.Fatalf("expected sentinel object type, got %v", pl.Object)
	}
}
