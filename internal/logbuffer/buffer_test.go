/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logbuffer

import (
	"testing"
	"time"
)

func TestBufferEvictsOldestWhenFull(t *testing.T) {
	b := New(3)
	for i, msg := range []string{"one", "two", "three", "four"} {
		b.Add(Entry{Timestamp: time.Now(), Message: msg, Level: "info"})
		if got := len(b.All()); got > 3 {
			t.Fatalf("buffer exceeded capacity after %d adds: %d", i+1, got)
		}
	}

	all := b.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Message != "two" || all[2].Message != "four" {
		t.Fatalf("unexpected order: %q .. %q", all[0].Message, all[2].Message)
	}
}

func TestBufferFilter(t *testing.T) {
	b := New(10)
	b.Add(Entry{Message: "slot fired", Level: "info"})
	b.Add(Entry{Message: "probe failed", Level: "error"})
	b.Add(Entry{Message: "queue refilled", Level: "info"})

	errs := b.Filter("error", "")
	if len(errs) != 1 || errs[0].Message != "probe failed" {
		t.Fatalf("unexpected error filter result: %+v", errs)
	}

	slot := b.Filter("", "SLOT")
	if len(slot) != 1 || slot[0].Message != "slot fired" {
		t.Fatalf("unexpected search result: %+v", slot)
	}
}

func TestWriterParsesZerologJSON(t *testing.T) {
	b := New(10)
	w := NewWriter(b, nil)

	line := []byte(`{"level":"warn","component":"playout","clip":"ep1.mp4","message":"missing file"}` + "\n")
	if _, err := w.Write(line); err != nil {
		t.Fatalf("write: %v", err)
	}

	all := b.All()
	if len(all) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(all))
	}
	entry := all[0]
	if entry.Level != "warn" || entry.Message != "missing file" || entry.Component != "playout" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Fields["clip"] != "ep1.mp4" {
		t.Fatalf("expected clip field, got %+v", entry.Fields)
	}
}

func TestTailReturnsNewest(t *testing.T) {
	b := New(10)
	for _, msg := range []string{"a", "b", "c", "d"} {
		b.Add(Entry{Message: msg})
	}
	tail := b.Tail(2)
	if len(tail) != 2 || tail[0].Message != "c" || tail[1].Message != "d" {
		t.Fatalf("unexpected tail: %+v", tail)
	}
}
