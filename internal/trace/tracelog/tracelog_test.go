package tracelog

import (
	"testing"

	"tickmind.ai/internal/trace"
)

func TestWriter_RoundTripAcrossSegments(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "decisions", 100, 1)

	for tick := uint64(0); tick < 250; tick += 50 {
		err := w.WriteDecision(trace.DecisionRecord{
			Tick:     tick,
			Entity:   7,
			Paradigm: "bt",
			Events:   []trace.Event{{Kind: "status", Label: "root", Value: 2}},
		})
		if err != nil {
			t.Fatalf("write tick %d: %v", tick, err)
		}
	}
	if err := w.WriteDigest(trace.DigestRecord{Tick: 200, Digest: "abcd"}); err != nil {
		t.Fatalf("write digest: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines, err := ReadAll(dir, "decisions")
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(lines) != 6 {
		t.Fatalf("lines = %d, want 6", len(lines))
	}

	var lastTick uint64
	var digests int
	for _, l := range lines {
		switch l.Type {
		case "decision":
			if l.Decision == nil {
				t.Fatalf("decision line without payload")
			}
			if l.Decision.Tick < lastTick {
				t.Fatalf("ticks out of order: %d after %d", l.Decision.Tick, lastTick)
			}
			lastTick = l.Decision.Tick
		case "digest":
			digests++
			if l.Digest.Digest != "abcd" {
				t.Fatalf("digest = %q", l.Digest.Digest)
			}
		default:
			t.Fatalf("unknown line type %q", l.Type)
		}
	}
	if digests != 1 {
		t.Fatalf("digest lines = %d, want 1", digests)
	}
}

func TestWriter_SingleSegmentWhenRotationDisabled(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "run", 0, 1)
	for tick := uint64(0); tick < 5000; tick += 1000 {
		if err := w.WriteDigest(trace.DigestRecord{Tick: tick, Digest: "d"}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines, err := ReadSegment(dir + "/run-0000000000.jsonl.zst")
	if err != nil {
		t.Fatalf("read segment: %v", err)
	}
	if len(lines) != 5 {
		t.Fatalf("lines = %d, want 5", len(lines))
	}
}

func TestWriter_BatchedFlushCadence(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "batched", 0, 8)

	for tick := uint64(0); tick < 20; tick++ {
		if err := w.WriteDigest(trace.DigestRecord{Tick: tick, Digest: "d"}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	// Two full batches of 8 flushed, four records still buffered.
	if w.pending != 4 {
		t.Fatalf("pending = %d, want 4", w.pending)
	}

	// A partial batch must still survive Close.
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	lines, err := ReadAll(dir, "batched")
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(lines) != 20 {
		t.Fatalf("lines = %d, want 20", len(lines))
	}
}
