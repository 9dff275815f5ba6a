package trace

import (
	"testing"

	"tickmind.ai/internal/node"
)

type memSink struct {
	decisions []DecisionRecord
	digests   []DigestRecord
}

func (s *memSink) WriteDecision(r DecisionRecord) error { s.decisions = append(s.decisions, r); return nil }
func (s *memSink) WriteDigest(r DigestRecord) error     { s.digests = append(s.digests, r); return nil }

func TestCollector_FansOutAndCopiesEvents(t *testing.T) {
	a := &memSink{}
	b := &memSink{}
	c := NewCollector(nil, a, b)

	events := []node.TraceEvent{{Kind: "status", Label: "root", Value: 1}}
	c.Record(42, 9, "hfsm", events)

	// The caller reuses its buffer between agents; the record must hold
	// its own copy.
	events[0].Label = "mutated"

	for _, s := range []*memSink{a, b} {
		if len(s.decisions) != 1 {
			t.Fatalf("decisions = %d, want 1", len(s.decisions))
		}
		rec := s.decisions[0]
		if rec.Tick != 42 || rec.Entity != 9 || rec.Paradigm != "hfsm" {
			t.Fatalf("record = %+v", rec)
		}
		if rec.Events[0].Label != "root" {
			t.Fatalf("event label aliased caller buffer: %q", rec.Events[0].Label)
		}
	}

	c.RecordDigest(100, "feed")
	if a.digests[0].Digest != "feed" || b.digests[0].Digest != "feed" {
		t.Fatalf("digest not fanned out")
	}
}
