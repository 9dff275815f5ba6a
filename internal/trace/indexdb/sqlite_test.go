package indexdb

import (
	"path/filepath"
	"testing"

	"tickmind.ai/internal/trace"
)

func TestSQLiteIndex_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")

	idx, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.UpsertMeta("seed", "1337")
	for tick := uint64(0); tick < 3; tick++ {
		err := idx.WriteDecision(trace.DecisionRecord{
			Tick:     tick,
			Entity:   5,
			Paradigm: "utility",
			Events:   []trace.Event{{Kind: "score", Label: "flee", Value: int64(tick)}},
		})
		if err != nil {
			t.Fatalf("write decision: %v", err)
		}
	}
	if err := idx.WriteDigest(trace.DigestRecord{Tick: 2, Digest: "cafe"}); err != nil {
		t.Fatalf("write digest: %v", err)
	}
	// Close drains the writer queue before the db closes.
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	if v, err := idx.Meta("seed"); err != nil || v != "1337" {
		t.Fatalf("meta = %q, %v", v, err)
	}
	if d, err := idx.DigestAt(2); err != nil || d != "cafe" {
		t.Fatalf("digest = %q, %v", d, err)
	}
	if d, err := idx.DigestAt(99); err != nil || d != "" {
		t.Fatalf("missing digest = %q, %v", d, err)
	}

	recs, err := idx.Decisions(5, 0, 10)
	if err != nil {
		t.Fatalf("decisions: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("decisions = %d, want 3", len(recs))
	}
	if recs[1].Events[0].Value != 1 {
		t.Fatalf("events not preserved: %+v", recs[1].Events)
	}

	digs, err := idx.Digests(0, 10)
	if err != nil || len(digs) != 1 {
		t.Fatalf("digests = %v, %v", digs, err)
	}
}
