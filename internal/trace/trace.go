// Package trace is the observation side channel: per-agent decision
// records and periodic state digests flowing out of the tick loop into
// sinks. Sinks are strictly read-only observers; nothing here may feed
// back into simulation state.
package trace

import (
	"log"
	"sync"

	"tickmind.ai/internal/bb"
	"tickmind.ai/internal/node"
)

// Event is one labeled observation from inside a tick.
type Event struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// DecisionRecord is what one agent's engine reported for one tick.
type DecisionRecord struct {
	Tick     uint64  `json:"tick"`
	Entity   uint64  `json:"entity"`
	Paradigm string  `json:"paradigm"`
	Events   []Event `json:"events,omitempty"`
}

// DigestRecord is a periodic full-state digest, the unit of replica
// comparison and replay verification.
type DigestRecord struct {
	Tick   uint64 `json:"tick"`
	Digest string `json:"digest"`
}

// Sink receives trace records. Implementations must tolerate bursts; a
// sink that cannot keep up should drop rather than stall the tick loop.
type Sink interface {
	WriteDecision(DecisionRecord) error
	WriteDigest(DigestRecord) error
}

// Collector fans records out to its sinks. It satisfies the engine's
// collector contract and never touches agent or host state.
type Collector struct {
	mu     sync.Mutex
	sinks  []Sink
	logger *log.Logger
}

func NewCollector(logger *log.Logger, sinks ...Sink) *Collector {
	return &Collector{sinks: sinks, logger: logger}
}

// Record forwards one agent's tick events. The events slice is reused by
// the caller, so it is copied before leaving this call.
func (c *Collector) Record(tick uint64, entity bb.Entity, paradigm string, events []node.TraceEvent) {
	rec := DecisionRecord{Tick: tick, Entity: uint64(entity), Paradigm: paradigm}
	if len(events) > 0 {
		rec.Events = make([]Event, len(events))
		for i, ev := range events {
			rec.Events[i] = Event{Kind: ev.Kind, Label: ev.Label, Value: ev.Value}
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sinks {
		if err := s.WriteDecision(rec); err != nil && c.logger != nil {
			c.logger.Printf("trace decision sink: %v", err)
		}
	}
}

// RecordDigest forwards a periodic state digest.
func (c *Collector) RecordDigest(tick uint64, digest string) {
	rec := DigestRecord{Tick: tick, Digest: digest}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sinks {
		if err := s.WriteDigest(rec); err != nil && c.logger != nil {
			c.logger.Printf("trace digest sink: %v", err)
		}
	}
}
