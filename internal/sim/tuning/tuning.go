package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning is the host-side runtime configuration. Nothing in here feeds
// decision logic directly; agent behavior lives entirely in the asset
// files, so replicas only need matching assets plus a matching seed.
type Tuning struct {
	TickRateHz     int `yaml:"tick_rate_hz"`
	TickDurationMs int `yaml:"tick_duration_ms"`

	Seed       int64 `yaml:"seed"`
	AgentCount int   `yaml:"agent_count"`

	ArenaHalfWidthMilli int64 `yaml:"arena_half_width_milli"`

	DigestEveryTicks int `yaml:"digest_every_ticks"`

	Trace TraceConfig `yaml:"trace"`
}

// TraceConfig controls the decision trace sink.
type TraceConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Dir            string `yaml:"dir"`
	RotateTicks    int    `yaml:"rotate_ticks"`
	IndexSQLite    bool   `yaml:"index_sqlite"`
	FlushEveryRecs int    `yaml:"flush_every_recs"`
}

// Default returns the tuning used when no file is given.
func Default() Tuning {
	return Tuning{
		TickRateHz:          10,
		TickDurationMs:      100,
		Seed:                1337,
		AgentCount:          8,
		ArenaHalfWidthMilli: 32000,
		DigestEveryTicks:    100,
		Trace: TraceConfig{
			Enabled:        true,
			Dir:            "trace",
			RotateTicks:    10000,
			IndexSQLite:    true,
			FlushEveryRecs: 256,
		},
	}
}

// Load reads a tuning file, layering it over the defaults.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.TickRateHz <= 0 {
		return t, fmt.Errorf("tuning.yaml: tick_rate_hz must be positive")
	}
	if t.AgentCount < 0 {
		return t, fmt.Errorf("tuning.yaml: agent_count must not be negative")
	}
	return t, nil
}
