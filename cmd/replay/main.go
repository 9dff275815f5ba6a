package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tickmind.ai/internal/assets"
	"tickmind.ai/internal/fixmath"
	"tickmind.ai/internal/sim/world"
	"tickmind.ai/internal/trace"
	"tickmind.ai/internal/trace/indexdb"
	"tickmind.ai/internal/trace/tracelog"
)

// replay rebuilds a run from its seed and assets, re-executes every tick,
// and verifies the state digest at each recorded checkpoint. Any mismatch
// means the assets, the seed or the binary differ from the recording.
func main() {
	var (
		configDir = flag.String("configs", "./configs", "asset directory")
		dataDir   = flag.String("data", "./data", "runtime data directory of the recorded run")
		dbPath    = flag.String("db", "", "trace index db (default: <data>/index/trace.db)")
		traceDir  = flag.String("trace", "", "JSONL trace dir, used when no db is available")
		seed      = flag.Int64("seed", 0, "run seed (required without a db)")
		agents    = flag.Int("agents", 0, "agent count (required without a db)")
		halfMilli = flag.Int64("arena_half_width_milli", 32000, "arena half width (required without a db)")
		toTick    = flag.Uint64("to_tick", 0, "stop after this tick (0 = all checkpoints)")
	)
	flag.Parse()

	lib, err := assets.Load(*configDir, assets.NewRegistry())
	if err != nil {
		fatal("load assets: %v", err)
	}

	var checkpoints []trace.DigestRecord

	db := strings.TrimSpace(*dbPath)
	if db == "" {
		if candidate := filepath.Join(*dataDir, "index", "trace.db"); fileExists(candidate) {
			db = candidate
		}
	}
	if db != "" {
		idx, err := indexdb.Open(db)
		if err != nil {
			fatal("open trace index: %v", err)
		}
		defer idx.Close()

		if v, err := idx.Meta("seed"); err == nil && v != "" {
			*seed, _ = strconv.ParseInt(v, 10, 64)
		}
		if v, err := idx.Meta("agent_count"); err == nil && v != "" {
			*agents, _ = strconv.Atoi(v)
		}
		if v, err := idx.Meta("arena_half_width_milli"); err == nil && v != "" {
			*halfMilli, _ = strconv.ParseInt(v, 10, 64)
		}
		// Refuse to replay against assets that differ from the recording.
		for id, digest := range libraryDigests(lib) {
			recorded, err := idx.Meta("asset:" + id)
			if err != nil {
				fatal("read asset meta: %v", err)
			}
			if recorded != "" && recorded != digest {
				fatal("asset %s digest mismatch: recorded=%s local=%s", id, recorded, digest)
			}
		}

		end := *toTick
		if end == 0 {
			end = ^uint64(0)
		}
		checkpoints, err = idx.Digests(0, end)
		if err != nil {
			fatal("read digests: %v", err)
		}
	} else {
		dir := strings.TrimSpace(*traceDir)
		if dir == "" {
			dir = filepath.Join(*dataDir, "trace")
		}
		lines, err := tracelog.ReadAll(dir, "trace")
		if err != nil {
			fatal("read trace: %v", err)
		}
		for _, l := range lines {
			if l.Type != "digest" || l.Digest == nil {
				continue
			}
			if *toTick > 0 && l.Digest.Tick > *toTick {
				continue
			}
			checkpoints = append(checkpoints, *l.Digest)
		}
	}

	if len(checkpoints) == 0 {
		fatal("no digest checkpoints found")
	}
	if *agents <= 0 {
		fatal("unknown agent count; pass -agents")
	}

	w := world.New(uint64(*seed), fixmath.FromMilli(*halfMilli))
	if err := world.Populate(w, lib, *agents); err != nil {
		fatal("populate: %v", err)
	}

	verified := 0
	for _, cp := range checkpoints {
		for w.Tick() < cp.Tick {
			w.Step()
		}
		got := w.Digest()
		if got != cp.Digest {
			fatal("digest mismatch at tick %d:\n  recorded %s\n  replayed %s", cp.Tick, cp.Digest, got)
		}
		verified++
	}
	fmt.Printf("replay ok: %d checkpoints verified through tick %d\n", verified, checkpoints[len(checkpoints)-1].Tick)
}

func libraryDigests(lib *assets.Library) map[string]string {
	out := map[string]string{}
	for id, a := range lib.Blackboards {
		out[id] = a.Digest
	}
	for id, a := range lib.Trees {
		out[id] = a.Digest
	}
	for id, a := range lib.Machines {
		out[id] = a.Digest
	}
	for id, a := range lib.Utilities {
		out[id] = a.Digest
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
