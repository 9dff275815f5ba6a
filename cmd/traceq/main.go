package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"tickmind.ai/internal/trace/indexdb"
)

// traceq queries the sqlite trace index: per-entity decision histories,
// digest checkpoints and run metadata.
func main() {
	var (
		dbPath   = flag.String("db", "./data/index/trace.db", "trace index db")
		entity   = flag.Uint64("entity", 0, "entity to list decisions for")
		fromTick = flag.Uint64("from", 0, "range start (inclusive)")
		toTick   = flag.Uint64("to", ^uint64(0), "range end (inclusive)")
		digests  = flag.Bool("digests", false, "list digest checkpoints instead of decisions")
		metaKey  = flag.String("meta", "", "print one metadata value and exit")
	)
	flag.Parse()

	idx, err := indexdb.Open(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	switch {
	case *metaKey != "":
		v, err := idx.Meta(*metaKey)
		if err != nil {
			fmt.Fprintln(os.Stderr, "meta:", err)
			os.Exit(1)
		}
		fmt.Println(v)

	case *digests:
		rows, err := idx.Digests(*fromTick, *toTick)
		if err != nil {
			fmt.Fprintln(os.Stderr, "digests:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			fmt.Printf("%d\t%s\n", r.Tick, r.Digest)
		}

	case *entity != 0:
		rows, err := idx.Decisions(*entity, *fromTick, *toTick)
		if err != nil {
			fmt.Fprintln(os.Stderr, "decisions:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			events, _ := json.Marshal(r.Events)
			fmt.Printf("%d\t%s\t%s\n", r.Tick, r.Paradigm, events)
		}

	default:
		fmt.Fprintln(os.Stderr, "nothing to do: pass -entity, -digests or -meta")
		os.Exit(2)
	}
}
