package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"tickmind.ai/internal/assets"
	"tickmind.ai/internal/fixmath"
	"tickmind.ai/internal/protocol"
	"tickmind.ai/internal/sim/tuning"
	"tickmind.ai/internal/sim/world"
	"tickmind.ai/internal/trace"
	"tickmind.ai/internal/trace/indexdb"
	"tickmind.ai/internal/trace/tracelog"
	"tickmind.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "observer http listen address (empty to disable)")
		configDir  = flag.String("configs", "./configs", "asset directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		seed       = flag.Int64("seed", 0, "override the tuning seed (0 keeps it)")
		ticks      = flag.Uint64("ticks", 0, "run this many ticks at full speed and exit (0 = run paced forever)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite trace index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[simd] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Default()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	lib, err := assets.Load(*configDir, assets.NewRegistry())
	if err != nil {
		logger.Fatalf("load assets: %v", err)
	}
	logger.Printf("assets: %d blackboards, %d trees, %d machines, %d utilities",
		len(lib.Blackboards), len(lib.Trees), len(lib.Machines), len(lib.Utilities))

	w := world.New(uint64(tune.Seed), fixmath.FromMilli(tune.ArenaHalfWidthMilli))
	if err := world.Populate(w, lib, tune.AgentCount); err != nil {
		logger.Fatalf("populate: %v", err)
	}
	logger.Printf("world: seed=%d agents=%d initial digest=%s", tune.Seed, w.EntityCount(), w.Digest())

	// Trace sinks. All observation only; the sim never reads them back.
	var (
		sinks     []trace.Sink
		collector *trace.Collector
	)
	if tune.Trace.Enabled {
		traceDir := filepath.Join(*dataDir, tune.Trace.Dir)
		writer := tracelog.NewWriter(traceDir, "trace", uint64(tune.Trace.RotateTicks), tune.Trace.FlushEveryRecs)
		defer writer.Close()
		sinks = append(sinks, writer)

		if tune.Trace.IndexSQLite && !*disableDB {
			idx, err := indexdb.Open(filepath.Join(*dataDir, "index", "trace.db"))
			if err != nil {
				logger.Fatalf("open trace index: %v", err)
			}
			defer idx.Close()
			idx.UpsertMeta("seed", fmt.Sprintf("%d", tune.Seed))
			idx.UpsertMeta("agent_count", fmt.Sprintf("%d", tune.AgentCount))
			idx.UpsertMeta("arena_half_width_milli", fmt.Sprintf("%d", tune.ArenaHalfWidthMilli))
			for _, info := range assetInfos(lib) {
				idx.UpsertMeta("asset:"+info.ID, info.Digest)
			}
			sinks = append(sinks, idx)
		}
	}
	if len(sinks) > 0 {
		collector = trace.NewCollector(logger, sinks...)
		w.Driver().SetCollector(collector)
	}

	// Observer endpoint (loopback only, read only).
	var observer *ws.Server
	if *addr != "" {
		observer = ws.NewServer(logger, func() protocol.BootstrapResponse {
			return protocol.BootstrapResponse{
				ProtocolVersion: protocol.Version,
				Tick:            w.Tick(),
				WorldParams: protocol.WorldParams{
					TickRateHz:          tune.TickRateHz,
					Seed:                tune.Seed,
					AgentCount:          tune.AgentCount,
					ArenaHalfWidthMilli: tune.ArenaHalfWidthMilli,
				},
				Assets: assetInfos(lib),
			}
		})
		mux := http.NewServeMux()
		mux.HandleFunc("/observer/v1/bootstrap", observer.BootstrapHandler())
		mux.HandleFunc("/observer/v1/ws", observer.WSHandler())
		srv := &http.Server{Addr: *addr, Handler: mux}
		go func() {
			logger.Printf("observer listening on %s", *addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatalf("observer listen: %v", err)
			}
		}()
		defer srv.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	digestEvery := uint64(tune.DigestEveryTicks)
	step := func() {
		w.Step()
		tick := w.Tick()

		var digest string
		if digestEvery > 0 && tick%digestEvery == 0 {
			digest = w.Digest()
			if collector != nil {
				collector.RecordDigest(tick, digest)
			}
		}
		if observer != nil && observer.Subscribers() > 0 {
			observer.Broadcast(tickMsg(w, tick, digest))
		}
	}

	if *ticks > 0 {
		for i := uint64(0); i < *ticks; i++ {
			if ctx.Err() != nil {
				break
			}
			step()
		}
		logger.Printf("done: tick=%d digest=%s", w.Tick(), w.Digest())
		return
	}

	interval := time.Duration(tune.TickDurationMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second / time.Duration(tune.TickRateHz)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Printf("shutting down: tick=%d digest=%s", w.Tick(), w.Digest())
			return
		case <-ticker.C:
			step()
		}
	}
}

func assetInfos(lib *assets.Library) []protocol.AssetInfo {
	var infos []protocol.AssetInfo
	for id, a := range lib.Blackboards {
		infos = append(infos, protocol.AssetInfo{ID: id, Type: "blackboard", Digest: a.Digest})
	}
	for id, a := range lib.Trees {
		infos = append(infos, protocol.AssetInfo{ID: id, Type: "behavior_tree", Digest: a.Digest})
	}
	for id, a := range lib.Machines {
		infos = append(infos, protocol.AssetInfo{ID: id, Type: "state_machine", Digest: a.Digest})
	}
	for id, a := range lib.Utilities {
		infos = append(infos, protocol.AssetInfo{ID: id, Type: "utility", Digest: a.Digest})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func tickMsg(w *world.World, tick uint64, digest string) protocol.TickMsg {
	msg := protocol.TickMsg{
		Type:            "TICK",
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Digest:          digest,
	}
	for _, e := range w.Entities() {
		snap, ok := w.Driver().Snapshot(e)
		if !ok {
			continue
		}
		pos, _ := w.Position(e)
		msg.Agents = append(msg.Agents, protocol.AgentView{
			Entity:    uint64(e),
			Prototype: w.Prototype(e),
			Pos:       [2]int64{pos.X.Milli(), pos.Y.Milli()},
			Paradigm:  snap.Paradigm,
			State:     snap.State,
			Action:    snap.Action,
			BTStatus:  snap.BTStatus,
			Memory:    snap.Memory,
		})
	}
	return msg
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
