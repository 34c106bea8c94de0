// Command raftd is a demo process wiring a raft.Node to durable file
// storage, the demo KV state machine, and an HTTP+WebSocket front end. It
// is the teacher's two Serve() entry points (appserver.Serve,
// broker.Serve) collapsed into one process, per SPEC_FULL §12.3.
package main

import (
	"flag"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/CrystalAnalyst/raftcore/raft"
	"github.com/CrystalAnalyst/raftcore/sim"
	"github.com/CrystalAnalyst/raftcore/statemachine"
	"github.com/CrystalAnalyst/raftcore/storage"
	"github.com/CrystalAnalyst/raftcore/transport"
)

func main() {
	var (
		nodeID       = flag.Uint64("id", 0, "this node's id (> 0)")
		peersFlag    = flag.String("peers", "", "comma-separated peer ids, excluding self")
		dataDir      = flag.String("data", "./data", "directory for the durable log/term/vote file")
		httpAddr     = flag.String("http", ":8080", "HTTP listen address")
		electionMin  = flag.Int("election-timeout-ticks", 10, "minimum election timeout, in ticks")
		heartbeat    = flag.Int("heartbeat-interval-ticks", 1, "leader heartbeat cadence, in ticks")
		tickInterval = flag.Duration("tick-interval", 100*time.Millisecond, "wall-clock duration of one logical tick")
		requestTimeo = flag.Duration("request-timeout", 5*time.Second, "how long an HTTP request waits for consensus")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	self := raft.PeerID(*nodeID)
	peers := parsePeers(*peersFlag)

	cfg := raft.Config{
		NodeID:                 self,
		Peers:                  peers,
		ElectionTimeoutTicks:   *electionMin,
		HeartbeatIntervalTicks: *heartbeat,
	}

	storePath := filepath.Join(*dataDir, "node-"+strconv.FormatUint(uint64(self), 10)+".gob")
	store, err := storage.OpenFileStorage(storePath)
	if err != nil {
		logger.Fatal("opening storage", zap.Error(err))
	}

	node, err := raft.New(cfg, store, logger.With(zap.Uint64("node", uint64(self))))
	if err != nil {
		logger.Fatal("constructing node", zap.Error(err))
	}

	kv := statemachine.NewKVStateMachine()
	net := sim.New()
	net.Add(self, node, kv.Apply, 0)

	go func() {
		ticker := time.NewTicker(*tickInterval)
		defer ticker.Stop()
		for range ticker.C {
			net.Tick()
		}
	}()

	srv := transport.NewServer(self, net, *requestTimeo, logger)
	logger.Info("raftd listening", zap.String("addr", *httpAddr), zap.Uint64("node", uint64(self)))
	if err := http.ListenAndServe(*httpAddr, srv.Handler()); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}

func parsePeers(s string) []raft.PeerID {
	if s == "" {
		return nil
	}
	var out []raft.PeerID
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, raft.PeerID(id))
	}
	return out
}
