package raft

import (
	"math/rand"

	"go.uber.org/zap"
)

// Node is one Raft consensus core, driven entirely through Step. It has no
// network or disk I/O of its own beyond the Storage adapter: ticks, peer
// messages, client requests and apply replies go in; outbound peer
// messages, client responses and apply requests come out. Grounded on
// townsag-clarity/broker/broker_server.go's BrokerServer, restructured from
// a goroutine/channel server into the single-threaded Step model spec §2/§5
// require; logging grounded on that file's log.Printf("%s %d ...", state,
// id, ...) call sites, replaced with zap structured fields per SPEC_FULL
// §10.1.
type Node struct {
	cfg Config
	log *zap.Logger

	raftLog     *Log
	currentTerm Term
	votedFor    PeerID // 0 = none this term

	role      RoleKind
	follower  *followerState
	candidate *candidateState
	leader    *leaderState

	applyIndex     Index // highest index the application has confirmed applying
	applyRequested Index // highest index for which an ApplyRequest has been emitted

	rng *rand.Rand

	effects *Effects
}

// New constructs a Node from cfg and storage, restoring persisted term/vote
// and log state. logger may be nil, in which case logging is a no-op.
func New(cfg Config, storage Storage, logger *zap.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	raftLog, err := NewLog(storage)
	if err != nil {
		return nil, err
	}

	term, votedFor, err := storage.LoadTermVote()
	if err != nil {
		return nil, err
	}
	if term == 0 {
		term = 1
	}

	seed := cfg.RandSeed
	if seed == 0 {
		seed = int64(cfg.NodeID)*2654435761 + 1
	}

	n := &Node{
		cfg:         cfg,
		log:         logger,
		raftLog:     raftLog,
		currentTerm: term,
		votedFor:    votedFor,
		rng:         rand.New(rand.NewSource(seed)),
	}
	n.becomeFollower(term, 0)
	return n, nil
}

// ID returns this node's identity.
func (n *Node) ID() PeerID { return n.cfg.NodeID }

// Step consumes one event and returns the batch of effects it produced.
// This is the sole entry point for driving the node; no step may overlap
// another on the same Node (spec §5).
func (n *Node) Step(ev Event) Effects {
	n.effects = &Effects{}

	switch e := ev.(type) {
	case TickEvent:
		n.handleTick()
	case ReceiveEvent:
		n.handleReceive(e.Envelope)
	case SubmitEvent:
		n.handleSubmit(e.Request)
	case AppliedEvent:
		n.handleApplied(e.Index, e.Reply)
	case ReadAppliedEvent:
		n.handleReadApplied(e.RequestID, e.Reply)
	}

	n.drainCommitted()
	n.resolvePending()

	out := *n.effects
	n.effects = nil
	return out
}

// saveTermVote persists the current term/vote via the log's storage
// adapter. Every call site that mutates currentTerm or votedFor must call
// this before any outbound message referencing the new term is sent.
func (n *Node) saveTermVote() {
	if err := n.raftLog.store.SaveTermVote(n.currentTerm, n.votedFor); err != nil {
		// Storage is expected to be fast and reliable (spec §4.2); a
		// failure here means durable state is now inconsistent with
		// in-memory state, which the correctness argument depends on.
		n.log.Error("persisting term/vote failed", zap.Error(err))
		panic(err)
	}
}

// normalizeTerm applies spec §4.5's term normalization to every received
// message before dispatch. Returns false if the message must be dropped
// (stale term).
func (n *Node) normalizeTerm(msgTerm Term, from PeerID) bool {
	if msgTerm < n.currentTerm {
		return false
	}
	if msgTerm > n.currentTerm {
		n.stepDown(msgTerm)
	}
	return true
}

// stepDown transitions to Follower(leader=unknown) at term, aborting any
// leader/candidate-only state. Safe to call from any role.
func (n *Node) stepDown(term Term) {
	n.becomeFollower(term, 0)
}
