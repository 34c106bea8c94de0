package raft

import "go.uber.org/zap"

// randomElectionTimeout returns a value uniform in
// [ElectionTimeoutTicks, 2*ElectionTimeoutTicks).
func (n *Node) randomElectionTimeout() int {
	min := n.cfg.ElectionTimeoutTicks
	return min + n.rng.Intn(min)
}

// becomeFollower transitions to Follower(leader), destroying any
// candidate/leader-only state. If term > currentTerm, the term is bumped
// and the vote cleared and persisted (spec §4.5).
func (n *Node) becomeFollower(term Term, leader PeerID) {
	if term > n.currentTerm {
		n.currentTerm = term
		n.votedFor = 0
	}
	if n.leader != nil {
		n.abortPending(n.leader.pending)
	}
	n.role = RoleFollower
	n.candidate = nil
	n.leader = nil
	n.follower = &followerState{
		leader:          leader,
		electionElapsed: 0,
		electionTimeout: n.randomElectionTimeout(),
	}
	n.saveTermVote()
	n.log.Info("became follower", zap.Uint64("node", uint64(n.cfg.NodeID)), zap.Uint64("term", uint64(term)))
}

// becomeCandidate starts a new election: term+1, votes for self, persists,
// broadcasts Campaign to all peers.
func (n *Node) becomeCandidate() {
	n.currentTerm++
	n.votedFor = n.cfg.NodeID
	n.role = RoleCandidate
	n.follower = nil
	n.leader = nil
	n.candidate = &candidateState{
		votesReceived:   map[PeerID]bool{n.cfg.NodeID: true},
		electionElapsed: 0,
		electionTimeout: n.randomElectionTimeout(),
	}
	n.saveTermVote()

	lastIndex, lastTerm := n.raftLog.Last()
	for _, p := range n.cfg.Peers {
		n.effects.send(p, n.currentTerm, n.cfg.NodeID, Campaign{LastIndex: lastIndex, LastTerm: lastTerm})
	}
	n.log.Info("became candidate", zap.Uint64("node", uint64(n.cfg.NodeID)), zap.Uint64("term", uint64(n.currentTerm)))
}

// becomeLeader promotes a candidate that has reached quorum. Appends a
// no-op entry, initializes progress/read-index/pending state, and
// broadcasts Append+Heartbeat immediately.
func (n *Node) becomeLeader() {
	if n.role == RoleLeader {
		// Two leaders in one term is a safety violation (spec §4.5,
		// §7, §8): this can only happen if the caller drove the same
		// node to becomeLeader twice in a term, which the dispatch
		// logic below never does. Guard it explicitly anyway.
		n.log.Error("multiple leaders in term", zap.Uint64("term", uint64(n.currentTerm)))
		panic("raft: multiple leaders in term")
	}

	n.role = RoleLeader
	n.candidate = nil
	n.follower = nil
	n.leader = &leaderState{
		readIndex: newReadIndexTracker(),
		pending:   newPendingTable(),
	}

	noopIndex, err := n.raftLog.Append(n.currentTerm, nil)
	if err != nil {
		n.log.Error("appending no-op entry failed", zap.Error(err))
		panic(err)
	}
	n.leader.progress = newProgressTracker(n.cfg.Peers, noopIndex-1)

	n.log.Info("became leader", zap.Uint64("node", uint64(n.cfg.NodeID)), zap.Uint64("term", uint64(n.currentTerm)))

	n.broadcastAppend()
	n.broadcastHeartbeat()
}

// abortPending flushes every entry in pending (if non-nil) with ErrAbort.
// Called on step-down (spec §4.5 "Step-down": "Every PendingWrite and
// PendingRead on this leader is responded with Error::Abort").
func (n *Node) abortPending(pending *pendingTable) {
	if pending == nil {
		return
	}
	for _, id := range pending.flushAbort() {
		n.effects.respond(id, ResponseError, nil, ErrAbort)
	}
}
