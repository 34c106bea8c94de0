package raft

// broadcastAppend sends an Append to every peer, each tailored to that
// peer's current Next (spec §4.4/§4.5 Leader).
func (n *Node) broadcastAppend() {
	for _, p := range n.cfg.Peers {
		n.sendAppendTo(p)
	}
}

func (n *Node) sendAppendTo(peer PeerID) {
	next, ok := n.leader.progress.nextFor(peer)
	if !ok {
		return
	}
	baseIndex := next - 1
	baseTerm, _ := n.raftLog.TermAt(baseIndex)
	entries := n.raftLog.Range(next, 0)
	n.effects.send(peer, n.currentTerm, n.cfg.NodeID, Append{BaseIndex: baseIndex, BaseTerm: baseTerm, Entries: entries})
}

// broadcastHeartbeat sends a Heartbeat to every peer carrying the current
// commit index/term and read-index sequence number.
func (n *Node) broadcastHeartbeat() {
	commitIndex := n.raftLog.CommitIndex()
	commitTerm, _ := n.raftLog.TermAt(commitIndex)
	seq := n.leader.readIndex.seq
	for _, p := range n.cfg.Peers {
		n.effects.send(p, n.currentTerm, n.cfg.NodeID, Heartbeat{CommitIndex: commitIndex, CommitTerm: commitTerm, ReadSeq: seq})
	}
}

// leaderSubmit services a client write or read while this node is Leader
// (spec §4.5 Leader "On ClientRequest").
func (n *Node) leaderSubmit(req ClientRequest) {
	switch req.Kind {
	case RequestWrite:
		n.leaderSubmitWrite(req)
	case RequestRead:
		n.leaderSubmitRead(req)
	}
}

func (n *Node) leaderSubmitWrite(req ClientRequest) {
	index, err := n.raftLog.Append(n.currentTerm, req.Payload)
	if err != nil {
		n.effects.respond(req.ID, ResponseError, nil, err)
		return
	}
	n.leader.pending.addWrite(PendingWrite{RequestID: req.ID, LogIndex: index})
	n.broadcastAppend()
}

func (n *Node) leaderSubmitRead(req ClientRequest) {
	seq := n.leader.readIndex.next()
	n.leader.pending.addRead(PendingRead{
		RequestID:     req.ID,
		ReadSeq:       seq,
		AtCommitIndex: n.raftLog.CommitIndex(),
		Payload:       req.Payload,
	})
	n.broadcastHeartbeat()
}

// handleAppendResponse updates progress, advances commit and re-sends an
// Append if the follower rejected (spec §4.4 Progress tracker).
func (n *Node) handleAppendResponse(from PeerID, term Term, msg AppendResponse) {
	if n.role != RoleLeader {
		return
	}
	if msg.Reject {
		n.leader.progress.onAppendRejected(from)
		n.sendAppendTo(from)
		return
	}
	n.leader.progress.onAppendAccepted(from, msg.LastIndex)
	n.maybeAdvanceCommit()

	if next, ok := n.leader.progress.nextFor(from); ok && next <= n.raftLog.LastIndex() {
		// The follower is still behind; keep replicating without
		// waiting for the next heartbeat tick.
		n.sendAppendTo(from)
	}
}

// maybeAdvanceCommit recomputes the quorum match index and advances
// commitIndex only if the entry there belongs to the current term (spec
// §4.4's mandatory term restriction, preserving safety across leader
// changes).
func (n *Node) maybeAdvanceCommit() {
	candidate := n.leader.progress.quorumMatch(n.raftLog.LastIndex())
	if candidate <= n.raftLog.CommitIndex() {
		return
	}
	term, ok := n.raftLog.TermAt(candidate)
	if !ok || term != n.currentTerm {
		return
	}
	n.raftLog.Commit(candidate)
}

// handleHeartbeatResponse records the echoed read sequence for this peer
// and resolves any reads it now satisfies (resolution itself happens in
// resolvePending, run once per Step after dispatch).
func (n *Node) handleHeartbeatResponse(from PeerID, term Term, msg HeartbeatResponse) {
	if n.role != RoleLeader {
		return
	}
	n.leader.readIndex.onHeartbeatResponse(from, msg.ReadSeq)
}
