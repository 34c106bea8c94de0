package raft

// handleTick advances this node's logical clock by one tick and fires
// whichever timer is relevant to its current role (spec §4.7 step 1-2 for
// the Tick event kind).
func (n *Node) handleTick() {
	switch n.role {
	case RoleFollower:
		n.follower.electionElapsed++
		if n.follower.electionElapsed >= n.follower.electionTimeout {
			n.becomeCandidate()
		}
	case RoleCandidate:
		n.candidate.electionElapsed++
		if n.candidate.electionElapsed >= n.candidate.electionTimeout {
			n.becomeCandidate() // starts a fresh campaign at a new term
		}
	case RoleLeader:
		n.leader.heartbeatElapsed++
		if n.leader.heartbeatElapsed >= n.cfg.HeartbeatIntervalTicks {
			n.leader.heartbeatElapsed = 0
			n.broadcastHeartbeat()
		}
	}
}

// handleReceive dispatches an inbound envelope: term normalization first,
// then role-specific handling (spec §4.5).
func (n *Node) handleReceive(env Envelope) {
	if env.To != n.cfg.NodeID {
		return
	}
	if !n.normalizeTerm(env.Term, env.From) {
		// Stale term: drop, except bump the sender via a term-carrying
		// reply so it can step down itself (spec §4.5).
		n.replyStaleTerm(env)
		return
	}

	switch msg := env.Message.(type) {
	case Campaign:
		n.handleCampaign(env.From, env.Term, msg)
	case CampaignResponse:
		n.handleCampaignResponse(env.From, env.Term, msg)
	case Append:
		n.handleAppend(env.From, env.Term, msg)
	case AppendResponse:
		n.handleAppendResponse(env.From, env.Term, msg)
	case Heartbeat:
		n.handleHeartbeat(env.From, env.Term, msg)
	case HeartbeatResponse:
		n.handleHeartbeatResponse(env.From, env.Term, msg)
	case ClientRequest:
		n.handleSubmit(msg)
	}
}

// replyStaleTerm answers a message from a lower term with a current-term
// reply carrying just enough information for the stale sender to step
// down, matching spec §4.5 ("drop (except reply with a term-bump
// Append/Heartbeat response, which causes the sender to step down)").
func (n *Node) replyStaleTerm(env Envelope) {
	lastIndex, lastTerm := n.raftLog.Last()
	switch env.Message.(type) {
	case Append:
		n.effects.send(env.From, n.currentTerm, n.cfg.NodeID, AppendResponse{LastIndex: lastIndex, LastTerm: lastTerm, Reject: true})
	case Heartbeat:
		n.effects.send(env.From, n.currentTerm, n.cfg.NodeID, HeartbeatResponse{LastIndex: lastIndex, LastTerm: lastTerm})
	case Campaign:
		n.effects.send(env.From, n.currentTerm, n.cfg.NodeID, CampaignResponse{Vote: false})
	}
}

// handleSubmit processes a client-originated request, which may arrive
// either as an event directly from an embedder or as a ClientRequest
// message forwarded/addressed over the peer channel.
func (n *Node) handleSubmit(req ClientRequest) {
	switch n.role {
	case RoleLeader:
		n.leaderSubmit(req)
	case RoleFollower:
		n.followerForward(req)
	case RoleCandidate:
		// No leader to forward to and no log to append to; the
		// request stalls exactly as spec §4.5 describes for a
		// follower with leader unknown. The caller times out.
	}
}

// handleApplied consumes the application state machine's reply for index,
// advancing applyIndex and resolving any PendingWrite at that index. Only
// one apply is ever in flight at a time (see drainCommitted), so index must
// equal the single outstanding request.
func (n *Node) handleApplied(index Index, reply []byte) {
	if index <= n.applyIndex {
		return // stale/duplicate reply; ignore
	}
	if index != n.applyRequested || index != n.applyIndex+1 {
		// The driver is contractually required to apply in order,
		// exactly once (spec §6). Violating this breaks the
		// exactly-once guarantee the correctness argument depends on.
		n.log.Error("apply reply out of order")
		panic("raft: apply reply delivered out of order")
	}
	n.applyIndex = index

	if n.role == RoleLeader {
		for _, w := range n.leader.pending.drainWritesAt(index) {
			n.effects.respond(w.RequestID, ResponseOK, reply, nil)
		}
	}
}

// drainCommitted emits at most one ApplyRequest effect for the lowest
// committed-but-unapplied index, in order (spec §4.7 step 3). No-op
// entries (leader promotion markers) are applied immediately in place,
// since they carry nothing for the application state machine. Only one
// real apply is ever outstanding at a time: this keeps application
// strictly ordered without the driver needing to pipeline AppliedEvents,
// matching spec §5's "no operation inside the node suspends" — the node
// itself never blocks waiting, it just won't request a second apply until
// the first's reply arrives.
func (n *Node) drainCommitted() {
	if n.applyRequested > n.applyIndex {
		return // an apply is already in flight, awaiting AppliedEvent
	}

	commitIndex := n.raftLog.CommitIndex()
	for n.applyIndex < commitIndex {
		idx := n.applyIndex + 1
		entry, ok := n.raftLog.Get(idx)
		if !ok {
			break
		}
		if entry.IsNoOp() {
			n.applyIndex = idx
			n.applyRequested = idx
			continue
		}
		n.applyRequested = idx
		n.effects.requestApply(idx, entry.Command)
		return
	}
}

// resolvePending resolves any PendingRead now satisfiable given the current
// apply index and read-index tracker (spec §4.7 step 4), dispatching each
// to the application state machine via a ReadRequest effect. PendingWrite
// resolution happens inline in handleApplied, since it is keyed by a single
// log index rather than a quorum condition.
func (n *Node) resolvePending() {
	if n.role != RoleLeader {
		return
	}
	for _, r := range n.leader.pending.drainSatisfiedReads(n.applyIndex, n.leader.readIndex, n.cfg.Peers, n.cfg.clusterSize()) {
		n.effects.requestRead(r.RequestID, r.Payload)
	}
}

// handleReadApplied answers the client for a read once the application
// state machine has produced its reply.
func (n *Node) handleReadApplied(id RequestID, reply []byte) {
	n.effects.respond(id, ResponseOK, reply, nil)
}
