package raft

// Status is a read-only snapshot of a Node's externally observable state,
// used for introspection/monitoring (SPEC_FULL §12.4) — not part of the
// distilled spec's data model, but present in every pack example as the
// minimum observability surface a consensus module exposes.
type Status struct {
	ID          PeerID
	Role        RoleKind
	Term        Term
	LeaderID    PeerID // 0 = unknown; a Leader reports its own id, a Candidate always 0
	CommitIndex Index
	ApplyIndex  Index
	LastIndex   Index
}

// Status returns a snapshot of this node's current state.
func (n *Node) Status() Status {
	s := Status{
		ID:          n.cfg.NodeID,
		Role:        n.role,
		Term:        n.currentTerm,
		CommitIndex: n.raftLog.CommitIndex(),
		ApplyIndex:  n.applyIndex,
		LastIndex:   n.raftLog.LastIndex(),
	}
	switch n.role {
	case RoleFollower:
		s.LeaderID = n.follower.leader
	case RoleLeader:
		s.LeaderID = n.cfg.NodeID
	}
	return s
}
