package raft

import "go.uber.org/zap"

// handleCampaign processes a vote request regardless of the receiver's
// current role (term normalization has already run). Grants iff the
// receiver has not voted this term (or already voted for the candidate)
// and the candidate's log is at least as up-to-date as the receiver's
// (spec §4.5 Follower "On Campaign").
func (n *Node) handleCampaign(from PeerID, term Term, msg Campaign) {
	lastIndex, lastTerm := n.raftLog.Last()

	alreadyVotedOK := n.votedFor == 0 || n.votedFor == from
	candidateUpToDate := !moreUpToDate(lastTerm, lastIndex, msg.LastTerm, msg.LastIndex)

	grant := alreadyVotedOK && candidateUpToDate
	if grant {
		n.votedFor = from
		n.saveTermVote()
	}
	n.effects.send(from, n.currentTerm, n.cfg.NodeID, CampaignResponse{Vote: grant})
}

// enterFollowerOf makes this node a Follower with leader known to be from,
// at the current term, without disturbing an already-Follower node's
// election timer state beyond resetting it (spec: "reset election timer").
func (n *Node) enterFollowerOf(from PeerID) {
	if n.role != RoleFollower {
		n.becomeFollower(n.currentTerm, from)
		return
	}
	n.follower.leader = from
	n.follower.electionElapsed = 0
}

// assertNoOtherLeader panics if this node already considers itself Leader,
// or already has a different known leader, in the current term, and now
// observes another peer acting as leader in that same term (spec §4.5,
// §7, §8: "two leaders in one term is fatal").
func (n *Node) assertNoOtherLeader(from PeerID) {
	var conflict bool
	switch {
	case n.role == RoleLeader && from != n.cfg.NodeID:
		conflict = true
	case n.role == RoleFollower && n.follower.leader != 0 && n.follower.leader != from:
		conflict = true
	}
	if conflict {
		n.log.Error("saw other leader in term",
			zap.Uint64("term", uint64(n.currentTerm)),
			zap.Uint64("other", uint64(from)),
			zap.Uint64("self", uint64(n.cfg.NodeID)))
		panic("raft: multiple leaders in term")
	}
}

// handleAppend processes an Append, the replication RPC, from whichever
// role the receiver is currently in.
func (n *Node) handleAppend(from PeerID, term Term, msg Append) {
	n.assertNoOtherLeader(from)
	n.enterFollowerOf(from)

	lastIndex, lastTerm := n.raftLog.Last()

	if err := n.raftLog.AppendFrom(msg.BaseIndex, msg.BaseTerm, msg.Entries); err != nil {
		n.effects.send(from, n.currentTerm, n.cfg.NodeID, AppendResponse{LastIndex: lastIndex, LastTerm: lastTerm, Reject: true})
		return
	}

	newLast, newLastTerm := n.raftLog.Last()
	n.effects.send(from, n.currentTerm, n.cfg.NodeID, AppendResponse{LastIndex: newLast, LastTerm: newLastTerm, Reject: false})
}

// handleHeartbeat processes a Heartbeat, advancing commitIndex only when
// the entry at the claimed commit index matches the claimed term (spec
// §4.5 Follower "On Heartbeat").
func (n *Node) handleHeartbeat(from PeerID, term Term, msg Heartbeat) {
	n.assertNoOtherLeader(from)
	n.enterFollowerOf(from)

	if t, ok := n.raftLog.TermAt(msg.CommitIndex); ok && t == msg.CommitTerm {
		n.raftLog.Commit(msg.CommitIndex)
	}

	lastIndex, lastTerm := n.raftLog.Last()
	n.effects.send(from, n.currentTerm, n.cfg.NodeID, HeartbeatResponse{LastIndex: lastIndex, LastTerm: lastTerm, ReadSeq: msg.ReadSeq})
}

// followerForward handles a client request arriving at a non-leader node:
// forward to the known leader by re-addressing the same ClientRequest
// message, or drop it silently if no leader is known (spec §4.5: "the
// request is not buffered — it stalls until a timeout at the caller").
func (n *Node) followerForward(req ClientRequest) {
	if n.follower.leader == 0 {
		return
	}
	n.effects.send(n.follower.leader, n.currentTerm, n.cfg.NodeID, req)
}
