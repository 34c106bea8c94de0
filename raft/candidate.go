package raft

// handleCampaignResponse counts a vote and promotes to Leader on reaching
// quorum. Responses received outside Candidate role (stale, or already
// resolved this election) are ignored.
func (n *Node) handleCampaignResponse(from PeerID, term Term, msg CampaignResponse) {
	if n.role != RoleCandidate {
		return
	}
	if !msg.Vote {
		return
	}
	n.candidate.votesReceived[from] = true
	if len(n.candidate.votesReceived) >= n.cfg.quorum() {
		n.becomeLeader()
	}
}
