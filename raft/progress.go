package raft

import "sort"

// peerProgress is a leader's view of one follower: Next is the next entry
// to send it, Match is the highest index known replicated. Match < Next
// always holds; Match starts at 0 (nothing known replicated).
type peerProgress struct {
	next  Index
	match Index
}

// progressTracker holds peerProgress for every peer other than self, and
// computes commit advancement. Grounded on townsag-clarity/broker's
// em.nextIndex/em.matchIndex maps, replacing that code's unanimous-ack bug
// (`matches == len(peerIds)`) with the spec §4.4 majority-of-n rule.
type progressTracker struct {
	peers map[PeerID]*peerProgress
}

func newProgressTracker(peers []PeerID, lastIndex Index) *progressTracker {
	pt := &progressTracker{peers: make(map[PeerID]*peerProgress, len(peers))}
	for _, p := range peers {
		pt.peers[p] = &peerProgress{next: lastIndex + 1, match: 0}
	}
	return pt
}

// onAppendAccepted updates next/match after a non-rejecting AppendResponse.
func (pt *progressTracker) onAppendAccepted(peer PeerID, lastIndex Index) {
	p, ok := pt.peers[peer]
	if !ok {
		return
	}
	if lastIndex > p.match {
		p.match = lastIndex
	}
	p.next = p.match + 1
}

// onAppendRejected backs Next off by one (floored at 1) to retry with an
// earlier base index.
func (pt *progressTracker) onAppendRejected(peer PeerID) {
	p, ok := pt.peers[peer]
	if !ok {
		return
	}
	if p.next > 1 {
		p.next--
	}
}

func (pt *progressTracker) nextFor(peer PeerID) (Index, bool) {
	p, ok := pt.peers[peer]
	if !ok {
		return 0, false
	}
	return p.next, true
}

func (pt *progressTracker) matchFor(peer PeerID) (Index, bool) {
	p, ok := pt.peers[peer]
	if !ok {
		return 0, false
	}
	return p.match, true
}

// quorumMatch computes N, the (⌊n/2⌋+1)-th largest value among
// {selfLastIndex} ∪ {progress[p].match for every peer}, where n is cluster
// size (peers + self). This is the candidate new commit index; the caller
// (Node) still must check the entry at N has term == currentTerm before
// committing (spec §4.4's mandatory term restriction).
func (pt *progressTracker) quorumMatch(selfLastIndex Index) Index {
	values := make([]Index, 0, len(pt.peers)+1)
	values = append(values, selfLastIndex)
	for _, p := range pt.peers {
		values = append(values, p.match)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] > values[j] })

	n := len(values)
	quorumRank := n/2 + 1
	return values[quorumRank-1]
}
