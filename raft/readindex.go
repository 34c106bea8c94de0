package raft

// readIndexTracker implements linearizable reads via heartbeat-piggybacked
// sequence numbers (spec §4.5/§9's "read-index via sequence numbers" design
// note). No pack example implements this path; it is built directly from
// the spec's design notes rather than adapted from a teacher line.
type readIndexTracker struct {
	seq      uint64
	acked    map[PeerID]uint64 // highest ReadSeq echoed by each peer since we became leader
}

func newReadIndexTracker() *readIndexTracker {
	return &readIndexTracker{acked: make(map[PeerID]uint64)}
}

// next increments and returns the sequence number for a new read.
func (r *readIndexTracker) next() uint64 {
	r.seq++
	return r.seq
}

// onHeartbeatResponse records the highest sequence a peer has echoed.
func (r *readIndexTracker) onHeartbeatResponse(peer PeerID, echoed uint64) {
	if echoed > r.acked[peer] {
		r.acked[peer] = echoed
	}
}

// quorumAcked reports whether a quorum (including self, which trivially
// acks its own seq) has echoed at least seq.
func (r *readIndexTracker) quorumAcked(seq uint64, peers []PeerID, clusterSize int) bool {
	count := 1 // self
	for _, p := range peers {
		if r.acked[p] >= seq {
			count++
		}
	}
	return count >= clusterSize/2+1
}
