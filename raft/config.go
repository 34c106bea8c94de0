package raft

import "fmt"

// Config enumerates the options a Node recognizes (spec §6).
type Config struct {
	// NodeID identifies this node; must be > 0.
	NodeID PeerID

	// Peers is the set of other nodes in the cluster (self excluded).
	Peers []PeerID

	// ElectionTimeoutTicks is the minimum election timeout, in ticks. The
	// actual timeout used for any given election is uniform random in
	// [ElectionTimeoutTicks, 2*ElectionTimeoutTicks).
	ElectionTimeoutTicks int

	// HeartbeatIntervalTicks is the leader's heartbeat cadence, in ticks.
	// Must be much smaller than ElectionTimeoutTicks.
	HeartbeatIntervalTicks int

	// RandSeed seeds this node's election-timeout jitter source. Tests
	// that need deterministic timeouts set this explicitly; zero means
	// "derive a seed from NodeID," which is deterministic but distinct
	// per node.
	RandSeed int64
}

// Validate checks the configuration recognized by spec §6.
func (c Config) Validate() error {
	if c.NodeID == 0 {
		return fmt.Errorf("raft: NodeID must be > 0")
	}
	for _, p := range c.Peers {
		if p == c.NodeID {
			return fmt.Errorf("raft: Peers must not include self (NodeID %d)", c.NodeID)
		}
	}
	if c.ElectionTimeoutTicks <= 0 {
		return fmt.Errorf("raft: ElectionTimeoutTicks must be > 0")
	}
	if c.HeartbeatIntervalTicks <= 0 {
		return fmt.Errorf("raft: HeartbeatIntervalTicks must be > 0")
	}
	if c.HeartbeatIntervalTicks*4 > c.ElectionTimeoutTicks {
		return fmt.Errorf("raft: HeartbeatIntervalTicks (%d) must be much smaller than ElectionTimeoutTicks (%d)",
			c.HeartbeatIntervalTicks, c.ElectionTimeoutTicks)
	}
	return nil
}

// clusterSize is |Peers|+1 (self included).
func (c Config) clusterSize() int {
	return len(c.Peers) + 1
}

// quorum is floor(n/2)+1.
func (c Config) quorum() int {
	return c.clusterSize()/2 + 1
}
