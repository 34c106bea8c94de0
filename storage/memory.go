// Package storage provides concrete implementations of raft.Storage: an
// in-memory store for tests and a gob-backed durable file store, grounded
// on Markz2z-MIT6.824/src/raft/raft.go's persister pattern (SPEC_FULL §12.2).
package storage

import (
	"sync"

	"github.com/CrystalAnalyst/raftcore/raft"
)

// MemoryStorage is a non-durable raft.Storage backed by a plain slice,
// grounded on townsag-clarity/broker/replication.go's rm.log []LogEntry.
// Suitable for tests and for embedders that accept losing state on
// restart.
type MemoryStorage struct {
	mu       sync.Mutex
	term     raft.Term
	votedFor raft.PeerID
	entries  []raft.Entry // entries[i] is at index i+1
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) SaveTermVote(term raft.Term, votedFor raft.PeerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term = term
	s.votedFor = votedFor
	return nil
}

func (s *MemoryStorage) LoadTermVote() (raft.Term, raft.PeerID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term, s.votedFor, nil
}

func (s *MemoryStorage) AppendEntries(entries []raft.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *MemoryStorage) Truncate(aboveIndex raft.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if aboveIndex < 1 {
		s.entries = nil
		return nil
	}
	pos := int(aboveIndex - 1)
	if pos < len(s.entries) {
		s.entries = s.entries[:pos]
	}
	return nil
}

func (s *MemoryStorage) GetEntry(index raft.Index) (raft.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 1 || int(index) > len(s.entries) {
		return raft.Entry{}, false, nil
	}
	return s.entries[index-1], true, nil
}

func (s *MemoryStorage) Range(from, to raft.Index) ([]raft.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	last := raft.Index(len(s.entries))
	if to == 0 || to > last {
		to = last
	}
	if from < 1 || from > to {
		return nil, nil
	}
	out := make([]raft.Entry, to-from+1)
	copy(out, s.entries[from-1:to])
	return out, nil
}

var _ raft.Storage = (*MemoryStorage)(nil)
