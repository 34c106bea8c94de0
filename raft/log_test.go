package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	term     Term
	votedFor PeerID
	entries  []Entry
}

func newFakeStorage() *fakeStorage { return &fakeStorage{} }

func (s *fakeStorage) SaveTermVote(term Term, votedFor PeerID) error {
	s.term, s.votedFor = term, votedFor
	return nil
}

func (s *fakeStorage) LoadTermVote() (Term, PeerID, error) { return s.term, s.votedFor, nil }

func (s *fakeStorage) AppendEntries(entries []Entry) error {
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *fakeStorage) Truncate(above Index) error {
	if above < 1 {
		s.entries = nil
		return nil
	}
	if pos := int(above - 1); pos < len(s.entries) {
		s.entries = s.entries[:pos]
	}
	return nil
}

func (s *fakeStorage) GetEntry(index Index) (Entry, bool, error) {
	if index < 1 || int(index) > len(s.entries) {
		return Entry{}, false, nil
	}
	return s.entries[index-1], true, nil
}

func (s *fakeStorage) Range(from, to Index) ([]Entry, error) {
	if len(s.entries) == 0 {
		return nil, nil
	}
	last := Index(len(s.entries))
	if to == 0 || to > last {
		to = last
	}
	if from < 1 || from > to {
		return nil, nil
	}
	out := make([]Entry, to-from+1)
	copy(out, s.entries[from-1:to])
	return out, nil
}

func TestLogGenesis(t *testing.T) {
	l, err := NewLog(newFakeStorage())
	require.NoError(t, err)
	require.Equal(t, Index(1), l.LastIndex())
	require.Equal(t, Term(1), l.LastTerm())
	genesis, ok := l.Get(1)
	require.True(t, ok)
	require.Nil(t, genesis.Command)
}

func TestLogAppend(t *testing.T) {
	l, err := NewLog(newFakeStorage())
	require.NoError(t, err)

	idx, err := l.Append(1, []byte("a=1"))
	require.NoError(t, err)
	require.Equal(t, Index(2), idx)
	require.Equal(t, Index(2), l.LastIndex())
}

func TestLogAppendFromRejectsMismatch(t *testing.T) {
	l, err := NewLog(newFakeStorage())
	require.NoError(t, err)

	err = l.AppendFrom(5, 1, []Entry{{Index: 6, Term: 1}})
	require.ErrorIs(t, err, ErrBaseMismatch)
}

func TestLogAppendFromTruncatesDivergentSuffix(t *testing.T) {
	l, err := NewLog(newFakeStorage())
	require.NoError(t, err)

	require.NoError(t, l.AppendFrom(1, 1, []Entry{
		{Index: 2, Term: 1, Command: []byte("a")},
		{Index: 3, Term: 1, Command: []byte("b")},
	}))
	require.Equal(t, Index(3), l.LastIndex())

	// A new leader for term 2 overwrites index 2 onward.
	require.NoError(t, l.AppendFrom(1, 1, []Entry{
		{Index: 2, Term: 2, Command: nil},
	}))
	require.Equal(t, Index(2), l.LastIndex())
	e, ok := l.Get(2)
	require.True(t, ok)
	require.Equal(t, Term(2), e.Term)
}

func TestLogAppendFromIsIdempotent(t *testing.T) {
	l, err := NewLog(newFakeStorage())
	require.NoError(t, err)

	entries := []Entry{{Index: 2, Term: 1, Command: []byte("a")}}
	require.NoError(t, l.AppendFrom(1, 1, entries))
	require.NoError(t, l.AppendFrom(1, 1, entries))
	require.Equal(t, Index(2), l.LastIndex())
}

func TestLogCommitNeverLowers(t *testing.T) {
	l, err := NewLog(newFakeStorage())
	require.NoError(t, err)
	require.NoError(t, l.AppendFrom(1, 1, []Entry{
		{Index: 2, Term: 1, Command: []byte("a")},
		{Index: 3, Term: 1, Command: []byte("b")},
	}))

	l.Commit(3)
	require.Equal(t, Index(3), l.CommitIndex())
	l.Commit(2)
	require.Equal(t, Index(3), l.CommitIndex())
}

func TestLogCommitCapsAtLastIndex(t *testing.T) {
	l, err := NewLog(newFakeStorage())
	require.NoError(t, err)
	l.Commit(100)
	require.Equal(t, l.LastIndex(), l.CommitIndex())
}
