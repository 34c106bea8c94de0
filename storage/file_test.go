package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CrystalAnalyst/raftcore/raft"
)

func TestFileStorageOpenMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.gob")
	fs, err := OpenFileStorage(path)
	require.NoError(t, err)
	term, votedFor, err := fs.LoadTermVote()
	require.NoError(t, err)
	require.Equal(t, raft.Term(0), term)
	require.Equal(t, raft.PeerID(0), votedFor)
}

func TestFileStoragePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.gob")

	fs, err := OpenFileStorage(path)
	require.NoError(t, err)
	require.NoError(t, fs.SaveTermVote(4, 2))
	require.NoError(t, fs.AppendEntries([]raft.Entry{
		{Index: 1, Term: 1, Command: nil},
		{Index: 2, Term: 4, Command: []byte("a=1")},
	}))

	reopened, err := OpenFileStorage(path)
	require.NoError(t, err)

	term, votedFor, err := reopened.LoadTermVote()
	require.NoError(t, err)
	require.Equal(t, raft.Term(4), term)
	require.Equal(t, raft.PeerID(2), votedFor)

	e, ok, err := reopened.GetEntry(2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("a=1"), e.Command)
}

func TestFileStorageTruncateThenAppendPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.gob")

	fs, err := OpenFileStorage(path)
	require.NoError(t, err)
	require.NoError(t, fs.AppendEntries([]raft.Entry{
		{Index: 1, Term: 1}, {Index: 2, Term: 1}, {Index: 3, Term: 1},
	}))
	require.NoError(t, fs.Truncate(2))
	require.NoError(t, fs.AppendEntries([]raft.Entry{{Index: 2, Term: 2}}))

	reopened, err := OpenFileStorage(path)
	require.NoError(t, err)
	entries, err := reopened.Range(1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, raft.Term(2), entries[1].Term)
}
