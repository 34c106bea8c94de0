package storage

import (
	"bytes"
	"encoding/gob"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/CrystalAnalyst/raftcore/raft"
)

// fileState is the gob-encoded durable blob, grounded on
// Markz2z-MIT6.824/src/raft/raft.go's persister (which gob-encodes the
// entire raft state on every persist() call rather than appending
// incrementally). This core follows that same whole-state-rewrite shape,
// trading per-call I/O cost for a trivially correct durability story.
type fileState struct {
	Term     raft.Term
	VotedFor raft.PeerID
	Entries  []raft.Entry
}

// FileStorage is a durable raft.Storage that gob-encodes its entire state
// to a single file on every mutating call.
type FileStorage struct {
	mu   sync.Mutex
	path string
	st   fileState
}

// OpenFileStorage loads path if it exists, or starts from empty state.
func OpenFileStorage(path string) (*FileStorage, error) {
	fs := &FileStorage{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, errors.Wrapf(err, "raft/storage: reading %s", path)
	}
	if len(data) == 0 {
		return fs, nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&fs.st); err != nil {
		return nil, errors.Wrapf(err, "raft/storage: decoding %s", path)
	}
	return fs, nil
}

func (fs *FileStorage) persistLocked() error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(fs.st); err != nil {
		return errors.Wrap(err, "raft/storage: encoding state")
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return errors.Wrapf(err, "raft/storage: writing %s", tmp)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return errors.Wrapf(err, "raft/storage: renaming %s to %s", tmp, fs.path)
	}
	return nil
}

func (fs *FileStorage) SaveTermVote(term raft.Term, votedFor raft.PeerID) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.st.Term = term
	fs.st.VotedFor = votedFor
	return fs.persistLocked()
}

func (fs *FileStorage) LoadTermVote() (raft.Term, raft.PeerID, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.st.Term, fs.st.VotedFor, nil
}

func (fs *FileStorage) AppendEntries(entries []raft.Entry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.st.Entries = append(fs.st.Entries, entries...)
	return fs.persistLocked()
}

func (fs *FileStorage) Truncate(aboveIndex raft.Index) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if aboveIndex < 1 {
		fs.st.Entries = nil
	} else if pos := int(aboveIndex - 1); pos < len(fs.st.Entries) {
		fs.st.Entries = fs.st.Entries[:pos]
	}
	return fs.persistLocked()
}

func (fs *FileStorage) GetEntry(index raft.Index) (raft.Entry, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if index < 1 || int(index) > len(fs.st.Entries) {
		return raft.Entry{}, false, nil
	}
	return fs.st.Entries[index-1], true, nil
}

func (fs *FileStorage) Range(from, to raft.Index) ([]raft.Entry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.st.Entries) == 0 {
		return nil, nil
	}
	last := raft.Index(len(fs.st.Entries))
	if to == 0 || to > last {
		to = last
	}
	if from < 1 || from > to {
		return nil, nil
	}
	out := make([]raft.Entry, to-from+1)
	copy(out, fs.st.Entries[from-1:to])
	return out, nil
}

var _ raft.Storage = (*FileStorage)(nil)
