package raft

// Log is an ordered, durable-backed entry store. Index 1 is reserved for
// the implicit genesis entry (index=1, term=1, command=nil) written at
// construction; real entries start at index 2. Invariants L1-L5 of spec §3
// are maintained by every method here.
type Log struct {
	store Storage

	// entries[0] is the genesis entry at index 1; entries[i] is at index
	// i+1. This mirrors the teacher's append-only slice-by-index layout
	// (townsag-clarity/broker/replication.go's rm.log []LogEntry), indexed
	// from 1 instead of 0 to match spec §3's reserved genesis position.
	entries []Entry

	commitIndex Index
}

// NewLog constructs a Log backed by store, restoring any previously
// persisted entries (or writing the genesis entry if the store is empty).
func NewLog(store Storage) (*Log, error) {
	l := &Log{store: store}

	last, err := store.Range(1, 0)
	if err != nil {
		return nil, err
	}
	if len(last) == 0 {
		genesis := Entry{Index: 1, Term: 1, Command: nil}
		if err := store.AppendEntries([]Entry{genesis}); err != nil {
			return nil, err
		}
		l.entries = []Entry{genesis}
		return l, nil
	}

	l.entries = last
	return l, nil
}

// LastIndex returns the highest index present in the log.
func (l *Log) LastIndex() Index {
	return l.entries[len(l.entries)-1].Index
}

// LastTerm returns the term of the last entry.
func (l *Log) LastTerm() Term {
	return l.entries[len(l.entries)-1].Term
}

// Last returns (lastIndex, lastTerm) together, the form used for
// up-to-date comparisons.
func (l *Log) Last() (Index, Term) {
	e := l.entries[len(l.entries)-1]
	return e.Index, e.Term
}

// CommitIndex returns the current commit index.
func (l *Log) CommitIndex() Index {
	return l.commitIndex
}

func (l *Log) positionOf(index Index) (int, bool) {
	if index < 1 || index > l.LastIndex() {
		return 0, false
	}
	return int(index - 1), true
}

// Get returns the entry at index.
func (l *Log) Get(index Index) (Entry, bool) {
	pos, ok := l.positionOf(index)
	if !ok {
		return Entry{}, false
	}
	return l.entries[pos], true
}

// TermAt returns the term of the entry at index, if present.
func (l *Log) TermAt(index Index) (Term, bool) {
	e, ok := l.Get(index)
	if !ok {
		return 0, false
	}
	return e.Term, true
}

// Range returns entries in [from, to] inclusive. to=0 means "through
// LastIndex".
func (l *Log) Range(from, to Index) []Entry {
	if to == 0 || to > l.LastIndex() {
		to = l.LastIndex()
	}
	if from < 1 || from > to {
		return nil
	}
	startPos, _ := l.positionOf(from)
	endPos, _ := l.positionOf(to)
	out := make([]Entry, endPos-startPos+1)
	copy(out, l.entries[startPos:endPos+1])
	return out
}

// Append is leader-only: it appends a single entry at term for command and
// returns its new index. The entry is durable before Append returns.
func (l *Log) Append(term Term, command []byte) (Index, error) {
	next := l.LastIndex() + 1
	entry := Entry{Index: next, Term: term, Command: command}
	if err := l.store.AppendEntries([]Entry{entry}); err != nil {
		return 0, err
	}
	l.entries = append(l.entries, entry)
	return next, nil
}

// AppendFrom is follower-side: base must name an entry already present in
// the log (ErrBaseMismatch if absent or term differs); baseIndex 0 always
// matches. Entries that already match by term are kept; from the first
// diverging index above baseIndex the local suffix is truncated and the
// remaining entries are written in order. This operation is durable
// (truncation included) before it returns.
func (l *Log) AppendFrom(baseIndex Index, baseTerm Term, entries []Entry) error {
	if baseIndex != 0 {
		term, ok := l.TermAt(baseIndex)
		if !ok || term != baseTerm {
			return ErrBaseMismatch
		}
	}

	// Find the first index, if any, where local and incoming entries
	// diverge; only truncate+rewrite from that point (log-matching-safe
	// idempotent re-append of an already-accepted Append message).
	truncateAt := baseIndex + 1
	newIdx := 0
	for ; newIdx < len(entries); newIdx++ {
		idx := baseIndex + 1 + Index(newIdx)
		existing, ok := l.Get(idx)
		if !ok {
			truncateAt = idx
			break
		}
		if existing.Term != entries[newIdx].Term {
			truncateAt = idx
			break
		}
		truncateAt = idx + 1
	}
	if newIdx == len(entries) {
		// Every incoming entry already matches; nothing to do.
		return nil
	}

	if truncateAt <= l.LastIndex() {
		if err := l.store.Truncate(truncateAt); err != nil {
			return err
		}
		if pos, ok := l.positionOf(truncateAt); ok {
			l.entries = l.entries[:pos]
		}
	}

	rest := entries[newIdx:]
	if len(rest) > 0 {
		if err := l.store.AppendEntries(rest); err != nil {
			return err
		}
		l.entries = append(l.entries, rest...)
	}
	return nil
}

// Commit raises the commit index to min(index, LastIndex), never lowering
// it (L3, L4).
func (l *Log) Commit(index Index) {
	if index > l.LastIndex() {
		index = l.LastIndex()
	}
	if index > l.commitIndex {
		l.commitIndex = index
	}
}
