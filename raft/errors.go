package raft

import "errors"

// ErrBaseMismatch is returned by Log.AppendFrom when the follower's log does
// not contain an entry at the given base index/term; the caller rejects the
// Append message that triggered the call.
var ErrBaseMismatch = errors.New("raft: base entry mismatch")

// ErrTermStale is the protocol-internal reason a message from a lower term
// is dropped. It never reaches an embedder; Step never returns it.
var ErrTermStale = errors.New("raft: message term is stale")

// ErrAbort is the client-visible error delivered to a PendingWrite or
// PendingRead when its leader steps down before the request completes.
var ErrAbort = errors.New("raft: aborted, lost leadership")
