package raft

// Open question (spec §9): this core performs no request deduplication. A
// client that re-issues a write whose earlier attempt actually committed,
// but whose ClientResponse was lost (e.g. to a partition healing after the
// fact), can observe a double-apply of that command against the
// application state machine. The spec's source traces do not demonstrate a
// deduplication mechanism, and none is invented here: callers that need
// exactly-once semantics under client retry must make their commands
// idempotent or deduplicate at the application-state-machine layer using
// their own request-id bookkeeping.
