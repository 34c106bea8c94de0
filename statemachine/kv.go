// Package statemachine provides a small deterministic application state
// machine to exercise a raft.Node end to end (SPEC_FULL §12.2a). The core
// itself treats apply() as an opaque collaborator; this package is the demo
// collaborator, grounded on srkaysh-Key-Value-store/src/kvraft/common.go's
// Get/Put/Append command encoding.
package statemachine

import (
	"bytes"
	"encoding/gob"
	"sync"
)

// OpKind identifies a KV operation encoded in a command's bytes.
type OpKind int

const (
	OpGet OpKind = iota
	OpPut
	OpDelete
)

// Command is the gob-encoded payload a client submits as ClientRequest
// payload bytes.
type Command struct {
	Op    OpKind
	Key   string
	Value string
}

// EncodeCommand gob-encodes a Command for use as raft command bytes.
func EncodeCommand(c Command) []byte {
	var buf bytes.Buffer
	// A Command never fails to encode: all fields are plain data.
	_ = gob.NewEncoder(&buf).Encode(c)
	return buf.Bytes()
}

func decodeCommand(data []byte) (Command, error) {
	var c Command
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c)
	return c, err
}

// Reply is the gob-encoded response to a Command.
type Reply struct {
	OK    bool
	Value string
}

// EncodeReply gob-encodes a Reply.
func EncodeReply(r Reply) []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(r)
	return buf.Bytes()
}

// DecodeReply decodes bytes produced by EncodeReply.
func DecodeReply(data []byte) (Reply, error) {
	var r Reply
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r)
	return r, err
}

// KVStateMachine is a deterministic in-memory key-value store: the
// "application" a raft.Node replicates commands against. Apply is safe to
// call from a single goroutine at a time per node, matching the core's own
// single-threaded Step model.
type KVStateMachine struct {
	mu   sync.Mutex
	data map[string]string
}

// NewKVStateMachine returns an empty store.
func NewKVStateMachine() *KVStateMachine {
	return &KVStateMachine{data: make(map[string]string)}
}

// Apply decodes command, applies it, and returns the gob-encoded Reply.
// Deterministic and side-effect-free on decode failure (returns OK=false).
func (k *KVStateMachine) Apply(command []byte) []byte {
	cmd, err := decodeCommand(command)
	if err != nil {
		return EncodeReply(Reply{OK: false})
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	switch cmd.Op {
	case OpPut:
		k.data[cmd.Key] = cmd.Value
		return EncodeReply(Reply{OK: true})
	case OpDelete:
		delete(k.data, cmd.Key)
		return EncodeReply(Reply{OK: true})
	case OpGet:
		v, ok := k.data[cmd.Key]
		return EncodeReply(Reply{OK: ok, Value: v})
	default:
		return EncodeReply(Reply{OK: false})
	}
}
