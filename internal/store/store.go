// Package store persists per-session sequence counters and the outbound
// message log used for resend. Counter writes are durable before the session
// puts the corresponding message on the wire; losing a counter is a protocol
// violation, losing the sent log merely forces a sequence reset.
package store

import (
	"errors"

	"github.com/rsouth/fixgate/internal/fix"
)

// ErrClosed is returned by any operation on a closed store.
var ErrClosed = errors.New("store: closed")

// SeqState is the pair of durable counters for one session.
type SeqState struct {
	// NextSenderSeq is the sequence number the next outbound message gets.
	NextSenderSeq uint64
	// NextTargetSeq is the sequence number expected on the next inbound
	// message.
	NextTargetSeq uint64
}

// SentMessage is one replayable outbound message.
type SentMessage struct {
	Seq     uint64
	Payload []byte
}

// MessageStore is the durable session record. Implementations serialise
// access per SessionID internally; the session layer never calls a store for
// the same SessionID from two goroutines at once, but different sessions may
// share one store concurrently.
type MessageStore interface {
	// Load returns the counters for a session, creating state initialised to
	// (1, 1) if the session has never been stored.
	Load(sid fix.SessionID) (SeqState, error)

	// SetNextSenderSeq durably records the next outbound counter. It must not
	// return until the value is on stable storage.
	SetNextSenderSeq(sid fix.SessionID, seq uint64) error

	// SetNextTargetSeq durably records the next expected inbound counter.
	SetNextTargetSeq(sid fix.SessionID, seq uint64) error

	// AppendSent records the encoded bytes of an outbound message under its
	// sequence number.
	AppendSent(sid fix.SessionID, seq uint64, payload []byte) error

	// GetSent returns the stored messages with beginSeq <= seq <= endSeq in
	// increasing order. endSeq == 0 means through the latest stored message.
	// Missing sequence numbers are simply absent from the result; callers
	// detect gaps by comparing neighbouring entries.
	GetSent(sid fix.SessionID, beginSeq, endSeq uint64) ([]SentMessage, error)

	// Reset returns both counters to 1 and truncates the sent log.
	Reset(sid fix.SessionID) error

	Close() error
}
