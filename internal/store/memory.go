package store

import (
	"sort"
	"sync"

	"github.com/rsouth/fixgate/internal/fix"
)

// MemoryStore keeps all session state in process memory. It satisfies the
// MessageStore contract except durability, which makes it suitable for tests
// and for sessions that reset sequence numbers on every logon.
type MemoryStore struct {
	mu       sync.Mutex
	closed   bool
	sessions map[fix.SessionID]*memorySession
}

type memorySession struct {
	state SeqState
	sent  map[uint64][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[fix.SessionID]*memorySession)}
}

func (s *MemoryStore) session(sid fix.SessionID) *memorySession {
	ms, ok := s.sessions[sid]
	if !ok {
		ms = &memorySession{
			state: SeqState{NextSenderSeq: 1, NextTargetSeq: 1},
			sent:  make(map[uint64][]byte),
		}
		s.sessions[sid] = ms
	}
	return ms
}

func (s *MemoryStore) Load(sid fix.SessionID) (SeqState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return SeqState{}, ErrClosed
	}
	return s.session(sid).state, nil
}

func (s *MemoryStore) SetNextSenderSeq(sid fix.SessionID, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.session(sid).state.NextSenderSeq = seq
	return nil
}

func (s *MemoryStore) SetNextTargetSeq(sid fix.SessionID, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.session(sid).state.NextTargetSeq = seq
	return nil
}

func (s *MemoryStore) AppendSent(sid fix.SessionID, seq uint64, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	s.session(sid).sent[seq] = buf
	return nil
}

func (s *MemoryStore) GetSent(sid fix.SessionID, beginSeq, endSeq uint64) ([]SentMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	ms := s.session(sid)
	var out []SentMessage
	for seq, payload := range ms.sent {
		if seq < beginSeq || (endSeq != 0 && seq > endSeq) {
			continue
		}
		buf := make([]byte, len(payload))
		copy(buf, payload)
		out = append(out, SentMessage{Seq: seq, Payload: buf})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *MemoryStore) Reset(sid fix.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	ms := s.session(sid)
	ms.state = SeqState{NextSenderSeq: 1, NextTargetSeq: 1}
	ms.sent = make(map[uint64][]byte)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
