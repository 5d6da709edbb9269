package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v3"

	"github.com/rsouth/fixgate/internal/fix"
)

// BadgerStore keeps session state in an embedded Badger database. Sync writes
// are enabled so a committed counter update is on stable storage before
// SetNextSenderSeq / SetNextTargetSeq return, matching the durability rule of
// the file store.
type BadgerStore struct {
	db     *badger.DB
	closed atomic.Bool
}

// NewBadgerStore opens (creating if needed) a Badger-backed store at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).
		WithSyncWrites(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func senderKey(sid fix.SessionID) []byte { return []byte("seq:s:" + sid.String()) }
func targetKey(sid fix.SessionID) []byte { return []byte("seq:t:" + sid.String()) }

func sentPrefix(sid fix.SessionID) []byte { return []byte("msg:" + sid.String() + ":") }

func sentKey(sid fix.SessionID, seq uint64) []byte {
	prefix := sentPrefix(sid)
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

func (s *BadgerStore) Load(sid fix.SessionID) (SeqState, error) {
	if s.closed.Load() {
		return SeqState{}, ErrClosed
	}
	state := SeqState{NextSenderSeq: 1, NextTargetSeq: 1}
	err := s.db.View(func(txn *badger.Txn) error {
		if v, err := getUint64(txn, senderKey(sid)); err == nil {
			state.NextSenderSeq = v
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if v, err := getUint64(txn, targetKey(sid)); err == nil {
			state.NextTargetSeq = v
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return SeqState{}, fmt.Errorf("store: load %s: %w", sid, err)
	}
	return state, nil
}

func getUint64(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if err != nil {
		return 0, err
	}
	var out uint64
	err = item.Value(func(v []byte) error {
		if len(v) != 8 {
			return fmt.Errorf("counter value is %d bytes, want 8", len(v))
		}
		out = binary.BigEndian.Uint64(v)
		return nil
	})
	return out, err
}

func (s *BadgerStore) setCounter(key []byte, seq uint64) error {
	if s.closed.Load() {
		return ErrClosed
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf)
	})
}

func (s *BadgerStore) SetNextSenderSeq(sid fix.SessionID, seq uint64) error {
	return s.setCounter(senderKey(sid), seq)
}

func (s *BadgerStore) SetNextTargetSeq(sid fix.SessionID, seq uint64) error {
	return s.setCounter(targetKey(sid), seq)
}

func (s *BadgerStore) AppendSent(sid fix.SessionID, seq uint64, payload []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sentKey(sid, seq), payload)
	})
}

func (s *BadgerStore) GetSent(sid fix.SessionID, beginSeq, endSeq uint64) ([]SentMessage, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var out []SentMessage
	prefix := sentPrefix(sid)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(sentKey(sid, beginSeq)); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			seq := binary.BigEndian.Uint64(item.Key()[len(prefix):])
			if endSeq != 0 && seq > endSeq {
				break
			}
			payload, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, SentMessage{Seq: seq, Payload: payload})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: get sent %s: %w", sid, err)
	}
	return out, nil
}

func (s *BadgerStore) Reset(sid fix.SessionID) error {
	if s.closed.Load() {
		return ErrClosed
	}
	prefix := sentPrefix(sid)
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var keys [][]byte
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		one := make([]byte, 8)
		binary.BigEndian.PutUint64(one, 1)
		if err := txn.Set(senderKey(sid), one); err != nil {
			return err
		}
		return txn.Set(targetKey(sid), one)
	})
	if err != nil {
		return fmt.Errorf("store: reset %s: %w", sid, err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
