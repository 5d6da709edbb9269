package store

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rsouth/fixgate/internal/fix"
)

const (
	seqnumFileName  = "seqnum.bin"
	sessionLogName  = "session.log"
	logHeaderLength = 12 // u64 seq + u32 payload length
)

// FileStore persists each session in its own directory named
// <BeginString>-<SenderCompID>-<TargetCompID>:
//
//	seqnum.bin:  16 bytes, big-endian next_sender_seq then next_target_seq,
//	             rewritten via temp file + rename so a crash never leaves a
//	             torn counter.
//	session.log: append-only [u64 seq][u32 len][payload] entries; sparse
//	             sequences are legal.
type FileStore struct {
	dir string

	mu       sync.Mutex
	closed   bool
	sessions map[fix.SessionID]*fileSession
}

type fileSession struct {
	dir     string
	state   SeqState
	logFile *os.File
	// index maps sequence number to the payload position in session.log.
	// A replayed sequence number keeps its latest entry.
	index map[uint64]logEntryPos
}

type logEntryPos struct {
	offset int64
	length uint32
}

// NewFileStore opens (creating if needed) a file-backed store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create root %s: %w", dir, err)
	}
	return &FileStore{dir: dir, sessions: make(map[fix.SessionID]*fileSession)}, nil
}

func (s *FileStore) session(sid fix.SessionID) (*fileSession, error) {
	if fs, ok := s.sessions[sid]; ok {
		return fs, nil
	}
	dir := filepath.Join(s.dir, sid.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create session dir %s: %w", dir, err)
	}

	fs := &fileSession{
		dir:   dir,
		state: SeqState{NextSenderSeq: 1, NextTargetSeq: 1},
		index: make(map[uint64]logEntryPos),
	}
	if err := fs.loadSeqnums(); err != nil {
		return nil, err
	}
	if err := fs.openLog(); err != nil {
		return nil, err
	}
	s.sessions[sid] = fs
	return fs, nil
}

func (fs *fileSession) loadSeqnums() error {
	path := filepath.Join(fs.dir, seqnumFileName)
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: read %s: %w", path, err)
	}
	if len(buf) != 16 {
		return fmt.Errorf("store: %s is %d bytes, want 16", path, len(buf))
	}
	fs.state.NextSenderSeq = binary.BigEndian.Uint64(buf[0:8])
	fs.state.NextTargetSeq = binary.BigEndian.Uint64(buf[8:16])
	return nil
}

// writeSeqnums rewrites seqnum.bin atomically: write temp, fsync, rename.
func (fs *fileSession) writeSeqnums() error {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], fs.state.NextSenderSeq)
	binary.BigEndian.PutUint64(buf[8:16], fs.state.NextTargetSeq)

	path := filepath.Join(fs.dir, seqnumFileName)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("store: open %s: %w", tmp, err)
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("store: sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: rename %s: %w", tmp, err)
	}
	return nil
}

// openLog opens session.log for append and rebuilds the in-memory index by
// scanning existing entries. A torn final entry (crash mid-append) is
// truncated away.
func (fs *fileSession) openLog() error {
	path := filepath.Join(fs.dir, sessionLogName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("store: open %s: %w", path, err)
	}

	var offset int64
	header := make([]byte, logHeaderLength)
	for {
		n, err := io.ReadFull(f, header)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			// torn header from a crash; drop it
			if terr := f.Truncate(offset); terr != nil {
				f.Close()
				return fmt.Errorf("store: truncate torn entry in %s: %w", path, terr)
			}
			break
		}
		if err != nil {
			f.Close()
			return fmt.Errorf("store: scan %s: %w", path, err)
		}
		seq := binary.BigEndian.Uint64(header[0:8])
		length := binary.BigEndian.Uint32(header[8:12])
		payloadOffset := offset + int64(n)
		if _, err := f.Seek(int64(length), io.SeekCurrent); err != nil {
			f.Close()
			return fmt.Errorf("store: scan %s: %w", path, err)
		}
		end := payloadOffset + int64(length)
		if fi, serr := f.Stat(); serr == nil && end > fi.Size() {
			if terr := f.Truncate(offset); terr != nil {
				f.Close()
				return fmt.Errorf("store: truncate torn entry in %s: %w", path, terr)
			}
			break
		}
		fs.index[seq] = logEntryPos{offset: payloadOffset, length: length}
		offset = end
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return fmt.Errorf("store: seek %s: %w", path, err)
	}
	fs.logFile = f
	return nil
}

func (s *FileStore) Load(sid fix.SessionID) (SeqState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return SeqState{}, ErrClosed
	}
	fs, err := s.session(sid)
	if err != nil {
		return SeqState{}, err
	}
	return fs.state, nil
}

func (s *FileStore) SetNextSenderSeq(sid fix.SessionID, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	fs, err := s.session(sid)
	if err != nil {
		return err
	}
	fs.state.NextSenderSeq = seq
	return fs.writeSeqnums()
}

func (s *FileStore) SetNextTargetSeq(sid fix.SessionID, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	fs, err := s.session(sid)
	if err != nil {
		return err
	}
	fs.state.NextTargetSeq = seq
	return fs.writeSeqnums()
}

func (s *FileStore) AppendSent(sid fix.SessionID, seq uint64, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	fs, err := s.session(sid)
	if err != nil {
		return err
	}

	offset, err := fs.logFile.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("store: seek log: %w", err)
	}
	buf := make([]byte, logHeaderLength+len(payload))
	binary.BigEndian.PutUint64(buf[0:8], seq)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(payload)))
	copy(buf[logHeaderLength:], payload)
	if _, err := fs.logFile.Write(buf); err != nil {
		return fmt.Errorf("store: append log: %w", err)
	}
	if err := fs.logFile.Sync(); err != nil {
		return fmt.Errorf("store: sync log: %w", err)
	}
	fs.index[seq] = logEntryPos{offset: offset + logHeaderLength, length: uint32(len(payload))}
	return nil
}

func (s *FileStore) GetSent(sid fix.SessionID, beginSeq, endSeq uint64) ([]SentMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	fs, err := s.session(sid)
	if err != nil {
		return nil, err
	}

	seqs := make([]uint64, 0, len(fs.index))
	for seq := range fs.index {
		if seq < beginSeq || (endSeq != 0 && seq > endSeq) {
			continue
		}
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	out := make([]SentMessage, 0, len(seqs))
	for _, seq := range seqs {
		pos := fs.index[seq]
		payload := make([]byte, pos.length)
		if _, err := fs.logFile.ReadAt(payload, pos.offset); err != nil {
			return nil, fmt.Errorf("store: read log entry %d: %w", seq, err)
		}
		out = append(out, SentMessage{Seq: seq, Payload: payload})
	}
	return out, nil
}

func (s *FileStore) Reset(sid fix.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	fs, err := s.session(sid)
	if err != nil {
		return err
	}
	if err := fs.logFile.Truncate(0); err != nil {
		return fmt.Errorf("store: truncate log: %w", err)
	}
	if _, err := fs.logFile.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("store: seek log: %w", err)
	}
	fs.index = make(map[uint64]logEntryPos)
	fs.state = SeqState{NextSenderSeq: 1, NextTargetSeq: 1}
	return fs.writeSeqnums()
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, fs := range s.sessions {
		if fs.logFile != nil {
			fs.logFile.Close()
		}
	}
	return nil
}
