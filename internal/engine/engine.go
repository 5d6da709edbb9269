// Package engine hosts and dispatches FIX sessions: a registry keyed by
// session identity, an acceptor listener that routes incoming connections to
// the matching session by the comp IDs on the first Logon, and dial loops
// that keep initiator sessions connected.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rsouth/fixgate/internal/fix"
	"github.com/rsouth/fixgate/internal/fix/codec"
	"github.com/rsouth/fixgate/internal/fix/dictionary"
	"github.com/rsouth/fixgate/internal/session"
	"github.com/rsouth/fixgate/internal/store"
)

var (
	// ErrDuplicateSessionID is returned by CreateSession when the identity
	// is already registered.
	ErrDuplicateSessionID = errors.New("engine: duplicate session id")
	// ErrUnknownSession is returned for operations on an unregistered id.
	ErrUnknownSession = errors.New("engine: unknown session")
)

const acceptLogonTimeout = 10 * time.Second

// Engine owns the session registry and their run loops.
type Engine struct {
	log   *zap.Logger
	store store.MessageStore
	dict  *dictionary.Dictionary
	app   session.Application
	sched *session.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[fix.SessionID]*session.Session
	dialing  map[fix.SessionID]context.CancelFunc

	listener net.Listener
}

// New builds an engine. All sessions created through it share the store, the
// dictionary and the application sink.
func New(log *zap.Logger, st store.MessageStore, app session.Application) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		log:      log.Named("engine"),
		store:    st,
		dict:     dictionary.New(),
		app:      app,
		sched:    session.NewScheduler(),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[fix.SessionID]*session.Session),
		dialing:  make(map[fix.SessionID]context.CancelFunc),
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sched.Run(ctx)
	}()
	return e
}

// CreateSession registers a session for the given settings and starts its
// run loop. The session stays Disconnected until Logon (initiator) or an
// accepted connection (acceptor).
func (e *Engine) CreateSession(settings session.Settings) (fix.SessionID, error) {
	sid := settings.SessionID()
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.sessions[sid]; exists {
		return fix.SessionID{}, fmt.Errorf("%w: %s", ErrDuplicateSessionID, sid)
	}
	s, err := session.New(settings, e.store, e.dict, e.app, e.log)
	if err != nil {
		return fix.SessionID{}, err
	}
	e.sessions[sid] = s
	e.sched.Register(s)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		s.Run(e.ctx)
	}()
	e.log.Info("session created",
		zap.String("session_id", sid.String()),
		zap.String("role", settings.Role.String()))
	return sid, nil
}

// Sessions lists the registered session identities.
func (e *Engine) Sessions() []fix.SessionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]fix.SessionID, 0, len(e.sessions))
	for sid := range e.sessions {
		out = append(out, sid)
	}
	return out
}

// SessionStatus reports the current state of one session.
func (e *Engine) SessionStatus(sid fix.SessionID) (session.State, error) {
	s, err := e.lookup(sid)
	if err != nil {
		return session.Disconnected, err
	}
	return s.State(), nil
}

// Logon brings a session up. For an initiator this starts a dial loop that
// keeps reconnecting until Logout or engine shutdown; an acceptor simply
// becomes eligible for incoming connections (which it always is once
// created), so this is a no-op for acceptors.
func (e *Engine) Logon(sid fix.SessionID) error {
	s, err := e.lookup(sid)
	if err != nil {
		return err
	}
	if s.Role() != session.Initiator {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, running := e.dialing[sid]; running {
		return nil
	}
	dialCtx, cancel := context.WithCancel(e.ctx)
	e.dialing[sid] = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dialLoop(dialCtx, s)
	}()
	return nil
}

// Logout takes a session down cleanly and, for initiators, stops the redial
// loop.
func (e *Engine) Logout(sid fix.SessionID, reason string) error {
	s, err := e.lookup(sid)
	if err != nil {
		return err
	}
	e.mu.Lock()
	if cancel, ok := e.dialing[sid]; ok {
		cancel()
		delete(e.dialing, sid)
	}
	e.mu.Unlock()
	s.Logout(reason)
	return nil
}

// Send submits an application message on the given session.
func (e *Engine) Send(sid fix.SessionID, msg *fix.Message) error {
	s, err := e.lookup(sid)
	if err != nil {
		return err
	}
	return s.Send(msg)
}

func (e *Engine) lookup(sid fix.SessionID) (*session.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[sid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sid)
	}
	return s, nil
}

// dialLoop keeps one initiator connected: dial, hand the connection to the
// session, wait for it to drop, back off, repeat.
func (e *Engine) dialLoop(ctx context.Context, s *session.Session) {
	settings := s.Settings()
	log := e.log.With(zap.String("session_id", s.ID().String()))
	for {
		if ctx.Err() != nil {
			return
		}
		if s.State() == session.Scheduled {
			if !sleep(ctx, time.Second) {
				return
			}
			continue
		}
		conn, err := net.DialTimeout("tcp", settings.Address, 10*time.Second)
		if err != nil {
			log.Warn("dial failed", zap.String("address", settings.Address), zap.Error(err))
			if !sleep(ctx, settings.ReconnectDelay()) {
				return
			}
			continue
		}
		log.Info("connected", zap.String("address", settings.Address))
		s.Connect(conn)

		// wait for the session to drop before redialing
		for s.State() != session.Disconnected && s.State() != session.Scheduled {
			if !sleep(ctx, time.Second) {
				return
			}
		}
		if !sleep(ctx, settings.ReconnectDelay()) {
			return
		}
	}
}

// ListenAndServe accepts inbound connections for acceptor sessions until the
// engine shuts down.
func (e *Engine) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("engine: listen %s: %w", addr, err)
	}
	e.mu.Lock()
	e.listener = ln
	e.mu.Unlock()
	e.log.Info("accepting connections", zap.String("address", addr))
	return e.Serve(ln)
}

// Serve runs the accept loop on an existing listener.
func (e *Engine) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if e.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("engine: accept: %w", err)
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.routeAccepted(conn)
		}()
	}
}

// routeAccepted holds a fresh inbound connection until its first Logon
// arrives, derives the session identity from the comp IDs, and promotes the
// connection to the matching acceptor session. The bytes consumed while
// peeking are stitched back in front of the connection so the session sees
// the complete stream.
func (e *Engine) routeAccepted(conn net.Conn) {
	log := e.log.With(zap.String("remote", conn.RemoteAddr().String()))
	if err := conn.SetReadDeadline(time.Now().Add(acceptLogonTimeout)); err != nil {
		conn.Close()
		return
	}

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	var logon *fix.Message
	for {
		msg, _, err := codec.Decode(buf, 0)
		if err == nil {
			logon = msg
			break
		}
		if !codec.IsNeedMore(err) {
			log.Warn("undecodable preamble on accepted connection", zap.Error(err))
			conn.Close()
			return
		}
		n, rerr := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr != nil {
			log.Warn("connection dropped before logon", zap.Error(rerr))
			conn.Close()
			return
		}
	}
	conn.SetReadDeadline(time.Time{})

	if logon.MsgType() != fix.MsgTypeLogon {
		log.Warn("first message was not a logon", zap.String("msg_type", logon.MsgType()))
		conn.Close()
		return
	}
	sid, err := fix.SessionIDFromMessage(logon)
	if err != nil {
		log.Warn("logon with unusable identity", zap.Error(err))
		conn.Close()
		return
	}
	s, err := e.lookup(sid)
	if err != nil || s.Role() != session.Acceptor {
		log.Warn("logon for unknown acceptor session", zap.String("session_id", sid.String()))
		conn.Close()
		return
	}
	if s.State() != session.Disconnected {
		log.Warn("session already connected, refusing second connection",
			zap.String("session_id", sid.String()))
		conn.Close()
		return
	}
	log.Info("promoting connection", zap.String("session_id", sid.String()))
	s.Connect(&replayedConn{pre: bytes.NewReader(buf), Conn: conn})
}

// Shutdown logs every session out and stops the accept and dial loops.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.listener != nil {
		e.listener.Close()
	}
	ids := make([]fix.SessionID, 0, len(e.sessions))
	for sid := range e.sessions {
		ids = append(ids, sid)
	}
	e.mu.Unlock()

	for _, sid := range ids {
		e.Logout(sid, "engine shutting down")
	}

	deadline := time.NewTimer(2 * time.Second)
	defer deadline.Stop()
	select {
	case <-deadline.C:
	case <-ctx.Done():
	}

	e.cancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// replayedConn prefixes a connection with bytes already consumed during
// logon routing.
type replayedConn struct {
	pre *bytes.Reader
	net.Conn
}

func (c *replayedConn) Read(p []byte) (int, error) {
	if c.pre.Len() > 0 {
		return c.pre.Read(p)
	}
	return c.Conn.Read(p)
}

var _ io.ReadWriteCloser = (*replayedConn)(nil)

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
