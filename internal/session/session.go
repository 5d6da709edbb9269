// Package session implements the per-peer FIX session state machine: logon
// and logout exchanges, heartbeat and test-request liveness, sequence number
// tracking with durable persistence, gap detection with resend requests, and
// replay of stored outbound messages.
//
// Each session is a serial execution domain: a single goroutine owns all
// mutable state and consumes one ordered queue carrying inbound messages,
// outbound submissions, timer ticks and transport notices. Sessions never
// share state; the engine fans out between them.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rsouth/fixgate/internal/fix"
	"github.com/rsouth/fixgate/internal/fix/codec"
	"github.com/rsouth/fixgate/internal/fix/dictionary"
	"github.com/rsouth/fixgate/internal/store"
	"github.com/rsouth/fixgate/pkg/metrics"
)

var (
	// ErrNotLoggedIn is returned by Send when the session cannot accept
	// application traffic.
	ErrNotLoggedIn = errors.New("session: not logged in")
	// ErrStopped is returned when the session's run loop has exited.
	ErrStopped = errors.New("session: stopped")
)

const inboxSize = 256

// Session is one side of a FIX session. All fields below clock are owned by
// the run loop goroutine; external callers interact through the public
// methods, which enqueue events.
type Session struct {
	settings Settings
	sid      fix.SessionID
	log      *zap.Logger
	store    store.MessageStore
	dict     *dictionary.Dictionary
	app      Application

	clock func() time.Time

	inbox   chan event
	stopped chan struct{}

	stateAtomic atomic.Int32

	// run-loop state
	state         State
	transport     Transport
	nextSenderSeq uint64
	nextTargetSeq uint64
	heartbeat     time.Duration
	lastSent      time.Time
	lastRecv      time.Time

	pendingTestReqID string
	testReqDeadline  time.Time
	logonDeadline    time.Time
	logoutDeadline   time.Time

	// resend is non-zero while an inbound gap is outstanding.
	resendBegin uint64
	resendEnd   uint64
	buffered    map[uint64]*fix.Message

	wasLoggedIn bool
}

// New creates a session, loading its sequence counters from the store.
func New(settings Settings, st store.MessageStore, dict *dictionary.Dictionary, app Application, log *zap.Logger) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	sid := settings.SessionID()
	seqState, err := st.Load(sid)
	if err != nil {
		return nil, fmt.Errorf("session %s: load store: %w", sid, err)
	}
	s := &Session{
		settings:      settings,
		sid:           sid,
		log:           log.Named("session").With(zap.String("session_id", sid.String())),
		store:         st,
		dict:          dict,
		app:           app,
		clock:         time.Now,
		inbox:         make(chan event, inboxSize),
		stopped:       make(chan struct{}),
		state:         Disconnected,
		nextSenderSeq: seqState.NextSenderSeq,
		nextTargetSeq: seqState.NextTargetSeq,
		heartbeat:     settings.HeartbeatInterval,
		buffered:      make(map[uint64]*fix.Message),
	}
	s.stateAtomic.Store(int32(Disconnected))
	return s, nil
}

// ID returns the session's identity key.
func (s *Session) ID() fix.SessionID { return s.sid }

// Role returns the session's connection role.
func (s *Session) Role() Role { return s.settings.Role }

// Settings returns a copy of the session's configuration.
func (s *Session) Settings() Settings { return s.settings }

// State returns the current state; safe from any goroutine.
func (s *Session) State() State { return State(s.stateAtomic.Load()) }

// Run processes the session's event queue until ctx is cancelled or Stop is
// called. It must be running before Connect, Send or Tick have any effect.
func (s *Session) Run(ctx context.Context) {
	defer close(s.stopped)
	for {
		select {
		case <-ctx.Done():
			s.teardown(ctx.Err())
			return
		case ev := <-s.inbox:
			if _, ok := ev.(evStop); ok {
				s.teardown(nil)
				return
			}
			s.handle(ev)
		}
	}
}

// Connect attaches a transport. For an initiator this triggers the Logon; an
// acceptor waits for the counterparty's Logon.
func (s *Session) Connect(t Transport) {
	s.enqueue(evConnected{transport: t})
}

// Tick drives the session clock; called by the scheduler about once per
// second. Never blocks: a session busy enough to fill its queue will get the
// next tick instead.
func (s *Session) Tick(now time.Time) {
	select {
	case s.inbox <- evTick{now: now}:
	case <-s.stopped:
	default:
	}
}

// Send submits an outbound application message. The session stamps sequence
// number, sending time and comp IDs. Blocks until the message is durably
// assigned and written, or fails.
func (s *Session) Send(msg *fix.Message) error {
	result := make(chan error, 1)
	select {
	case s.inbox <- evSubmit{msg: msg, result: result}:
	case <-s.stopped:
		return ErrStopped
	}
	select {
	case err := <-result:
		return err
	case <-s.stopped:
		return ErrStopped
	}
}

// Logout initiates a clean logout exchange.
func (s *Session) Logout(reason string) {
	s.enqueue(evLogout{reason: reason})
}

// Stop terminates the run loop, closing any attached transport.
func (s *Session) Stop() {
	s.enqueue(evStop{})
}

func (s *Session) enqueue(ev event) {
	select {
	case s.inbox <- ev:
	case <-s.stopped:
	}
}

func (s *Session) now() time.Time { return s.clock() }

func (s *Session) setState(next State) {
	if s.state == next {
		return
	}
	s.log.Info("state transition",
		zap.String("from", s.state.String()),
		zap.String("to", next.String()))
	s.state = next
	s.stateAtomic.Store(int32(next))
	metrics.SessionState.WithLabelValues(s.sid.String()).Set(float64(next))
}

func (s *Session) handle(ev event) {
	switch ev := ev.(type) {
	case evConnected:
		s.handleConnected(ev.transport)
	case evDisconnected:
		s.handleDisconnected(ev.err)
	case evInbound:
		s.handleInbound(ev.msg)
	case evDecodeError:
		s.handleDecodeError(ev.err)
	case evTick:
		s.handleTick(ev.now)
	case evSubmit:
		ev.result <- s.handleSubmit(ev.msg)
	case evLogout:
		s.initiateLogout(ev.reason)
	}
}

func (s *Session) handleConnected(t Transport) {
	if s.state.IsConnected() {
		// already connected; refuse the second transport
		t.Close()
		return
	}
	s.transport = t
	now := s.now()
	s.lastSent = now
	s.lastRecv = now
	go s.readLoop(t)

	if s.settings.Role == Initiator {
		if s.settings.ResetOnLogon {
			if err := s.store.Reset(s.sid); err != nil {
				s.fatal(fmt.Errorf("reset store for logon: %w", err))
				return
			}
			s.nextSenderSeq = 1
			s.nextTargetSeq = 1
		}
		logon := fix.NewMessage(fix.MsgTypeLogon)
		logon.Set(fix.NewIntField(fix.TagEncryptMethod, 0))
		logon.Set(fix.NewIntField(fix.TagHeartBtInt, int(s.heartbeat/time.Second)))
		if s.settings.ResetOnLogon {
			logon.Set(fix.NewBoolField(fix.TagResetSeqNumFlag, true))
		}
		if err := s.send(logon); err != nil {
			return
		}
		s.logonDeadline = now.Add(s.settings.logonTimeout())
		s.setState(LogonSent)
		return
	}
	s.logonDeadline = now.Add(s.settings.logonTimeout())
	s.setState(AwaitingLogon)
}

func (s *Session) handleDisconnected(err error) {
	if !s.state.IsConnected() {
		return
	}
	if err != nil && err != io.EOF {
		s.log.Warn("transport failed", zap.Error(err))
	}
	s.disconnect()
}

// disconnect releases the transport and resets per-connection state. The
// durable sequence counters survive; buffered out-of-order messages do not,
// the peer will be asked to resend them on the next logon.
func (s *Session) disconnect() {
	wasLoggedIn := s.wasLoggedIn
	if s.transport != nil {
		s.transport.Close()
		s.transport = nil
	}
	s.pendingTestReqID = ""
	s.testReqDeadline = time.Time{}
	s.logonDeadline = time.Time{}
	s.logoutDeadline = time.Time{}
	s.resendBegin, s.resendEnd = 0, 0
	s.buffered = make(map[uint64]*fix.Message)
	s.wasLoggedIn = false
	s.setState(Disconnected)
	if wasLoggedIn {
		s.app.OnLogout(s.sid)
	}
}

// fatal handles store failures: the session drops without sending anything,
// because transmitting with an unpersisted counter would violate the
// durability contract.
func (s *Session) fatal(err error) {
	s.log.Error("fatal session error", zap.Error(err))
	s.disconnect()
}

func (s *Session) teardown(err error) {
	if err != nil {
		s.log.Debug("run loop exiting", zap.Error(err))
	}
	if s.state.IsConnected() {
		s.disconnect()
	}
}

func (s *Session) initiateLogout(reason string) {
	if s.state != LoggedIn {
		if s.state.IsConnected() {
			s.disconnect()
		}
		return
	}
	logout := fix.NewMessage(fix.MsgTypeLogout)
	if reason != "" {
		logout.Set(fix.NewStringField(fix.TagText, reason))
	}
	if err := s.send(logout); err != nil {
		return
	}
	s.logoutDeadline = s.now().Add(s.settings.logoutTimeout())
	s.setState(LogoutSent)
}

// handleSubmit stamps and transmits an application message from the sink.
func (s *Session) handleSubmit(msg *fix.Message) error {
	if s.state != LoggedIn {
		return ErrNotLoggedIn
	}
	if msg.IsAdmin() {
		return fmt.Errorf("session: admin MsgType %q cannot be submitted", msg.MsgType())
	}
	return s.send(msg)
}

// send stamps the standard header, durably advances the outbound counter,
// appends to the sent log and writes the frame. The counter update is on
// stable storage before the first byte reaches the transport, so a crash at
// any point leaves the peer able to recover via resend request.
func (s *Session) send(msg *fix.Message) error {
	if s.transport == nil {
		return ErrNotLoggedIn
	}
	seq := s.nextSenderSeq
	now := s.now()
	msg.Set(fix.NewStringField(fix.TagBeginString, string(s.settings.BeginString)))
	msg.Set(fix.NewStringField(fix.TagSenderCompID, s.settings.SenderCompID))
	msg.Set(fix.NewStringField(fix.TagTargetCompID, s.settings.TargetCompID))
	msg.Set(fix.NewSeqNumField(fix.TagMsgSeqNum, seq))
	msg.Set(fix.NewUTCTimestampField(fix.TagSendingTime, now))

	frame, err := codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}

	persistStart := time.Now()
	if err := s.store.SetNextSenderSeq(s.sid, seq+1); err != nil {
		s.fatal(fmt.Errorf("persist sender seq %d: %w", seq+1, err))
		return err
	}
	metrics.StoreWriteLatency.Observe(time.Since(persistStart).Seconds())
	if err := s.store.AppendSent(s.sid, seq, frame); err != nil {
		s.fatal(fmt.Errorf("append sent %d: %w", seq, err))
		return err
	}
	s.nextSenderSeq = seq + 1

	if err := s.writeFrame(frame); err != nil {
		return err
	}
	s.countSent(msg)
	return nil
}

// resendFrame writes a replayed or gap-fill frame. Replays reuse their
// original sequence numbers, so neither the counter nor the log is touched.
func (s *Session) resendFrame(msg *fix.Message) error {
	frame, err := codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("session: encode resend: %w", err)
	}
	if err := s.writeFrame(frame); err != nil {
		return err
	}
	metrics.ResendsServed.WithLabelValues(s.sid.String()).Inc()
	return nil
}

func (s *Session) writeFrame(frame []byte) error {
	if s.transport == nil {
		return ErrNotLoggedIn
	}
	if _, err := s.transport.Write(frame); err != nil {
		s.log.Warn("transport write failed", zap.Error(err))
		s.disconnect()
		return fmt.Errorf("session: write: %w", err)
	}
	s.lastSent = s.now()
	return nil
}

func (s *Session) countSent(msg *fix.Message) {
	category := "app"
	if msg.IsAdmin() {
		category = "admin"
	}
	metrics.MessagesSent.WithLabelValues(s.sid.String(), category).Inc()
}

// handleTick drives every deadline off the 1-second scheduler clock.
func (s *Session) handleTick(now time.Time) {
	if w := s.settings.Window; w != nil {
		inWindow := w.Contains(now)
		switch {
		case !inWindow && s.state == LoggedIn:
			s.initiateLogout("session window closed")
			return
		case !inWindow && s.state == Disconnected:
			s.setState(Scheduled)
			return
		case inWindow && s.state == Scheduled:
			s.setState(Disconnected)
		}
	}

	switch s.state {
	case LogonSent, AwaitingLogon:
		if !s.logonDeadline.IsZero() && !now.Before(s.logonDeadline) {
			s.log.Warn("logon deadline elapsed")
			s.disconnect()
		}
	case LogoutSent:
		if !s.logoutDeadline.IsZero() && !now.Before(s.logoutDeadline) {
			s.log.Info("logout deadline elapsed")
			s.disconnect()
		}
	case LoggedIn:
		s.tickLoggedIn(now)
	}
}

func (s *Session) tickLoggedIn(now time.Time) {
	if s.pendingTestReqID != "" && !now.Before(s.testReqDeadline) {
		s.log.Warn("test request unanswered, dropping connection",
			zap.String("test_req_id", s.pendingTestReqID))
		s.disconnect()
		return
	}

	if now.Sub(s.lastSent) >= s.heartbeat {
		hb := fix.NewMessage(fix.MsgTypeHeartbeat)
		if s.send(hb) != nil {
			return
		}
	}

	// Allow 20% slack over the heartbeat interval before probing the peer.
	grace := s.heartbeat + s.heartbeat/5
	if s.pendingTestReqID == "" && now.Sub(s.lastRecv) >= grace {
		id := newTestReqID()
		tr := fix.NewMessage(fix.MsgTypeTestRequest)
		tr.Set(fix.NewStringField(fix.TagTestReqID, id))
		if s.send(tr) != nil {
			return
		}
		s.pendingTestReqID = id
		s.testReqDeadline = now.Add(s.heartbeat)
	}
}

// readLoop decodes frames off the transport and feeds the inbox. A framing
// error that reports a resync offset skips the broken bytes and keeps the
// stream alive; anything else drops the connection.
func (s *Session) readLoop(t Transport) {
	buf := make([]byte, 0, 16*1024)
	chunk := make([]byte, 8*1024)
	for {
		for len(buf) > 0 {
			msg, consumed, err := codec.Decode(buf, 0)
			if err != nil {
				de, ok := err.(*codec.DecodeError)
				if !ok {
					s.enqueue(evDisconnected{err: err})
					return
				}
				if de.Kind == codec.KindNeedMore {
					break
				}
				s.enqueue(evDecodeError{err: de})
				if de.Consumed == 0 {
					s.enqueue(evDisconnected{err: de})
					return
				}
				buf = buf[de.Consumed:]
				continue
			}
			buf = buf[consumed:]
			s.enqueue(evInbound{msg: msg})
		}

		n, err := t.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			s.enqueue(evDisconnected{err: err})
			return
		}
	}
}

func (s *Session) handleDecodeError(de *codec.DecodeError) {
	s.log.Warn("framing error on inbound stream",
		zap.String("kind", de.Kind.String()),
		zap.String("detail", de.Detail))
	metrics.DecodeErrors.WithLabelValues(s.sid.String(), de.Kind.String()).Inc()
}
