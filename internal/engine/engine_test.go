package engine

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rsouth/fixgate/internal/fix"
	"github.com/rsouth/fixgate/internal/session"
	"github.com/rsouth/fixgate/internal/store"
)

type recordingApp struct {
	mu      sync.Mutex
	logons  int
	logouts int
	msgs    []*fix.Message
}

func (a *recordingApp) OnLogon(fix.SessionID)  { a.mu.Lock(); a.logons++; a.mu.Unlock() }
func (a *recordingApp) OnLogout(fix.SessionID) { a.mu.Lock(); a.logouts++; a.mu.Unlock() }
func (a *recordingApp) OnMessage(_ fix.SessionID, m *fix.Message) {
	a.mu.Lock()
	a.msgs = append(a.msgs, m)
	a.mu.Unlock()
}

func (a *recordingApp) messageCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.msgs)
}

func initiatorSettings(addr string) session.Settings {
	return session.Settings{
		BeginString:       fix.BeginStringFIX44,
		SenderCompID:      "INIT",
		TargetCompID:      "ACC",
		Role:              session.Initiator,
		Address:           addr,
		HeartbeatInterval: 30 * time.Second,
		ReconnectInterval: time.Second,
	}
}

func acceptorSettings() session.Settings {
	return session.Settings{
		BeginString:       fix.BeginStringFIX44,
		SenderCompID:      "ACC",
		TargetCompID:      "INIT",
		Role:              session.Acceptor,
		HeartbeatInterval: 30 * time.Second,
	}
}

func shutdown(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, e.Shutdown(ctx))
}

func TestCreateSessionRejectsDuplicateID(t *testing.T) {
	e := New(zaptest.NewLogger(t), store.NewMemoryStore(), &recordingApp{})
	defer shutdown(t, e)

	sid, err := e.CreateSession(initiatorSettings("127.0.0.1:1"))
	require.NoError(t, err)
	assert.Equal(t, "FIX.4.4-INIT-ACC", sid.String())

	_, err = e.CreateSession(initiatorSettings("127.0.0.1:1"))
	assert.ErrorIs(t, err, ErrDuplicateSessionID)

	assert.Len(t, e.Sessions(), 1)
	state, err := e.SessionStatus(sid)
	require.NoError(t, err)
	assert.Equal(t, session.Disconnected, state)
}

func TestOperationsOnUnknownSession(t *testing.T) {
	e := New(zaptest.NewLogger(t), store.NewMemoryStore(), &recordingApp{})
	defer shutdown(t, e)

	sid := fix.SessionID{BeginString: fix.BeginStringFIX44, SenderCompID: "A", TargetCompID: "B"}
	_, err := e.SessionStatus(sid)
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.ErrorIs(t, e.Logon(sid), ErrUnknownSession)
	assert.ErrorIs(t, e.Logout(sid, ""), ErrUnknownSession)
	assert.ErrorIs(t, e.Send(sid, fix.NewMessage(fix.MsgTypeNewOrderSingle)), ErrUnknownSession)
}

func TestLoopbackSessionPair(t *testing.T) {
	acceptorApp := &recordingApp{}
	acceptorEngine := New(zaptest.NewLogger(t), store.NewMemoryStore(), acceptorApp)
	defer shutdown(t, acceptorEngine)
	accSID, err := acceptorEngine.CreateSession(acceptorSettings())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go acceptorEngine.Serve(ln)

	initiatorApp := &recordingApp{}
	initiatorEngine := New(zaptest.NewLogger(t), store.NewMemoryStore(), initiatorApp)
	defer shutdown(t, initiatorEngine)
	initSID, err := initiatorEngine.CreateSession(initiatorSettings(ln.Addr().String()))
	require.NoError(t, err)
	require.NoError(t, initiatorEngine.Logon(initSID))

	loggedIn := func(e *Engine, sid fix.SessionID) func() bool {
		return func() bool {
			state, err := e.SessionStatus(sid)
			return err == nil && state == session.LoggedIn
		}
	}
	require.Eventually(t, loggedIn(initiatorEngine, initSID), 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, loggedIn(acceptorEngine, accSID), 5*time.Second, 20*time.Millisecond)

	order := fix.NewMessage(fix.MsgTypeNewOrderSingle)
	order.Set(fix.NewStringField(fix.TagClOrdID, "loop-1"))
	order.Set(fix.NewStringField(fix.TagSymbol, "EUR/USD"))
	order.Set(fix.NewCharField(fix.TagSide, '1'))
	order.Set(fix.NewUTCTimestampField(fix.TagTransactTime, time.Now().UTC()))
	order.Set(fix.NewCharField(fix.TagOrdType, '1'))
	require.NoError(t, initiatorEngine.Send(initSID, order))

	require.Eventually(t, func() bool { return acceptorApp.messageCount() == 1 },
		5*time.Second, 20*time.Millisecond)

	require.NoError(t, initiatorEngine.Logout(initSID, "test complete"))
	require.Eventually(t, func() bool {
		state, err := initiatorEngine.SessionStatus(initSID)
		return err == nil && state == session.Disconnected
	}, 5*time.Second, 20*time.Millisecond)
}

func TestUnknownCompIDsAreTurnedAway(t *testing.T) {
	e := New(zaptest.NewLogger(t), store.NewMemoryStore(), &recordingApp{})
	defer shutdown(t, e)
	_, err := e.CreateSession(acceptorSettings())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go e.Serve(ln)

	// an initiator nobody configured
	strangerEngine := New(zaptest.NewLogger(t), store.NewMemoryStore(), &recordingApp{})
	defer shutdown(t, strangerEngine)
	strangerSettings := initiatorSettings(ln.Addr().String())
	strangerSettings.SenderCompID = "STRANGER"
	sid, err := strangerEngine.CreateSession(strangerSettings)
	require.NoError(t, err)
	require.NoError(t, strangerEngine.Logon(sid))

	// the stranger never gets past Disconnected/LogonSent to LoggedIn
	assert.Never(t, func() bool {
		state, err := strangerEngine.SessionStatus(sid)
		return err == nil && state == session.LoggedIn
	}, 2*time.Second, 50*time.Millisecond)
}
