package session

import "github.com/rsouth/fixgate/internal/fix"

// Application is the sink for session lifecycle callbacks and validated
// inbound application messages. Callbacks run on the session's own goroutine;
// implementations must not block.
type Application interface {
	// OnLogon fires when the session reaches LoggedIn.
	OnLogon(sid fix.SessionID)

	// OnLogout fires when the session drops to Disconnected, whether by a
	// clean logout exchange or a failure.
	OnLogout(sid fix.SessionID)

	// OnMessage delivers an inbound application message. Messages arrive in
	// sequence order, exactly once; nothing is delivered while a resend gap
	// is open.
	OnMessage(sid fix.SessionID, msg *fix.Message)
}
