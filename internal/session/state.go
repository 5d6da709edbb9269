package session

// State is the connection/logon state of a session. AwaitingResend is not a
// State: an in-flight inbound resend window is tracked orthogonally while the
// session stays LoggedIn.
type State int

const (
	// Disconnected means no transport is attached.
	Disconnected State = iota
	// Connecting means the initiator is dialing.
	Connecting
	// AwaitingLogon means the acceptor has a transport and waits for the
	// counterparty's Logon.
	AwaitingLogon
	// LogonSent means the initiator sent Logon and waits for the echo.
	LogonSent
	// LoggedIn is the steady state.
	LoggedIn
	// LogoutSent means this side initiated logout and waits for the peer's
	// Logout or the deadline.
	LogoutSent
	// Scheduled means the session is outside its configured active window.
	Scheduled
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case AwaitingLogon:
		return "AwaitingLogon"
	case LogonSent:
		return "LogonSent"
	case LoggedIn:
		return "LoggedIn"
	case LogoutSent:
		return "LogoutSent"
	case Scheduled:
		return "Scheduled"
	}
	return "Unknown"
}

// IsConnected reports whether a transport is attached in this state.
func (s State) IsConnected() bool {
	switch s {
	case AwaitingLogon, LogonSent, LoggedIn, LogoutSent:
		return true
	}
	return false
}
