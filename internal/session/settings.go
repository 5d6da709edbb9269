package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rsouth/fixgate/internal/fix"
)

// Role is the connection role of a session.
type Role int

const (
	Initiator Role = iota
	Acceptor
)

func (r Role) String() string {
	if r == Acceptor {
		return "Acceptor"
	}
	return "Initiator"
}

// ActiveWindow is an optional daily wall-clock window outside which the
// session stays in the Scheduled state. Start and End are offsets from
// midnight UTC; a window that wraps midnight (End < Start) is legal.
type ActiveWindow struct {
	Start time.Duration
	End   time.Duration
}

// Contains reports whether t falls inside the window.
func (w ActiveWindow) Contains(t time.Time) bool {
	u := t.UTC()
	midnight := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	offset := u.Sub(midnight)
	if w.Start <= w.End {
		return offset >= w.Start && offset < w.End
	}
	return offset >= w.Start || offset < w.End
}

// ParseTimeOfDay parses an "HH:MM" or "HH:MM:SS" wall-clock offset.
func ParseTimeOfDay(s string) (time.Duration, error) {
	var h, m, sec int
	switch strings.Count(s, ":") {
	case 1:
		if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
			return 0, fmt.Errorf("bad time of day %q: %w", s, err)
		}
	case 2:
		if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
			return 0, fmt.Errorf("bad time of day %q: %w", s, err)
		}
	default:
		return 0, fmt.Errorf("bad time of day %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// Settings configures one session. Supplied programmatically; file loading
// lives in internal/config.
type Settings struct {
	BeginString  fix.BeginString `validate:"required"`
	SenderCompID string          `validate:"required,printascii"`
	TargetCompID string          `validate:"required,printascii"`
	Role         Role

	// Address is the host:port an initiator dials. Unused by acceptors,
	// which are matched to accepted connections by comp IDs.
	Address string

	// HeartbeatInterval is HeartBtInt; positive, at most one hour.
	HeartbeatInterval time.Duration `validate:"required"`

	// ResetOnLogon includes ResetSeqNumFlag=Y on the initiator's Logon.
	ResetOnLogon bool

	// Window, when non-nil, bounds the active hours of the session.
	Window *ActiveWindow

	// LogonTimeout bounds the wait for a counter-Logon. Zero means 10s.
	LogonTimeout time.Duration
	// LogoutTimeout bounds the wait for a counter-Logout. Zero means 2s.
	LogoutTimeout time.Duration

	// ReconnectInterval is the initiator redial backoff. Zero means 5s.
	ReconnectInterval time.Duration
}

const (
	defaultLogonTimeout      = 10 * time.Second
	defaultLogoutTimeout     = 2 * time.Second
	defaultReconnectInterval = 5 * time.Second
	maxHeartbeatInterval     = 3600 * time.Second
)

var validate = validator.New()

// Validate checks the settings for use; it also rejects comp IDs that could
// not survive the wire (embedded SOH, non-printable bytes).
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid session settings: %w", err)
	}
	if _, ok := fix.ParseBeginString([]byte(s.BeginString)); !ok {
		return fmt.Errorf("invalid session settings: unrecognised BeginString %q", s.BeginString)
	}
	if s.HeartbeatInterval < time.Second || s.HeartbeatInterval > maxHeartbeatInterval {
		return fmt.Errorf("invalid session settings: heartbeat interval %v outside [1s, 1h]", s.HeartbeatInterval)
	}
	if s.HeartbeatInterval%time.Second != 0 {
		return fmt.Errorf("invalid session settings: heartbeat interval %v is not a whole second", s.HeartbeatInterval)
	}
	return nil
}

// SessionID derives the identity key for these settings.
func (s Settings) SessionID() fix.SessionID {
	return fix.SessionID{
		BeginString:  s.BeginString,
		SenderCompID: s.SenderCompID,
		TargetCompID: s.TargetCompID,
	}
}

func (s Settings) logonTimeout() time.Duration {
	if s.LogonTimeout > 0 {
		return s.LogonTimeout
	}
	return defaultLogonTimeout
}

func (s Settings) logoutTimeout() time.Duration {
	if s.LogoutTimeout > 0 {
		return s.LogoutTimeout
	}
	return defaultLogoutTimeout
}

// ReconnectDelay returns the initiator redial backoff, defaulted.
func (s Settings) ReconnectDelay() time.Duration {
	if s.ReconnectInterval > 0 {
		return s.ReconnectInterval
	}
	return defaultReconnectInterval
}

// SettingsBuilder assembles Settings fluently.
type SettingsBuilder struct {
	s Settings
}

// NewSettingsBuilder starts a builder with the mandatory identity fields and
// a 30 second heartbeat.
func NewSettingsBuilder(bs fix.BeginString, sender, target string, role Role) *SettingsBuilder {
	return &SettingsBuilder{s: Settings{
		BeginString:       bs,
		SenderCompID:      sender,
		TargetCompID:      target,
		Role:              role,
		HeartbeatInterval: 30 * time.Second,
	}}
}

// WithAddress sets the initiator's dial target.
func (b *SettingsBuilder) WithAddress(addr string) *SettingsBuilder {
	b.s.Address = addr
	return b
}

// WithHeartbeatInterval sets HeartBtInt.
func (b *SettingsBuilder) WithHeartbeatInterval(d time.Duration) *SettingsBuilder {
	b.s.HeartbeatInterval = d
	return b
}

// WithResetOnLogon toggles ResetSeqNumFlag=Y on logon.
func (b *SettingsBuilder) WithResetOnLogon(reset bool) *SettingsBuilder {
	b.s.ResetOnLogon = reset
	return b
}

// WithWindow bounds the session's active hours.
func (b *SettingsBuilder) WithWindow(start, end time.Duration) *SettingsBuilder {
	b.s.Window = &ActiveWindow{Start: start, End: end}
	return b
}

// Build validates and returns the settings.
func (b *SettingsBuilder) Build() (Settings, error) {
	if err := b.s.Validate(); err != nil {
		return Settings{}, err
	}
	return b.s, nil
}
