package fix

import "fmt"

// SessionID identifies a session as seen from this side of the connection.
// Equality is case-sensitive byte equality on all three parts.
type SessionID struct {
	BeginString  BeginString
	SenderCompID string
	TargetCompID string
}

// String renders the canonical <BeginString>-<Sender>-<Target> form, which is
// also the on-disk directory name used by the file store.
func (s SessionID) String() string {
	return fmt.Sprintf("%s-%s-%s", s.BeginString, s.SenderCompID, s.TargetCompID)
}

// Reverse returns the identity of the counterparty's side, used to match an
// inbound message's comp IDs against the local session table.
func (s SessionID) Reverse() SessionID {
	return SessionID{
		BeginString:  s.BeginString,
		SenderCompID: s.TargetCompID,
		TargetCompID: s.SenderCompID,
	}
}

// SessionIDFromMessage derives the local SessionID that should own an inbound
// message: the message's sender is our target and vice versa.
func SessionIDFromMessage(m *Message) (SessionID, error) {
	bs, ok := ParseBeginString([]byte(m.GetString(TagBeginString)))
	if !ok {
		return SessionID{}, fmt.Errorf("invalid BeginString %q", m.GetString(TagBeginString))
	}
	sender := m.GetString(TagSenderCompID)
	target := m.GetString(TagTargetCompID)
	if sender == "" || target == "" {
		return SessionID{}, fmt.Errorf("missing comp IDs (49=%q 56=%q)", sender, target)
	}
	return SessionID{BeginString: bs, SenderCompID: target, TargetCompID: sender}, nil
}
