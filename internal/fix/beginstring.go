package fix

import "regexp"

// BeginString identifies the FIX protocol version on the wire (tag 8).
type BeginString string

const (
	BeginStringFIX40  BeginString = "FIX.4.0"
	BeginStringFIX41  BeginString = "FIX.4.1"
	BeginStringFIX42  BeginString = "FIX.4.2"
	BeginStringFIX43  BeginString = "FIX.4.3"
	BeginStringFIX44  BeginString = "FIX.4.4"
	BeginStringFIX50  BeginString = "FIX.5.0"
	BeginStringFIXT11 BeginString = "FIXT.1.1"
)

var beginStringPattern = regexp.MustCompile(`^FIX\.\d\.\d$`)

// ParseBeginString validates a tag 8 value. Accepts FIX.x.y and FIXT.1.1.
func ParseBeginString(v []byte) (BeginString, bool) {
	s := string(v)
	if s == string(BeginStringFIXT11) {
		return BeginStringFIXT11, true
	}
	if beginStringPattern.MatchString(s) {
		return BeginString(s), true
	}
	return "", false
}

func (b BeginString) String() string { return string(b) }

// SupportsModernReject reports whether the version carries the structured
// Reject fields RefTagID, RefMsgType and SessionRejectReason, introduced in
// FIX 4.2.
func (b BeginString) SupportsModernReject() bool {
	switch b {
	case BeginStringFIX40, BeginStringFIX41:
		return false
	}
	return true
}
