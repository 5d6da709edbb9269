package codec

import "fmt"

// ErrorKind classifies a framing failure.
type ErrorKind int

const (
	// KindNeedMore means the buffer ends before a complete frame.
	KindNeedMore ErrorKind = iota
	// KindBadBeginString means the frame does not start with a valid tag 8.
	KindBadBeginString
	// KindBadLength means tag 9 is missing, malformed, or does not match the
	// observed body.
	KindBadLength
	// KindBadChecksum means tag 10 does not match the computed sum.
	KindBadChecksum
	// KindTagFormat means a tag is not a well-formed decimal number.
	KindTagFormat
	// KindUnterminatedValue means a field value has no SOH terminator.
	KindUnterminatedValue
	// KindBadMsgType means tag 35 is not the third field of the frame.
	KindBadMsgType
)

func (k ErrorKind) String() string {
	switch k {
	case KindNeedMore:
		return "NeedMore"
	case KindBadBeginString:
		return "BadBeginString"
	case KindBadLength:
		return "BadLength"
	case KindBadChecksum:
		return "BadChecksum"
	case KindTagFormat:
		return "TagFormat"
	case KindUnterminatedValue:
		return "UnterminatedValue"
	case KindBadMsgType:
		return "BadMsgType"
	}
	return "Unknown"
}

// DecodeError reports a framing failure. Consumed is the number of bytes the
// reader should skip past to resynchronise on the next frame; it is zero when
// the stream position cannot be advanced safely.
type DecodeError struct {
	Kind     ErrorKind
	Consumed int
	Detail   string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("fix decode: %s", e.Kind)
	}
	return fmt.Sprintf("fix decode: %s: %s", e.Kind, e.Detail)
}

// IsNeedMore reports whether err indicates a partial frame.
func IsNeedMore(err error) bool {
	de, ok := err.(*DecodeError)
	return ok && de.Kind == KindNeedMore
}
