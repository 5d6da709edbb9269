package fix

import (
	"fmt"
	"strings"
)

// Message is an ordered collection of fields. Set replaces an existing field
// in place, preserving its position; new tags append. Header and trailer
// ordering (8, 9, 35 first, 10 last) is imposed by the codec at encode time,
// not by the container.
type Message struct {
	fields []Field
}

// NewMessage builds an empty message of the given type.
func NewMessage(msgType string) *Message {
	m := &Message{}
	m.Set(NewStringField(TagMsgType, msgType))
	return m
}

// Set stores a field, replacing any existing value for the same tag.
func (m *Message) Set(f Field) {
	for i := range m.fields {
		if m.fields[i].Tag == f.Tag {
			m.fields[i] = f
			return
		}
	}
	m.fields = append(m.fields, f)
}

// Append adds a field without replacing earlier occurrences of the tag.
// Required for repeating groups, where a tag may legally recur.
func (m *Message) Append(f Field) {
	m.fields = append(m.fields, f)
}

// Get returns the first field with the given tag.
func (m *Message) Get(tag int) (Field, bool) {
	for _, f := range m.fields {
		if f.Tag == tag {
			return f, true
		}
	}
	return Field{}, false
}

// Has reports whether the message carries the given tag.
func (m *Message) Has(tag int) bool {
	_, ok := m.Get(tag)
	return ok
}

// Remove deletes every occurrence of the given tag.
func (m *Message) Remove(tag int) {
	out := m.fields[:0]
	for _, f := range m.fields {
		if f.Tag != tag {
			out = append(out, f)
		}
	}
	m.fields = out
}

// Fields returns the fields in order. The slice is owned by the message.
func (m *Message) Fields() []Field { return m.fields }

// GetString returns the raw string value for a tag, or "" if absent.
func (m *Message) GetString(tag int) string {
	f, ok := m.Get(tag)
	if !ok {
		return ""
	}
	return f.String()
}

// GetInt returns the integer value for a tag.
func (m *Message) GetInt(tag int) (int, error) {
	f, ok := m.Get(tag)
	if !ok {
		return 0, fmt.Errorf("tag %d not present", tag)
	}
	return f.Int()
}

// GetUint64 returns the unsigned integer value for a tag.
func (m *Message) GetUint64(tag int) (uint64, error) {
	f, ok := m.Get(tag)
	if !ok {
		return 0, fmt.Errorf("tag %d not present", tag)
	}
	return f.Uint64()
}

// GetBool returns the Y/N value for a tag, false if absent.
func (m *Message) GetBool(tag int) bool {
	f, ok := m.Get(tag)
	return ok && f.Bool()
}

// MsgType returns the tag 35 value, or "" if unset.
func (m *Message) MsgType() string { return m.GetString(TagMsgType) }

// SeqNum returns the tag 34 value.
func (m *Message) SeqNum() (uint64, error) { return m.GetUint64(TagMsgSeqNum) }

// IsAdmin reports whether this is a session-layer message.
func (m *Message) IsAdmin() bool { return IsAdminMsgType(m.MsgType()) }

// PossDup reports whether the message carries PossDupFlag=Y.
func (m *Message) PossDup() bool { return m.GetBool(TagPossDupFlag) }

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	c := &Message{fields: make([]Field, len(m.fields))}
	for i, f := range m.fields {
		v := make([]byte, len(f.Value))
		copy(v, f.Value)
		c.fields[i] = Field{Tag: f.Tag, Value: v}
	}
	return c
}

// String renders the message with '|' separators for logs.
func (m *Message) String() string {
	var b strings.Builder
	for _, f := range m.fields {
		fmt.Fprintf(&b, "%d=%s|", f.Tag, f.Value)
	}
	return b.String()
}
