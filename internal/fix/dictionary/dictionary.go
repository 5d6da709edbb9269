// Package dictionary maps tag numbers to field specifications and message
// types to required-field tables. The tables are static, loaded once, and
// shared read-only by every session.
package dictionary

import (
	"fmt"

	"github.com/rsouth/fixgate/internal/fix"
)

// FieldType is the wire type of a field value.
type FieldType int

const (
	TypeString FieldType = iota
	TypeChar
	TypeInt
	TypeDecimal
	TypeData
	TypeUTCTimestamp
	TypeCurrency
)

// FieldSpec describes one tag.
type FieldSpec struct {
	Tag        int
	Name       string
	Type       FieldType
	Enum       []string // allowed values; nil means unrestricted
	GroupCount bool     // the tag introduces a repeating group
}

// GroupSpec describes a repeating group: the count tag, the delimiter field
// that starts each entry, and the member tags an entry may carry.
type GroupSpec struct {
	CountTag     int
	DelimiterTag int
	MemberTags   []int
}

// MessageSpec describes the body-field rules for one MsgType.
type MessageSpec struct {
	MsgType  string
	Name     string
	Required []int
	Optional []int
	Groups   []GroupSpec
}

// requiredHeaderTags are the header fields every message must carry beyond
// the framing fields the codec itself enforces (8, 9, 35, 10).
var requiredHeaderTags = []int{
	fix.TagSenderCompID,
	fix.TagTargetCompID,
	fix.TagMsgSeqNum,
	fix.TagSendingTime,
}

// Dictionary is the per-BeginString field and message catalog.
type Dictionary struct {
	fields   map[int]FieldSpec
	messages map[fix.BeginString]map[string]MessageSpec
}

// New loads the static tables.
func New() *Dictionary {
	d := &Dictionary{
		fields:   make(map[int]FieldSpec, len(baseFields)),
		messages: make(map[fix.BeginString]map[string]MessageSpec),
	}
	for _, fs := range baseFields {
		d.fields[fs.Tag] = fs
	}
	for bs, specs := range messageTables {
		byType := make(map[string]MessageSpec, len(specs))
		for _, ms := range specs {
			byType[ms.MsgType] = ms
		}
		d.messages[bs] = byType
	}
	return d
}

// Lookup returns the field spec for a tag, if defined.
func (d *Dictionary) Lookup(bs fix.BeginString, tag int) (FieldSpec, bool) {
	fs, ok := d.fields[tag]
	return fs, ok
}

// MessageSpec returns the message spec for a MsgType under a BeginString.
func (d *Dictionary) MessageSpec(bs fix.BeginString, msgType string) (MessageSpec, bool) {
	byType, ok := d.messages[bs]
	if !ok {
		return MessageSpec{}, false
	}
	ms, ok := byType[msgType]
	return ms, ok
}

// Violation is a dictionary-rule failure on a decoded message, carrying the
// data needed to build a session-level Reject.
type Violation struct {
	RefTag int
	Reason int // SessionRejectReason
	Text   string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("dictionary violation (tag %d, reason %d): %s", v.RefTag, v.Reason, v.Text)
}

// Validate checks a decoded message against the catalog: known tags, known
// MsgType, required header and body fields, typed value coercion, enumerated
// values and repeating-group counts. The first violation found is returned.
func (d *Dictionary) Validate(bs fix.BeginString, m *fix.Message) *Violation {
	msgType := m.MsgType()
	spec, ok := d.MessageSpec(bs, msgType)
	if !ok {
		return &Violation{RefTag: fix.TagMsgType, Reason: fix.RejectReasonInvalidMsgType,
			Text: fmt.Sprintf("unknown MsgType %q", msgType)}
	}

	for _, f := range m.Fields() {
		fs, known := d.fields[f.Tag]
		if !known {
			return &Violation{RefTag: f.Tag, Reason: fix.RejectReasonInvalidTagNumber,
				Text: fmt.Sprintf("tag %d not defined", f.Tag)}
		}
		if len(f.Value) == 0 {
			return &Violation{RefTag: f.Tag, Reason: fix.RejectReasonTagWithoutValue,
				Text: fmt.Sprintf("tag %d has no value", f.Tag)}
		}
		if err := checkType(fs, f); err != nil {
			return &Violation{RefTag: f.Tag, Reason: fix.RejectReasonIncorrectDataFormat, Text: err.Error()}
		}
		if len(fs.Enum) > 0 && !contains(fs.Enum, f.String()) {
			return &Violation{RefTag: f.Tag, Reason: fix.RejectReasonValueIncorrect,
				Text: fmt.Sprintf("value %q not allowed for tag %d", f.Value, f.Tag)}
		}
	}

	for _, tag := range requiredHeaderTags {
		if !m.Has(tag) {
			return &Violation{RefTag: tag, Reason: fix.RejectReasonRequiredTagMissing,
				Text: fmt.Sprintf("required header tag %d missing", tag)}
		}
	}
	for _, tag := range spec.Required {
		if !m.Has(tag) {
			return &Violation{RefTag: tag, Reason: fix.RejectReasonRequiredTagMissing,
				Text: fmt.Sprintf("required tag %d missing for MsgType %q", tag, msgType)}
		}
	}

	for _, g := range spec.Groups {
		if v := d.validateGroup(m, g); v != nil {
			return v
		}
	}
	return nil
}

func (d *Dictionary) validateGroup(m *fix.Message, g GroupSpec) *Violation {
	f, ok := m.Get(g.CountTag)
	if !ok {
		return nil
	}
	declared, err := f.Int()
	if err != nil || declared < 0 {
		return &Violation{RefTag: g.CountTag, Reason: fix.RejectReasonIncorrectDataFormat,
			Text: fmt.Sprintf("bad group count value %q", f.Value)}
	}
	entries := MaterializeGroup(m, g)
	if len(entries) != declared {
		return &Violation{RefTag: g.CountTag, Reason: fix.RejectReasonIncorrectNumInGroup,
			Text: fmt.Sprintf("group %d declares %d entries, found %d", g.CountTag, declared, len(entries))}
	}
	return nil
}

// MaterializeGroup splits the fields following a group-count tag into entries.
// Each entry begins at the delimiter tag and extends until the next delimiter
// or the first tag that is not a member of the group. Decoding is deferred to
// this call; the codec never interprets groups.
func MaterializeGroup(m *fix.Message, g GroupSpec) [][]fix.Field {
	members := make(map[int]bool, len(g.MemberTags))
	for _, t := range g.MemberTags {
		members[t] = true
	}
	members[g.DelimiterTag] = true

	fields := m.Fields()
	start := -1
	for i, f := range fields {
		if f.Tag == g.CountTag {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}

	var entries [][]fix.Field
	var current []fix.Field
	for _, f := range fields[start:] {
		if f.Tag == g.DelimiterTag {
			if current != nil {
				entries = append(entries, current)
			}
			current = []fix.Field{f}
			continue
		}
		if current == nil || !members[f.Tag] {
			break
		}
		current = append(current, f)
	}
	if current != nil {
		entries = append(entries, current)
	}
	return entries
}

func checkType(fs FieldSpec, f fix.Field) error {
	switch fs.Type {
	case TypeInt:
		if _, err := f.Int(); err == nil {
			return nil
		}
		// Sequence counters are unsigned 64-bit and may exceed int32.
		_, err := f.Uint64()
		return err
	case TypeDecimal:
		_, err := f.Decimal()
		return err
	case TypeChar:
		_, err := f.Char()
		return err
	case TypeUTCTimestamp:
		_, err := f.UTCTimestamp()
		return err
	case TypeCurrency:
		_, err := f.Currency()
		return err
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
