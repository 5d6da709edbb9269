package dictionary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsouth/fixgate/internal/fix"
)

func baseMessage(msgType string) *fix.Message {
	m := fix.NewMessage(msgType)
	m.Set(fix.NewStringField(fix.TagSenderCompID, "INIT"))
	m.Set(fix.NewStringField(fix.TagTargetCompID, "ACC"))
	m.Set(fix.NewSeqNumField(fix.TagMsgSeqNum, 1))
	m.Set(fix.NewUTCTimestampField(fix.TagSendingTime, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)))
	return m
}

func TestLookup(t *testing.T) {
	d := New()

	fs, ok := d.Lookup(fix.BeginStringFIX44, fix.TagHeartBtInt)
	require.True(t, ok)
	assert.Equal(t, "HeartBtInt", fs.Name)
	assert.Equal(t, TypeInt, fs.Type)

	_, ok = d.Lookup(fix.BeginStringFIX44, 99999)
	assert.False(t, ok)
}

func TestMessageSpecPerVersion(t *testing.T) {
	d := New()

	ms, ok := d.MessageSpec(fix.BeginStringFIX42, fix.MsgTypeReject)
	require.True(t, ok)
	assert.Contains(t, ms.Optional, fix.TagSessionRejectReason)

	ms, ok = d.MessageSpec(fix.BeginStringFIX40, fix.MsgTypeReject)
	require.True(t, ok)
	assert.NotContains(t, ms.Optional, fix.TagSessionRejectReason)

	_, ok = d.MessageSpec(fix.BeginStringFIX44, "ZZ")
	assert.False(t, ok)
}

func TestValidateCleanHeartbeat(t *testing.T) {
	d := New()
	m := baseMessage(fix.MsgTypeHeartbeat)
	assert.Nil(t, d.Validate(fix.BeginStringFIX44, m))
}

func TestValidateUnknownMsgType(t *testing.T) {
	d := New()
	m := baseMessage("ZZ")
	v := d.Validate(fix.BeginStringFIX44, m)
	require.NotNil(t, v)
	assert.Equal(t, fix.RejectReasonInvalidMsgType, v.Reason)
	assert.Equal(t, fix.TagMsgType, v.RefTag)
}

func TestValidateUnknownTag(t *testing.T) {
	d := New()
	m := baseMessage(fix.MsgTypeHeartbeat)
	m.Set(fix.NewStringField(12345, "x"))
	v := d.Validate(fix.BeginStringFIX44, m)
	require.NotNil(t, v)
	assert.Equal(t, fix.RejectReasonInvalidTagNumber, v.Reason)
	assert.Equal(t, 12345, v.RefTag)
}

func TestValidateEmptyValue(t *testing.T) {
	d := New()
	m := baseMessage(fix.MsgTypeHeartbeat)
	m.Set(fix.NewStringField(fix.TagTestReqID, ""))
	v := d.Validate(fix.BeginStringFIX44, m)
	require.NotNil(t, v)
	assert.Equal(t, fix.RejectReasonTagWithoutValue, v.Reason)
	assert.Equal(t, fix.TagTestReqID, v.RefTag)
}

func TestValidateBadFormat(t *testing.T) {
	d := New()
	m := baseMessage(fix.MsgTypeSequenceReset)
	m.Set(fix.NewStringField(fix.TagNewSeqNo, "abc"))
	v := d.Validate(fix.BeginStringFIX44, m)
	require.NotNil(t, v)
	assert.Equal(t, fix.RejectReasonIncorrectDataFormat, v.Reason)
	assert.Equal(t, fix.TagNewSeqNo, v.RefTag)
}

func TestValidateEnumViolation(t *testing.T) {
	d := New()
	m := baseMessage(fix.MsgTypeSequenceReset)
	m.Set(fix.NewSeqNumField(fix.TagNewSeqNo, 10))
	m.Set(fix.NewStringField(fix.TagGapFillFlag, "X"))
	v := d.Validate(fix.BeginStringFIX44, m)
	require.NotNil(t, v)
	assert.Equal(t, fix.RejectReasonValueIncorrect, v.Reason)
	assert.Equal(t, fix.TagGapFillFlag, v.RefTag)
}

func TestValidateRequiredMissing(t *testing.T) {
	d := New()

	m := baseMessage(fix.MsgTypeTestRequest)
	v := d.Validate(fix.BeginStringFIX44, m)
	require.NotNil(t, v)
	assert.Equal(t, fix.RejectReasonRequiredTagMissing, v.Reason)
	assert.Equal(t, fix.TagTestReqID, v.RefTag)

	// missing header field
	m2 := baseMessage(fix.MsgTypeHeartbeat)
	m2.Remove(fix.TagSendingTime)
	v = d.Validate(fix.BeginStringFIX44, m2)
	require.NotNil(t, v)
	assert.Equal(t, fix.RejectReasonRequiredTagMissing, v.Reason)
	assert.Equal(t, fix.TagSendingTime, v.RefTag)
}

func TestValidateLargeSeqNum(t *testing.T) {
	d := New()
	m := baseMessage(fix.MsgTypeHeartbeat)
	m.Set(fix.NewSeqNumField(fix.TagMsgSeqNum, 9_000_000_000_000_000_000))
	assert.Nil(t, d.Validate(fix.BeginStringFIX44, m))
}

func TestValidateGroupCountMismatch(t *testing.T) {
	d := New()
	m := baseMessage(fix.MsgTypeMarketDataRequest)
	m.Set(fix.NewStringField(fix.TagMDReqID, "req-1"))
	m.Set(fix.NewCharField(fix.TagSubscriptionType, '1'))
	m.Set(fix.NewIntField(fix.TagMarketDepth, 0))
	m.Append(fix.NewIntField(fix.TagNoMDEntryTypes, 2))
	m.Append(fix.NewCharField(fix.TagMDEntryType, '0'))
	// declares 2 entry types, carries 1

	v := d.Validate(fix.BeginStringFIX44, m)
	require.NotNil(t, v)
	assert.Equal(t, fix.RejectReasonIncorrectNumInGroup, v.Reason)
	assert.Equal(t, fix.TagNoMDEntryTypes, v.RefTag)
}

func TestMaterializeGroup(t *testing.T) {
	m := baseMessage(fix.MsgTypeMarketDataRequest)
	m.Set(fix.NewStringField(fix.TagMDReqID, "req-1"))
	m.Set(fix.NewCharField(fix.TagSubscriptionType, '1'))
	m.Set(fix.NewIntField(fix.TagMarketDepth, 0))
	m.Append(fix.NewIntField(fix.TagNoRelatedSym, 2))
	m.Append(fix.NewStringField(fix.TagSymbol, "EUR/USD"))
	m.Append(fix.NewStringField(fix.TagCurrency, "EUR"))
	m.Append(fix.NewStringField(fix.TagSymbol, "GBP/USD"))

	g := GroupSpec{CountTag: fix.TagNoRelatedSym, DelimiterTag: fix.TagSymbol, MemberTags: []int{fix.TagCurrency}}
	entries := MaterializeGroup(m, g)
	require.Len(t, entries, 2)
	assert.Equal(t, "EUR/USD", string(entries[0][0].Value))
	require.Len(t, entries[0], 2)
	assert.Equal(t, "EUR", string(entries[0][1].Value))
	require.Len(t, entries[1], 1)
	assert.Equal(t, "GBP/USD", string(entries[1][0].Value))
}
