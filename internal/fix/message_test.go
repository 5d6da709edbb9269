package fix

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageSetReplacesInPlace(t *testing.T) {
	m := NewMessage(MsgTypeNewOrderSingle)
	m.Set(NewStringField(TagClOrdID, "a"))
	m.Set(NewStringField(TagSymbol, "IBM"))
	m.Set(NewStringField(TagClOrdID, "b"))

	assert.Equal(t, "b", m.GetString(TagClOrdID))
	var tags []int
	for _, f := range m.Fields() {
		tags = append(tags, f.Tag)
	}
	assert.Equal(t, []int{TagMsgType, TagClOrdID, TagSymbol}, tags)
}

func TestMessageAppendKeepsDuplicates(t *testing.T) {
	m := NewMessage(MsgTypeMarketDataRequest)
	m.Append(NewStringField(TagSymbol, "EUR/USD"))
	m.Append(NewStringField(TagSymbol, "GBP/USD"))

	count := 0
	for _, f := range m.Fields() {
		if f.Tag == TagSymbol {
			count++
		}
	}
	assert.Equal(t, 2, count)

	m.Remove(TagSymbol)
	assert.False(t, m.Has(TagSymbol))
}

func TestMessageClone(t *testing.T) {
	m := NewMessage(MsgTypeHeartbeat)
	m.Set(NewStringField(TagTestReqID, "x"))

	c := m.Clone()
	c.Set(NewStringField(TagTestReqID, "y"))
	assert.Equal(t, "x", m.GetString(TagTestReqID))
	assert.Equal(t, "y", c.GetString(TagTestReqID))
}

func TestFieldCoercions(t *testing.T) {
	assert.True(t, NewBoolField(TagPossDupFlag, true).Bool())
	assert.False(t, NewBoolField(TagPossDupFlag, false).Bool())

	n, err := NewIntField(TagHeartBtInt, 30).Int()
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	u, err := NewSeqNumField(TagMsgSeqNum, 18446744073709551615).Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), u)

	d, err := NewDecimalField(TagPrice, decimal.RequireFromString("101.25")).Decimal()
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("101.25")))

	ts := time.Date(2024, 3, 1, 9, 30, 0, 250000000, time.UTC)
	parsed, err := NewUTCTimestampField(TagSendingTime, ts).UTCTimestamp()
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))

	// second-precision timestamps from older counterparties still parse
	parsed, err = NewStringField(TagSendingTime, "20240301-09:30:00").UTCTimestamp()
	require.NoError(t, err)
	assert.Equal(t, 2024, parsed.Year())

	_, err = NewStringField(TagCurrency, "EURO").Currency()
	assert.Error(t, err)
	cur, err := NewStringField(TagCurrency, "EUR").Currency()
	require.NoError(t, err)
	assert.Equal(t, "EUR", cur)
}

func TestParseBeginString(t *testing.T) {
	for _, ok := range []string{"FIX.4.0", "FIX.4.2", "FIX.4.4", "FIX.5.0", "FIXT.1.1"} {
		bs, valid := ParseBeginString([]byte(ok))
		assert.True(t, valid, ok)
		assert.Equal(t, ok, bs.String())
	}
	for _, bad := range []string{"", "FIX44", "FIX.4.4.1", "fix.4.4", "HELLO"} {
		_, valid := ParseBeginString([]byte(bad))
		assert.False(t, valid, bad)
	}

	assert.False(t, BeginString("FIX.4.0").SupportsModernReject())
	assert.True(t, BeginString("FIX.4.2").SupportsModernReject())
}

func TestSessionIDFromMessage(t *testing.T) {
	m := NewMessage(MsgTypeLogon)
	m.Set(NewStringField(TagBeginString, "FIX.4.4"))
	m.Set(NewStringField(TagSenderCompID, "THEM"))
	m.Set(NewStringField(TagTargetCompID, "US"))

	sid, err := SessionIDFromMessage(m)
	require.NoError(t, err)
	assert.Equal(t, "FIX.4.4-US-THEM", sid.String())
	assert.Equal(t, sid.Reverse().SenderCompID, "THEM")

	m.Remove(TagSenderCompID)
	_, err = SessionIDFromMessage(m)
	assert.Error(t, err)
}

func TestAdminClassification(t *testing.T) {
	for _, mt := range []string{"0", "1", "2", "3", "4", "5", "A"} {
		assert.True(t, IsAdminMsgType(mt), mt)
	}
	for _, mt := range []string{"D", "8", "F", "V", "AE", ""} {
		assert.False(t, IsAdminMsgType(mt), mt)
	}
}
