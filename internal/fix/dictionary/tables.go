package dictionary

import "github.com/rsouth/fixgate/internal/fix"

var yesNo = []string{"Y", "N"}

// baseFields is the shared tag catalog. Versions differ in their message
// tables, not in the meaning of individual tags.
var baseFields = []FieldSpec{
	{Tag: fix.TagAccount, Name: "Account", Type: TypeString},
	{Tag: fix.TagAvgPx, Name: "AvgPx", Type: TypeDecimal},
	{Tag: fix.TagBeginSeqNo, Name: "BeginSeqNo", Type: TypeInt},
	{Tag: fix.TagBeginString, Name: "BeginString", Type: TypeString},
	{Tag: fix.TagBodyLength, Name: "BodyLength", Type: TypeInt},
	{Tag: fix.TagCheckSum, Name: "CheckSum", Type: TypeString},
	{Tag: fix.TagClOrdID, Name: "ClOrdID", Type: TypeString},
	{Tag: fix.TagCumQty, Name: "CumQty", Type: TypeDecimal},
	{Tag: fix.TagCurrency, Name: "Currency", Type: TypeCurrency},
	{Tag: fix.TagEndSeqNo, Name: "EndSeqNo", Type: TypeInt},
	{Tag: fix.TagExecID, Name: "ExecID", Type: TypeString},
	{Tag: fix.TagExecTransType, Name: "ExecTransType", Type: TypeChar},
	{Tag: fix.TagHandlInst, Name: "HandlInst", Type: TypeChar},
	{Tag: fix.TagLastPx, Name: "LastPx", Type: TypeDecimal},
	{Tag: fix.TagLastQty, Name: "LastQty", Type: TypeDecimal},
	{Tag: fix.TagMsgSeqNum, Name: "MsgSeqNum", Type: TypeInt},
	{Tag: fix.TagMsgType, Name: "MsgType", Type: TypeString},
	{Tag: fix.TagNewSeqNo, Name: "NewSeqNo", Type: TypeInt},
	{Tag: fix.TagOrderID, Name: "OrderID", Type: TypeString},
	{Tag: fix.TagOrderQty, Name: "OrderQty", Type: TypeDecimal},
	{Tag: fix.TagOrdStatus, Name: "OrdStatus", Type: TypeChar},
	{Tag: fix.TagOrdType, Name: "OrdType", Type: TypeChar},
	{Tag: fix.TagOrigClOrdID, Name: "OrigClOrdID", Type: TypeString},
	{Tag: fix.TagOrigSendingTime, Name: "OrigSendingTime", Type: TypeUTCTimestamp},
	{Tag: fix.TagPossDupFlag, Name: "PossDupFlag", Type: TypeChar, Enum: yesNo},
	{Tag: fix.TagPrice, Name: "Price", Type: TypeDecimal},
	{Tag: fix.TagRefSeqNum, Name: "RefSeqNum", Type: TypeInt},
	{Tag: fix.TagSecureDataLen, Name: "SecureDataLen", Type: TypeInt},
	{Tag: fix.TagSecureData, Name: "SecureData", Type: TypeData},
	{Tag: fix.TagSenderCompID, Name: "SenderCompID", Type: TypeString},
	{Tag: fix.TagSenderSubID, Name: "SenderSubID", Type: TypeString},
	{Tag: fix.TagSendingTime, Name: "SendingTime", Type: TypeUTCTimestamp},
	{Tag: fix.TagSide, Name: "Side", Type: TypeChar},
	{Tag: fix.TagSymbol, Name: "Symbol", Type: TypeString},
	{Tag: fix.TagTargetCompID, Name: "TargetCompID", Type: TypeString},
	{Tag: fix.TagTargetSubID, Name: "TargetSubID", Type: TypeString},
	{Tag: fix.TagText, Name: "Text", Type: TypeString},
	{Tag: fix.TagTimeInForce, Name: "TimeInForce", Type: TypeChar},
	{Tag: fix.TagTransactTime, Name: "TransactTime", Type: TypeUTCTimestamp},
	{Tag: fix.TagSignature, Name: "Signature", Type: TypeData},
	{Tag: fix.TagSignatureLength, Name: "SignatureLength", Type: TypeInt},
	{Tag: fix.TagRawDataLength, Name: "RawDataLength", Type: TypeInt},
	{Tag: fix.TagRawData, Name: "RawData", Type: TypeData},
	{Tag: fix.TagEncryptMethod, Name: "EncryptMethod", Type: TypeInt},
	{Tag: fix.TagHeartBtInt, Name: "HeartBtInt", Type: TypeInt},
	{Tag: fix.TagTestReqID, Name: "TestReqID", Type: TypeString},
	{Tag: fix.TagGapFillFlag, Name: "GapFillFlag", Type: TypeChar, Enum: yesNo},
	{Tag: fix.TagResetSeqNumFlag, Name: "ResetSeqNumFlag", Type: TypeChar, Enum: yesNo},
	{Tag: fix.TagNoRelatedSym, Name: "NoRelatedSym", Type: TypeInt, GroupCount: true},
	{Tag: fix.TagExecType, Name: "ExecType", Type: TypeChar},
	{Tag: fix.TagLeavesQty, Name: "LeavesQty", Type: TypeDecimal},
	{Tag: fix.TagXmlDataLen, Name: "XmlDataLen", Type: TypeInt},
	{Tag: fix.TagXmlData, Name: "XmlData", Type: TypeData},
	{Tag: fix.TagMDReqID, Name: "MDReqID", Type: TypeString},
	{Tag: fix.TagSubscriptionType, Name: "SubscriptionRequestType", Type: TypeChar, Enum: []string{"0", "1", "2"}},
	{Tag: fix.TagMarketDepth, Name: "MarketDepth", Type: TypeInt},
	{Tag: fix.TagNoMDEntryTypes, Name: "NoMDEntryTypes", Type: TypeInt, GroupCount: true},
	{Tag: fix.TagNoMDEntries, Name: "NoMDEntries", Type: TypeInt, GroupCount: true},
	{Tag: fix.TagMDEntryType, Name: "MDEntryType", Type: TypeChar},
	{Tag: fix.TagMDEntryPx, Name: "MDEntryPx", Type: TypeDecimal},
	{Tag: fix.TagMDEntrySize, Name: "MDEntrySize", Type: TypeDecimal},
	{Tag: fix.TagRefTagID, Name: "RefTagID", Type: TypeInt},
	{Tag: fix.TagRefMsgType, Name: "RefMsgType", Type: TypeString},
	{Tag: fix.TagSessionRejectReason, Name: "SessionRejectReason", Type: TypeInt},
	{Tag: fix.TagMaxMessageSize, Name: "MaxMessageSize", Type: TypeInt},
	{Tag: fix.TagNoMsgTypes, Name: "NoMsgTypes", Type: TypeInt, GroupCount: true},
	{Tag: fix.TagMsgDirection, Name: "MsgDirection", Type: TypeChar},
	{Tag: fix.TagDefaultApplVerID, Name: "DefaultApplVerID", Type: TypeString},
}

// adminMessages are identical across the supported versions, except that
// Reject gained RefTagID/SessionRejectReason in FIX.4.2.
func adminMessages(modernReject bool) []MessageSpec {
	rejectOptional := []int{fix.TagText}
	if modernReject {
		rejectOptional = []int{fix.TagRefTagID, fix.TagRefMsgType, fix.TagSessionRejectReason, fix.TagText}
	}
	return []MessageSpec{
		{MsgType: fix.MsgTypeHeartbeat, Name: "Heartbeat",
			Optional: []int{fix.TagTestReqID}},
		{MsgType: fix.MsgTypeTestRequest, Name: "TestRequest",
			Required: []int{fix.TagTestReqID}},
		{MsgType: fix.MsgTypeResendRequest, Name: "ResendRequest",
			Required: []int{fix.TagBeginSeqNo, fix.TagEndSeqNo}},
		{MsgType: fix.MsgTypeReject, Name: "Reject",
			Required: []int{fix.TagRefSeqNum}, Optional: rejectOptional},
		{MsgType: fix.MsgTypeSequenceReset, Name: "SequenceReset",
			Required: []int{fix.TagNewSeqNo}, Optional: []int{fix.TagGapFillFlag}},
		{MsgType: fix.MsgTypeLogout, Name: "Logout",
			Optional: []int{fix.TagText}},
		{MsgType: fix.MsgTypeLogon, Name: "Logon",
			Required: []int{fix.TagEncryptMethod, fix.TagHeartBtInt},
			Optional: []int{fix.TagResetSeqNumFlag, fix.TagMaxMessageSize, fix.TagRawDataLength, fix.TagRawData, fix.TagDefaultApplVerID},
			Groups: []GroupSpec{{
				CountTag:     fix.TagNoMsgTypes,
				DelimiterTag: fix.TagRefMsgType,
				MemberTags:   []int{fix.TagMsgDirection},
			}},
		},
	}
}

func appMessages() []MessageSpec {
	return []MessageSpec{
		{MsgType: fix.MsgTypeNewOrderSingle, Name: "NewOrderSingle",
			Required: []int{fix.TagClOrdID, fix.TagSymbol, fix.TagSide, fix.TagTransactTime, fix.TagOrdType},
			Optional: []int{fix.TagAccount, fix.TagHandlInst, fix.TagOrderQty, fix.TagPrice, fix.TagTimeInForce, fix.TagCurrency, fix.TagText}},
		{MsgType: fix.MsgTypeExecutionReport, Name: "ExecutionReport",
			Required: []int{fix.TagOrderID, fix.TagExecID, fix.TagExecType, fix.TagOrdStatus, fix.TagSymbol, fix.TagSide, fix.TagLeavesQty, fix.TagCumQty, fix.TagAvgPx},
			Optional: []int{fix.TagClOrdID, fix.TagOrigClOrdID, fix.TagAccount, fix.TagOrderQty, fix.TagPrice, fix.TagLastPx, fix.TagLastQty, fix.TagCurrency, fix.TagTransactTime, fix.TagText}},
		{MsgType: fix.MsgTypeOrderCancelRequest, Name: "OrderCancelRequest",
			Required: []int{fix.TagOrigClOrdID, fix.TagClOrdID, fix.TagSymbol, fix.TagSide, fix.TagTransactTime},
			Optional: []int{fix.TagOrderID, fix.TagOrderQty, fix.TagText}},
		{MsgType: fix.MsgTypeMarketDataRequest, Name: "MarketDataRequest",
			Required: []int{fix.TagMDReqID, fix.TagSubscriptionType, fix.TagMarketDepth},
			Groups: []GroupSpec{
				{CountTag: fix.TagNoMDEntryTypes, DelimiterTag: fix.TagMDEntryType},
				{CountTag: fix.TagNoRelatedSym, DelimiterTag: fix.TagSymbol, MemberTags: []int{fix.TagCurrency}},
			}},
	}
}

func withApp(admin []MessageSpec) []MessageSpec {
	return append(admin, appMessages()...)
}

var messageTables = map[fix.BeginString][]MessageSpec{
	fix.BeginStringFIX40:  withApp(adminMessages(false)),
	fix.BeginStringFIX41:  withApp(adminMessages(false)),
	fix.BeginStringFIX42:  withApp(adminMessages(true)),
	fix.BeginStringFIX43:  withApp(adminMessages(true)),
	fix.BeginStringFIX44:  withApp(adminMessages(true)),
	fix.BeginStringFIX50:  withApp(adminMessages(true)),
	fix.BeginStringFIXT11: withApp(adminMessages(true)),
}
