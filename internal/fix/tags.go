package fix

// Standard FIX tag numbers used by the session layer. Application-level tags
// beyond this set are resolved through the dictionary.
const (
	TagAccount             = 1
	TagAvgPx               = 6
	TagBeginSeqNo          = 7
	TagBeginString         = 8
	TagBodyLength          = 9
	TagCheckSum            = 10
	TagClOrdID             = 11
	TagCumQty              = 14
	TagCurrency            = 15
	TagEndSeqNo            = 16
	TagExecID              = 17
	TagExecTransType       = 20
	TagHandlInst           = 21
	TagLastPx              = 31
	TagLastQty             = 32
	TagMsgSeqNum           = 34
	TagMsgType             = 35
	TagNewSeqNo            = 36
	TagOrderID             = 37
	TagOrderQty            = 38
	TagOrdStatus           = 39
	TagOrdType             = 40
	TagOrigClOrdID         = 41
	TagPossDupFlag         = 43
	TagPrice               = 44
	TagRefSeqNum           = 45
	TagSenderCompID        = 49
	TagSenderSubID         = 50
	TagSendingTime         = 52
	TagSide                = 54
	TagSymbol              = 55
	TagTargetCompID        = 56
	TagTargetSubID         = 57
	TagText                = 58
	TagTimeInForce         = 59
	TagTransactTime        = 60
	TagSignature           = 89
	TagSecureDataLen       = 90
	TagSecureData          = 91
	TagSignatureLength     = 93
	TagRawDataLength       = 95
	TagRawData             = 96
	TagEncryptMethod       = 98
	TagHeartBtInt          = 108
	TagTestReqID           = 112
	TagOrigSendingTime     = 122
	TagGapFillFlag         = 123
	TagResetSeqNumFlag     = 141
	TagNoRelatedSym        = 146
	TagExecType            = 150
	TagLeavesQty           = 151
	TagXmlDataLen          = 212
	TagXmlData             = 213
	TagMDReqID             = 262
	TagSubscriptionType    = 263
	TagMarketDepth         = 264
	TagNoMDEntryTypes      = 267
	TagNoMDEntries         = 268
	TagMDEntryType         = 269
	TagMDEntryPx           = 270
	TagMDEntrySize         = 271
	TagRefTagID            = 371
	TagRefMsgType          = 372
	TagSessionRejectReason = 373
	TagMaxMessageSize      = 383
	TagNoMsgTypes          = 384
	TagMsgDirection        = 385
	TagDefaultApplVerID    = 1137
)

// DataLengthTags maps a length-prefix tag to the raw-data tag it governs.
// A raw-data value may contain SOH, so the decoder reads exactly the number
// of bytes declared by the preceding length field.
var DataLengthTags = map[int]int{
	TagSecureDataLen:   TagSecureData,
	TagRawDataLength:   TagRawData,
	TagXmlDataLen:      TagXmlData,
	TagSignatureLength: TagSignature,
}
