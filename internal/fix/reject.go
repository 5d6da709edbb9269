package fix

// SessionRejectReason values (tag 373) emitted by the session layer.
const (
	RejectReasonInvalidTagNumber    = 0
	RejectReasonRequiredTagMissing  = 1
	RejectReasonTagNotDefinedForMsg = 2
	RejectReasonUndefinedTag        = 3
	RejectReasonTagWithoutValue     = 4
	RejectReasonValueIncorrect      = 5
	RejectReasonIncorrectDataFormat = 6
	RejectReasonCompIDProblem       = 9
	RejectReasonSendingTimeAccuracy = 10
	RejectReasonInvalidMsgType      = 11
	RejectReasonIncorrectNumInGroup = 16
)
