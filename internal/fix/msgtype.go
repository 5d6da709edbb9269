package fix

// Administrative message types (tag 35).
const (
	MsgTypeHeartbeat     = "0"
	MsgTypeTestRequest   = "1"
	MsgTypeResendRequest = "2"
	MsgTypeReject        = "3"
	MsgTypeSequenceReset = "4"
	MsgTypeLogout        = "5"
	MsgTypeLogon         = "A"
)

// Common application message types referenced by the dictionary tables.
const (
	MsgTypeNewOrderSingle     = "D"
	MsgTypeExecutionReport    = "8"
	MsgTypeOrderCancelRequest = "F"
	MsgTypeMarketDataRequest  = "V"
)

// IsAdminMsgType reports whether a MsgType value belongs to the session
// layer rather than the application.
func IsAdminMsgType(msgType string) bool {
	switch msgType {
	case MsgTypeHeartbeat, MsgTypeTestRequest, MsgTypeResendRequest,
		MsgTypeReject, MsgTypeSequenceReset, MsgTypeLogout, MsgTypeLogon:
		return true
	}
	return false
}
