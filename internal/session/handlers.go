package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rsouth/fixgate/internal/fix"
	"github.com/rsouth/fixgate/pkg/metrics"
)

func newTestReqID() string { return uuid.NewString() }

// handleInbound is the entry point for every decoded message. Sequence
// classification comes first; only an in-sequence message is validated
// against the dictionary and dispatched.
func (s *Session) handleInbound(msg *fix.Message) {
	if !s.state.IsConnected() {
		return
	}
	s.lastRecv = s.now()
	s.pendingTestReqID = ""
	s.testReqDeadline = time.Time{}
	s.countReceived(msg)

	// The first message on a fresh connection must be a Logon. A Logout in
	// reply to our own Logon is the counterparty declining the session.
	if (s.state == AwaitingLogon || s.state == LogonSent) && msg.MsgType() != fix.MsgTypeLogon {
		if msg.MsgType() == fix.MsgTypeLogout {
			s.log.Warn("logon declined", zap.String("text", msg.GetString(fix.TagText)))
		} else {
			s.log.Warn("expected Logon, dropping connection",
				zap.String("msg_type", msg.MsgType()))
		}
		s.disconnect()
		return
	}

	if !s.checkCompIDs(msg) {
		return
	}

	seq, err := msg.SeqNum()
	if err != nil {
		s.log.Warn("inbound message without usable MsgSeqNum", zap.Error(err))
		s.sendLogoutAndDrop("MsgSeqNum missing or malformed")
		return
	}

	// SequenceReset in reset mode rewrites the expectation outright and is
	// processed regardless of its own sequence number.
	if msg.MsgType() == fix.MsgTypeSequenceReset && !msg.GetBool(fix.TagGapFillFlag) {
		s.handleSeqReset(msg, seq)
		return
	}

	// A Logon carrying ResetSeqNumFlag=Y restarts both streams at 1. When we
	// initiated the reset ourselves the peer's flag merely confirms it; the
	// counters already moved past 1 for our own Logon.
	if msg.MsgType() == fix.MsgTypeLogon && msg.GetBool(fix.TagResetSeqNumFlag) &&
		!(s.state == LogonSent && s.settings.ResetOnLogon) {
		if err := s.store.Reset(s.sid); err != nil {
			s.fatal(fmt.Errorf("reset store on logon: %w", err))
			return
		}
		s.nextSenderSeq = 1
		s.nextTargetSeq = 1
	}

	expected := s.nextTargetSeq
	switch {
	case seq < expected:
		if msg.PossDup() {
			s.log.Debug("discarding possdup below expectation",
				zap.Uint64("seq", seq), zap.Uint64("expected", expected))
			return
		}
		s.sendLogoutAndDrop(fmt.Sprintf("MsgSeqNum too low, expecting %d but received %d", expected, seq))

	case seq > expected:
		if msg.MsgType() == fix.MsgTypeLogon {
			// Process the logon so the link comes up, then recover the gap.
			// The counter stays put; the gap closes via replay.
			s.processLogon(msg)
			if s.state == LoggedIn {
				s.requestResend(expected, seq-1)
			}
			return
		}
		s.buffered[seq] = msg
		s.maybeRequestResend()

	default:
		s.processSequenced(msg, seq)
		s.drainBuffered()
	}
}

// processSequenced consumes a message whose sequence number matched the
// expectation exactly. The counter advance is persisted before any reply or
// callback so a crash cannot re-consume the message.
func (s *Session) processSequenced(msg *fix.Message, seq uint64) {
	if err := s.advanceTarget(seq + 1); err != nil {
		return
	}

	if v := s.dict.Validate(s.settings.BeginString, msg); v != nil {
		s.log.Warn("dictionary violation", zap.Uint64("seq", seq), zap.Error(v))
		s.sendReject(seq, msg.MsgType(), v.RefTag, v.Reason, v.Text)
		return
	}

	if msg.IsAdmin() {
		s.dispatchAdmin(msg, seq)
		return
	}
	s.app.OnMessage(s.sid, msg)
}

func (s *Session) advanceTarget(next uint64) error {
	if err := s.store.SetNextTargetSeq(s.sid, next); err != nil {
		s.fatal(fmt.Errorf("persist target seq %d: %w", next, err))
		return err
	}
	s.nextTargetSeq = next
	return nil
}

// drainBuffered releases queued out-of-order messages that have become
// contiguous after a replay closed the gap in front of them.
func (s *Session) drainBuffered() {
	for {
		msg, ok := s.buffered[s.nextTargetSeq]
		if !ok {
			break
		}
		delete(s.buffered, s.nextTargetSeq)
		s.processSequenced(msg, s.nextTargetSeq)
		if !s.state.IsConnected() {
			return
		}
	}
	if s.resendBegin != 0 && s.nextTargetSeq > s.resendEnd {
		s.resendBegin, s.resendEnd = 0, 0
	}
	s.maybeRequestResend()
}

// maybeRequestResend issues a ResendRequest for the gap in front of the
// earliest buffered message, keeping at most one request outstanding.
func (s *Session) maybeRequestResend() {
	if len(s.buffered) == 0 || s.resendBegin != 0 {
		return
	}
	var lowest uint64
	for seq := range s.buffered {
		if lowest == 0 || seq < lowest {
			lowest = seq
		}
	}
	s.requestResend(s.nextTargetSeq, lowest-1)
}

func (s *Session) requestResend(begin, end uint64) {
	rr := fix.NewMessage(fix.MsgTypeResendRequest)
	rr.Set(fix.NewSeqNumField(fix.TagBeginSeqNo, begin))
	rr.Set(fix.NewSeqNumField(fix.TagEndSeqNo, end))
	if s.send(rr) != nil {
		return
	}
	s.resendBegin, s.resendEnd = begin, end
	s.log.Info("requested resend", zap.Uint64("begin", begin), zap.Uint64("end", end))
}

func (s *Session) dispatchAdmin(msg *fix.Message, seq uint64) {
	switch msg.MsgType() {
	case fix.MsgTypeLogon:
		s.processLogon(msg)
	case fix.MsgTypeHeartbeat:
		// liveness already refreshed in handleInbound
	case fix.MsgTypeTestRequest:
		hb := fix.NewMessage(fix.MsgTypeHeartbeat)
		if id := msg.GetString(fix.TagTestReqID); id != "" {
			hb.Set(fix.NewStringField(fix.TagTestReqID, id))
		}
		s.send(hb)
	case fix.MsgTypeResendRequest:
		s.fulfillResend(msg, seq)
	case fix.MsgTypeSequenceReset:
		s.handleGapFill(msg, seq)
	case fix.MsgTypeReject:
		s.log.Warn("counterparty rejected our message",
			zap.String("ref_seq", msg.GetString(fix.TagRefSeqNum)),
			zap.String("reason", msg.GetString(fix.TagSessionRejectReason)),
			zap.String("text", msg.GetString(fix.TagText)))
	case fix.MsgTypeLogout:
		s.processLogout(msg)
	}
}

func (s *Session) processLogon(msg *fix.Message) {
	switch s.state {
	case LogonSent:
		s.logonDeadline = time.Time{}
		s.setState(LoggedIn)
		s.wasLoggedIn = true
		s.app.OnLogon(s.sid)

	case AwaitingLogon:
		hb, err := msg.GetInt(fix.TagHeartBtInt)
		if err != nil || hb < 1 || hb > 3600 {
			s.log.Warn("rejecting logon with bad HeartBtInt",
				zap.String("heart_bt_int", msg.GetString(fix.TagHeartBtInt)))
			s.sendLogoutAndDrop("invalid HeartBtInt")
			return
		}
		s.heartbeat = time.Duration(hb) * time.Second

		reply := fix.NewMessage(fix.MsgTypeLogon)
		reply.Set(fix.NewIntField(fix.TagEncryptMethod, 0))
		reply.Set(fix.NewIntField(fix.TagHeartBtInt, hb))
		if msg.GetBool(fix.TagResetSeqNumFlag) {
			reply.Set(fix.NewBoolField(fix.TagResetSeqNumFlag, true))
		}
		if s.send(reply) != nil {
			return
		}
		s.logonDeadline = time.Time{}
		s.setState(LoggedIn)
		s.wasLoggedIn = true
		s.app.OnLogon(s.sid)

	case LoggedIn:
		s.log.Warn("duplicate logon while logged in, ignoring")
	}
}

func (s *Session) processLogout(msg *fix.Message) {
	if text := msg.GetString(fix.TagText); text != "" {
		s.log.Info("counterparty logout", zap.String("text", text))
	}
	if s.state == LogoutSent {
		// our logout confirmed
		s.disconnect()
		return
	}
	echo := fix.NewMessage(fix.MsgTypeLogout)
	s.send(echo)
	s.disconnect()
}

// handleSeqReset applies a SequenceReset in reset mode (GapFillFlag absent or
// N). Raising the expectation is accepted; lowering it is rejected.
func (s *Session) handleSeqReset(msg *fix.Message, seq uint64) {
	newSeq, err := msg.GetUint64(fix.TagNewSeqNo)
	if err != nil {
		s.sendReject(seq, msg.MsgType(), fix.TagNewSeqNo, fix.RejectReasonRequiredTagMissing, "NewSeqNo missing")
		return
	}
	if newSeq < s.nextTargetSeq {
		s.sendReject(seq, msg.MsgType(), fix.TagNewSeqNo, fix.RejectReasonValueIncorrect,
			fmt.Sprintf("NewSeqNo %d would lower expected %d", newSeq, s.nextTargetSeq))
		return
	}
	if err := s.advanceTarget(newSeq); err != nil {
		return
	}
	s.log.Info("sequence reset applied", zap.Uint64("new_seq", newSeq))
	s.drainBuffered()
}

// handleGapFill applies a SequenceReset-GapFill that arrived in sequence.
// The expectation has already advanced past the gap fill itself.
func (s *Session) handleGapFill(msg *fix.Message, seq uint64) {
	newSeq, err := msg.GetUint64(fix.TagNewSeqNo)
	if err != nil {
		s.sendReject(seq, msg.MsgType(), fix.TagNewSeqNo, fix.RejectReasonRequiredTagMissing, "NewSeqNo missing")
		return
	}
	if newSeq < s.nextTargetSeq {
		s.sendReject(seq, msg.MsgType(), fix.TagNewSeqNo, fix.RejectReasonValueIncorrect,
			fmt.Sprintf("NewSeqNo %d would lower expected %d", newSeq, s.nextTargetSeq))
		return
	}
	if err := s.advanceTarget(newSeq); err != nil {
		return
	}
	s.log.Debug("gap fill applied", zap.Uint64("from", seq), zap.Uint64("to", newSeq))
}

func (s *Session) checkCompIDs(msg *fix.Message) bool {
	sender := msg.GetString(fix.TagSenderCompID)
	target := msg.GetString(fix.TagTargetCompID)
	if sender == s.settings.TargetCompID && target == s.settings.SenderCompID {
		return true
	}
	s.log.Warn("comp ID mismatch",
		zap.String("sender", sender), zap.String("target", target))
	if msg.MsgType() == fix.MsgTypeLogon {
		// cannot establish a session for an identity we don't serve
		s.sendLogoutAndDrop("unknown SenderCompID/TargetCompID")
		return false
	}
	seq, err := msg.SeqNum()
	if err == nil && seq == s.nextTargetSeq {
		if s.advanceTarget(seq+1) != nil {
			return false
		}
		tag := fix.TagSenderCompID
		if target != s.settings.SenderCompID {
			tag = fix.TagTargetCompID
		}
		s.sendReject(seq, msg.MsgType(), tag, fix.RejectReasonCompIDProblem, "CompID problem")
	}
	return false
}

func (s *Session) sendReject(refSeq uint64, refMsgType string, refTag, reason int, text string) {
	rej := fix.NewMessage(fix.MsgTypeReject)
	rej.Set(fix.NewSeqNumField(fix.TagRefSeqNum, refSeq))
	if s.settings.BeginString.SupportsModernReject() {
		if refTag > 0 {
			rej.Set(fix.NewIntField(fix.TagRefTagID, refTag))
		}
		if refMsgType != "" {
			rej.Set(fix.NewStringField(fix.TagRefMsgType, refMsgType))
		}
		rej.Set(fix.NewIntField(fix.TagSessionRejectReason, reason))
	}
	if text != "" {
		rej.Set(fix.NewStringField(fix.TagText, text))
	}
	if s.send(rej) == nil {
		metrics.RejectsSent.WithLabelValues(s.sid.String()).Inc()
	}
}

func (s *Session) sendLogoutAndDrop(text string) {
	logout := fix.NewMessage(fix.MsgTypeLogout)
	if text != "" {
		logout.Set(fix.NewStringField(fix.TagText, text))
	}
	s.send(logout)
	s.disconnect()
}

func (s *Session) countReceived(msg *fix.Message) {
	category := "app"
	if msg.IsAdmin() {
		category = "admin"
	}
	metrics.MessagesReceived.WithLabelValues(s.sid.String(), category).Inc()
}
