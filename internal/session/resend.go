package session

import (
	"go.uber.org/zap"

	"github.com/rsouth/fixgate/internal/fix"
	"github.com/rsouth/fixgate/internal/fix/codec"
)

// fulfillResend replays stored outbound messages for a counterparty's
// ResendRequest. Application messages go back out with their original
// sequence numbers, flagged PossDupFlag=Y with OrigSendingTime preserved.
// Administrative messages and holes in the log are never replayed; each
// maximal run of them collapses into one SequenceReset-GapFill.
func (s *Session) fulfillResend(msg *fix.Message, seq uint64) {
	begin, berr := msg.GetUint64(fix.TagBeginSeqNo)
	end, eerr := msg.GetUint64(fix.TagEndSeqNo)
	if berr != nil || eerr != nil {
		s.sendReject(seq, msg.MsgType(), fix.TagBeginSeqNo, fix.RejectReasonIncorrectDataFormat,
			"BeginSeqNo/EndSeqNo malformed")
		return
	}
	if begin == 0 {
		begin = 1
	}
	// EndSeqNo=0 means "everything you have sent".
	if end == 0 || end >= s.nextSenderSeq {
		end = s.nextSenderSeq - 1
	}
	if end < begin {
		s.log.Warn("resend request for empty range",
			zap.Uint64("begin", begin), zap.Uint64("end", end))
		return
	}
	s.log.Info("serving resend", zap.Uint64("begin", begin), zap.Uint64("end", end))

	entries, err := s.store.GetSent(s.sid, begin, end)
	if err != nil {
		s.fatal(err)
		return
	}

	cursor := begin
	var gapStart uint64 // 0 means no open gap-fill run
	for _, entry := range entries {
		if entry.Seq > cursor {
			if gapStart == 0 {
				gapStart = cursor
			}
			cursor = entry.Seq
		}
		original, _, derr := codec.Decode(entry.Payload, 0)
		if derr != nil || original.IsAdmin() {
			if gapStart == 0 {
				gapStart = cursor
			}
			cursor++
			continue
		}
		if gapStart != 0 {
			if s.sendGapFill(gapStart, cursor) != nil {
				return
			}
			gapStart = 0
		}
		if s.replayApp(original) != nil {
			return
		}
		cursor++
	}
	if cursor <= end {
		if gapStart == 0 {
			gapStart = cursor
		}
		cursor = end + 1
	}
	if gapStart != 0 {
		s.sendGapFill(gapStart, cursor)
	}
}

// replayApp re-transmits one stored application message as a possible
// duplicate. The stored frame already carries the full header; only the
// duplicate markers and sending time change.
func (s *Session) replayApp(original *fix.Message) error {
	replay := original.Clone()
	replay.Set(fix.NewBoolField(fix.TagPossDupFlag, true))
	if orig, ok := original.Get(fix.TagSendingTime); ok {
		replay.Set(fix.NewField(fix.TagOrigSendingTime, orig.Value))
	}
	replay.Set(fix.NewUTCTimestampField(fix.TagSendingTime, s.now()))
	return s.resendFrame(replay)
}

// sendGapFill covers [seqNum, newSeq) with a single SequenceReset-GapFill
// carrying the first sequence number of the run.
func (s *Session) sendGapFill(seqNum, newSeq uint64) error {
	gf := fix.NewMessage(fix.MsgTypeSequenceReset)
	gf.Set(fix.NewBoolField(fix.TagGapFillFlag, true))
	gf.Set(fix.NewBoolField(fix.TagPossDupFlag, true))
	gf.Set(fix.NewSeqNumField(fix.TagNewSeqNo, newSeq))
	gf.Set(fix.NewStringField(fix.TagBeginString, string(s.settings.BeginString)))
	gf.Set(fix.NewStringField(fix.TagSenderCompID, s.settings.SenderCompID))
	gf.Set(fix.NewStringField(fix.TagTargetCompID, s.settings.TargetCompID))
	gf.Set(fix.NewSeqNumField(fix.TagMsgSeqNum, seqNum))
	now := s.now()
	gf.Set(fix.NewUTCTimestampField(fix.TagSendingTime, now))
	gf.Set(fix.NewUTCTimestampField(fix.TagOrigSendingTime, now))
	return s.resendFrame(gf)
}
