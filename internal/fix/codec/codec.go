// Package codec implements the FIX tag-value wire framing: length-prefixed
// body with a modulo-256 checksum trailer. Decoding is a single pass over the
// input and leaves values as raw bytes; typed coercion is dictionary-driven
// and happens upstream, so unknown tags are preserved.
package codec

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/rsouth/fixgate/internal/fix"
)

// maxBodyLength bounds the declared BodyLength so a corrupt length field
// cannot stall the reader waiting for input that will never arrive.
const maxBodyLength = 1 << 20

// headerTagOrder is the transmit order for standard header fields that
// follow 8, 9 and 35.
var headerTagOrder = []int{
	fix.TagSenderCompID,
	fix.TagTargetCompID,
	fix.TagMsgSeqNum,
	fix.TagPossDupFlag,
	fix.TagSendingTime,
	fix.TagOrigSendingTime,
}

// Encode serialises a message into a contiguous frame starting with
// 8=<BeginString><SOH> and ending with 10=<ccc><SOH>. BodyLength and
// CheckSum are computed here; any caller-supplied 9 or 10 is discarded.
func Encode(m *fix.Message) ([]byte, error) {
	beginString := m.GetString(fix.TagBeginString)
	if beginString == "" {
		return nil, fmt.Errorf("encode: message has no BeginString (8)")
	}
	msgType := m.MsgType()
	if msgType == "" {
		return nil, fmt.Errorf("encode: message has no MsgType (35)")
	}

	var body bytes.Buffer
	writeField(&body, fix.TagMsgType, []byte(msgType))

	emitted := map[int]bool{
		fix.TagBeginString: true,
		fix.TagBodyLength:  true,
		fix.TagMsgType:     true,
		fix.TagCheckSum:    true,
	}
	for _, tag := range headerTagOrder {
		if f, ok := m.Get(tag); ok {
			writeField(&body, tag, f.Value)
			emitted[tag] = true
		}
	}
	for _, f := range m.Fields() {
		if emitted[f.Tag] {
			continue
		}
		writeField(&body, f.Tag, f.Value)
	}

	var frame bytes.Buffer
	frame.Grow(body.Len() + 32)
	writeField(&frame, fix.TagBeginString, []byte(beginString))
	writeField(&frame, fix.TagBodyLength, []byte(strconv.Itoa(body.Len())))
	frame.Write(body.Bytes())

	sum := checksum(frame.Bytes())
	fmt.Fprintf(&frame, "10=%03d", sum)
	frame.WriteByte(fix.SOH)
	return frame.Bytes(), nil
}

func writeField(buf *bytes.Buffer, tag int, value []byte) {
	buf.WriteString(strconv.Itoa(tag))
	buf.WriteByte('=')
	buf.Write(value)
	buf.WriteByte(fix.SOH)
}

// checksum is the 8-bit unsigned sum of all bytes, modulo 256.
func checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum += c
	}
	return sum
}

// Decode reads exactly one framed message from buf starting at offset. It
// returns the decoded fields in wire order (including 8, 9, 35 and 10) and
// the number of bytes consumed. On a partial frame it returns a NeedMore
// error. A BadLength or BadChecksum on an otherwise recognisable frame still
// reports the bytes to skip so the stream can resynchronise.
func Decode(buf []byte, offset int) (*fix.Message, int, error) {
	in := buf[offset:]

	// Field 8: BeginString.
	tag, valStart, err := parseTag(in, 0)
	if err != nil {
		if isTruncated(in, 0) {
			return nil, 0, &DecodeError{Kind: KindNeedMore}
		}
		return nil, 0, &DecodeError{Kind: KindBadBeginString, Consumed: resyncSkip(in), Detail: err.Error()}
	}
	if tag != fix.TagBeginString {
		return nil, 0, &DecodeError{Kind: KindBadBeginString, Consumed: resyncSkip(in), Detail: fmt.Sprintf("first tag is %d, want 8", tag)}
	}
	bsEnd := bytes.IndexByte(in[valStart:], fix.SOH)
	if bsEnd < 0 {
		return nil, 0, &DecodeError{Kind: KindNeedMore}
	}
	bsEnd += valStart
	bsValue := in[valStart:bsEnd]
	if _, ok := fix.ParseBeginString(bsValue); !ok {
		return nil, 0, &DecodeError{Kind: KindBadBeginString, Consumed: resyncSkip(in), Detail: fmt.Sprintf("unrecognised BeginString %q", bsValue)}
	}

	// Field 9: BodyLength.
	tag, valStart, err = parseTag(in, bsEnd+1)
	if err != nil {
		if isTruncated(in, bsEnd+1) {
			return nil, 0, &DecodeError{Kind: KindNeedMore}
		}
		return nil, 0, &DecodeError{Kind: KindBadLength, Consumed: resyncSkip(in), Detail: err.Error()}
	}
	if tag != fix.TagBodyLength {
		return nil, 0, &DecodeError{Kind: KindBadLength, Consumed: resyncSkip(in), Detail: fmt.Sprintf("second tag is %d, want 9", tag)}
	}
	lenEnd := bytes.IndexByte(in[valStart:], fix.SOH)
	if lenEnd < 0 {
		return nil, 0, &DecodeError{Kind: KindNeedMore}
	}
	lenEnd += valStart
	lenValue := in[valStart:lenEnd]
	bodyLen, convErr := strconv.Atoi(string(lenValue))
	if convErr != nil || bodyLen < 0 || bodyLen > maxBodyLength {
		return nil, 0, &DecodeError{Kind: KindBadLength, Consumed: resyncSkip(in), Detail: fmt.Sprintf("bad BodyLength value %q", lenValue)}
	}

	bodyStart := lenEnd + 1
	trailerStart := bodyStart + bodyLen
	// Trailer is exactly "10=ccc<SOH>", 7 bytes.
	if trailerStart+7 > len(in) {
		return nil, 0, &DecodeError{Kind: KindNeedMore}
	}
	trailer := in[trailerStart : trailerStart+7]
	if !bytes.HasPrefix(trailer, []byte("10=")) || trailer[6] != fix.SOH ||
		!isDigits(trailer[3:6]) {
		return nil, 0, &DecodeError{Kind: KindBadLength, Consumed: trailerStart, Detail: "BodyLength does not land on CheckSum field"}
	}

	declared, _ := strconv.Atoi(string(trailer[3:6]))
	computed := checksum(in[:trailerStart])
	frameLen := trailerStart + 7
	if int(computed) != declared {
		return nil, 0, &DecodeError{Kind: KindBadChecksum, Consumed: frameLen, Detail: fmt.Sprintf("declared %03d, computed %03d", declared, computed)}
	}

	msg := &fix.Message{}
	msg.Append(fix.NewField(fix.TagBeginString, cloneBytes(bsValue)))
	msg.Append(fix.NewField(fix.TagBodyLength, cloneBytes(lenValue)))

	if err := parseBody(msg, in[bodyStart:trailerStart], frameLen); err != nil {
		return nil, 0, err
	}
	msg.Append(fix.NewField(fix.TagCheckSum, cloneBytes(trailer[3:6])))
	return msg, frameLen, nil
}

// parseBody splits tag=value pairs between BodyLength and CheckSum. The first
// body field must be 35. Raw-data fields consume exactly the byte count
// declared by their preceding length field, so SOH bytes inside the payload
// do not terminate the value.
func parseBody(msg *fix.Message, body []byte, frameLen int) *DecodeError {
	pos := 0
	first := true
	pendingDataTag := 0
	pendingDataLen := 0
	for pos < len(body) {
		tag, valStart, err := parseTag(body, pos)
		if err != nil {
			return &DecodeError{Kind: KindTagFormat, Consumed: frameLen, Detail: err.Error()}
		}
		if first && tag != fix.TagMsgType {
			return &DecodeError{Kind: KindBadMsgType, Consumed: frameLen, Detail: fmt.Sprintf("third field is %d, want 35", tag)}
		}
		first = false

		var value []byte
		if pendingDataTag == tag {
			if valStart+pendingDataLen >= len(body) || body[valStart+pendingDataLen] != fix.SOH {
				return &DecodeError{Kind: KindUnterminatedValue, Consumed: frameLen, Detail: fmt.Sprintf("raw data field %d not terminated", tag)}
			}
			value = body[valStart : valStart+pendingDataLen]
			pos = valStart + pendingDataLen + 1
		} else {
			end := bytes.IndexByte(body[valStart:], fix.SOH)
			if end < 0 {
				return &DecodeError{Kind: KindUnterminatedValue, Consumed: frameLen, Detail: fmt.Sprintf("field %d not terminated", tag)}
			}
			value = body[valStart : valStart+end]
			pos = valStart + end + 1
		}

		pendingDataTag, pendingDataLen = 0, 0
		if dataTag, ok := fix.DataLengthTags[tag]; ok {
			if n, err := strconv.Atoi(string(value)); err == nil && n >= 0 {
				pendingDataTag, pendingDataLen = dataTag, n
			}
		}
		msg.Append(fix.NewField(tag, cloneBytes(value)))
	}
	return nil
}

// parseTag reads the decimal tag and '=' at pos, returning the tag number and
// the index of the first value byte. Leading zeros are rejected.
func parseTag(b []byte, pos int) (int, int, error) {
	i := pos
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	if i == pos {
		return 0, 0, fmt.Errorf("no tag digits at offset %d", pos)
	}
	if i >= len(b) || b[i] != '=' {
		return 0, 0, fmt.Errorf("tag at offset %d not followed by '='", pos)
	}
	if b[pos] == '0' && i-pos > 1 {
		return 0, 0, fmt.Errorf("tag at offset %d has a leading zero", pos)
	}
	tag, err := strconv.Atoi(string(b[pos:i]))
	if err != nil || tag < 1 || tag > 65535 {
		return 0, 0, fmt.Errorf("tag %q out of range", b[pos:i])
	}
	return tag, i + 1, nil
}

// resyncSkip finds the next candidate frame start after the current byte so a
// broken prefix can be discarded. "8=" only counts as a frame boundary when it
// follows an SOH.
func resyncSkip(in []byte) int {
	for i := 1; i+1 < len(in); i++ {
		if in[i] == '8' && in[i+1] == '=' && in[i-1] == fix.SOH {
			return i
		}
	}
	return len(in)
}

func isTruncated(in []byte, pos int) bool {
	return bytes.IndexByte(in[pos:], fix.SOH) < 0
}

func isDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(b) > 0
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
