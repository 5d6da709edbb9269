package fix

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// SOH is the FIX field delimiter.
const SOH = byte(0x01)

// UTCTimestamp layouts for tag types like SendingTime (52).
const (
	TimestampLayout     = "20060102-15:04:05.000"
	TimestampLayoutNoMs = "20060102-15:04:05"
)

// Field is a single tag=value pair. The value is kept as raw bytes; typed
// coercion is performed on demand so unknown tags survive a decode/encode
// round trip untouched.
type Field struct {
	Tag   int
	Value []byte
}

// NewField builds a field from a raw value.
func NewField(tag int, value []byte) Field {
	return Field{Tag: tag, Value: value}
}

// NewStringField builds a string-valued field.
func NewStringField(tag int, value string) Field {
	return Field{Tag: tag, Value: []byte(value)}
}

// NewIntField builds an integer-valued field.
func NewIntField(tag int, value int) Field {
	return Field{Tag: tag, Value: []byte(strconv.Itoa(value))}
}

// NewSeqNumField builds a sequence-number field.
func NewSeqNumField(tag int, value uint64) Field {
	return Field{Tag: tag, Value: []byte(strconv.FormatUint(value, 10))}
}

// NewBoolField builds a Y/N boolean field.
func NewBoolField(tag int, value bool) Field {
	if value {
		return Field{Tag: tag, Value: []byte("Y")}
	}
	return Field{Tag: tag, Value: []byte("N")}
}

// NewCharField builds a single-character field.
func NewCharField(tag int, value byte) Field {
	return Field{Tag: tag, Value: []byte{value}}
}

// NewDecimalField builds an arbitrary-precision decimal field.
func NewDecimalField(tag int, value decimal.Decimal) Field {
	return Field{Tag: tag, Value: []byte(value.String())}
}

// NewUTCTimestampField builds a UTC timestamp field with millisecond precision.
func NewUTCTimestampField(tag int, t time.Time) Field {
	return Field{Tag: tag, Value: []byte(t.UTC().Format(TimestampLayout))}
}

// String returns the value as a string.
func (f Field) String() string { return string(f.Value) }

// Int coerces the value to a 32-bit signed integer.
func (f Field) Int() (int, error) {
	v, err := strconv.ParseInt(string(f.Value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("tag %d: %w", f.Tag, err)
	}
	return int(v), nil
}

// Uint64 coerces the value to an unsigned 64-bit integer (sequence numbers).
func (f Field) Uint64() (uint64, error) {
	v, err := strconv.ParseUint(string(f.Value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("tag %d: %w", f.Tag, err)
	}
	return v, nil
}

// Bool coerces a Y/N value.
func (f Field) Bool() bool { return len(f.Value) == 1 && f.Value[0] == 'Y' }

// Char coerces a single-character value.
func (f Field) Char() (byte, error) {
	if len(f.Value) != 1 {
		return 0, fmt.Errorf("tag %d: value %q is not a single character", f.Tag, f.Value)
	}
	return f.Value[0], nil
}

// Decimal coerces the value to an arbitrary-precision decimal.
func (f Field) Decimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(string(f.Value))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("tag %d: %w", f.Tag, err)
	}
	return d, nil
}

// UTCTimestamp coerces the value to a UTC timestamp, accepting both
// millisecond and second precision.
func (f Field) UTCTimestamp() (time.Time, error) {
	s := string(f.Value)
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(TimestampLayoutNoMs, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("tag %d: %w", f.Tag, err)
	}
	return t, nil
}

// Currency validates and returns a 3-letter ISO currency code.
func (f Field) Currency() (string, error) {
	if len(f.Value) != 3 {
		return "", fmt.Errorf("tag %d: value %q is not a currency code", f.Tag, f.Value)
	}
	for _, c := range f.Value {
		if c < 'A' || c > 'Z' {
			return "", fmt.Errorf("tag %d: value %q is not a currency code", f.Tag, f.Value)
		}
	}
	return string(f.Value), nil
}
