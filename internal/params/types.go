package params

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs struct-tag validation (go-playground/validator)
// over a decoded parameter struct, e.g. checking PI_32's record length
// falls within the bounds this profile allows.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	return nil
}

// EncodeN encodes a right-justified binary integer (N type) into
// width bytes, big-endian. Bits of value above width bytes are dropped.
func EncodeN(value uint64, width int) []byte {
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte(value)
		value >>= 8
	}
	return buf
}

// DecodeN decodes a right-justified binary integer.
func DecodeN(buf []byte) uint64 {
	var v uint64
	for _, b := range buf {
		v = v<<8 | uint64(b)
	}
	return v
}

// EncodeA encodes a value as ASCII decimal digits, zero-padded to
// width characters (A type).
func EncodeA(value int, width int) []byte {
	s := strconv.Itoa(value)
	for len(s) < width {
		s = "0" + s
	}
	return []byte(s)
}

// DecodeA parses ASCII decimal digits.
func DecodeA(buf []byte) (int, error) {
	return strconv.Atoi(string(buf))
}

// EncodeC encodes an 8-bit character string (C type), ASCII or EBCDIC
// depending on the session's negotiated data code; the caller supplies
// an already-encoded byte slice since the charset choice is session
// state, not a PI-local concern.
func EncodeC(value []byte) []byte {
	out := make([]byte, len(value))
	copy(out, value)
	return out
}

// DecodeC is the identity operation; charset translation happens at
// the session boundary (see internal/session/ebcdic.go).
func DecodeC(buf []byte) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	return out
}

const dateLayout = "200601021504" // YYYYMMDDhhmm

// EncodeDate encodes a D-type 12-byte date.
func EncodeDate(t time.Time) []byte {
	return []byte(t.UTC().Format(dateLayout))
}

// DecodeDate decodes a D-type 12-byte date.
func DecodeDate(buf []byte) (time.Time, error) {
	if len(buf) != 12 {
		return time.Time{}, fmt.Errorf("date value must be 12 bytes, got %d", len(buf))
	}
	return time.Parse(dateLayout, string(buf))
}

// EncodeS encodes a single-byte code (S type).
func EncodeS(code byte) []byte { return []byte{code} }

// DecodeS decodes a single-byte code.
func DecodeS(buf []byte) (byte, error) {
	if len(buf) != 1 {
		return 0, fmt.Errorf("S-type value must be 1 byte, got %d", len(buf))
	}
	return buf[0], nil
}

// RecordFormat is the PI_31 bitmask (M type): which record-framing
// features are in effect.
type RecordFormat uint8

const (
	RecordFormatFixed    RecordFormat = 0x00
	RecordFormatVariable RecordFormat = 0x01
	RecordFormatStream   RecordFormat = 0x02
)

// EncodeM encodes a packed bit-mask (M type).
func EncodeM(mask RecordFormat) []byte { return []byte{byte(mask)} }

// DecodeM decodes a packed bit-mask.
func DecodeM(buf []byte) (RecordFormat, error) {
	if len(buf) != 1 {
		return 0, fmt.Errorf("M-type value must be 1 byte, got %d", len(buf))
	}
	return RecordFormat(buf[0]), nil
}

// SyncConfig is the decoded form of PI_07: whether resync is enabled
// and how many KB should pass between sync points.
type SyncConfig struct {
	ResyncEnabled bool
	SyncKB        uint16 `validate:"gte=0"`
}

// EncodeSyncConfig packs a SyncConfig into PI_07's 3-byte A-type
// value: byte 0 the resync flag, bytes 1-2 the KB count between
// sync points.
func EncodeSyncConfig(c SyncConfig) []byte {
	buf := make([]byte, 3)
	if c.ResyncEnabled {
		buf[0] = 1
	}
	buf[1] = byte(c.SyncKB >> 8)
	buf[2] = byte(c.SyncKB)
	return buf
}

// DecodeSyncConfig unpacks PI_07.
func DecodeSyncConfig(buf []byte) (SyncConfig, error) {
	if len(buf) != 3 {
		return SyncConfig{}, fmt.Errorf("PI_07 must be 3 bytes, got %d", len(buf))
	}
	return SyncConfig{
		ResyncEnabled: buf[0] != 0,
		SyncKB:        uint16(buf[1])<<8 | uint16(buf[2]),
	}, nil
}

// RestartPoint is the decoded form of PI_18: the sync number and byte
// offset a transfer should resume from.
type RestartPoint struct {
	SyncNumber uint32
	ByteOffset uint64
}

// EncodeRestartPoint packs a RestartPoint into PI_18's 12-byte value:
// 4 bytes sync number, 8 bytes byte offset.
func EncodeRestartPoint(r RestartPoint) []byte {
	buf := make([]byte, 12)
	copy(buf[0:4], EncodeN(uint64(r.SyncNumber), 4))
	copy(buf[4:12], EncodeN(r.ByteOffset, 8))
	return buf
}

// DecodeRestartPoint unpacks PI_18.
func DecodeRestartPoint(buf []byte) (RestartPoint, error) {
	if len(buf) != 12 {
		return RestartPoint{}, fmt.Errorf("PI_18 must be 12 bytes, got %d", len(buf))
	}
	return RestartPoint{
		SyncNumber: uint32(DecodeN(buf[0:4])),
		ByteOffset: DecodeN(buf[4:12]),
	}, nil
}

// LogicalAttributes is the decoded form of PGI 30, validated with
// struct tags so a negotiated record length/organization outside this
// profile's supported range is rejected at the boundary rather than
// deep inside the transfer orchestrator.
type LogicalAttributes struct {
	RecordFormat RecordFormat
	RecordLength int `validate:"gte=0,lte=65535"`
	Organization byte
}
