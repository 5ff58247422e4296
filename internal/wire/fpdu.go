// Package wire implements the PeSIT-E FPDU codec: a length-prefixed
// framing format that may carry session, file, or data phase bodies,
// with support for multiple FPDUs concatenated in a single transport
// read.
package wire

import "github.com/pesit-e/pesitengine/internal/diagnostics"

// Phase is the FPDU phase byte.
type Phase byte

const (
	PhaseSession Phase = 0x40
	PhaseFile    Phase = 0xC0
	PhaseData    Phase = 0x00
)

// Type is the FPDU type byte, meaningful only alongside its Phase.
type Type byte

// Session phase (0x40) types.
const (
	CONNECT  Type = 0x20
	ACONNECT Type = 0x21
	RCONNECT Type = 0x22
	RELEASE  Type = 0x23
	RELCONF  Type = 0x24
	ABORT    Type = 0x25
)

// File phase (0xC0) types.
const (
	READ      Type = 0x01
	WRITE     Type = 0x02
	SYN       Type = 0x03
	DTF_END   Type = 0x04
	RESYN     Type = 0x05
	IDT       Type = 0x06
	TRANS_END Type = 0x08
	CREATE    Type = 0x11
	SELECT    Type = 0x12
	DESELECT  Type = 0x13
	OPEN      Type = 0x14
	CLOSE     Type = 0x15
	MSG       Type = 0x16
	MSGDM     Type = 0x17
	MSGMM     Type = 0x18
	MSGFM     Type = 0x19

	ACK_READ      Type = 0x31
	ACK_WRITE     Type = 0x32
	ACK_SYN       Type = 0x33
	ACK_RESYN     Type = 0x35
	ACK_CREATE    Type = 0x30
	ACK_SELECT    Type = 0x3A
	ACK_DESELECT  Type = 0x3B
	ACK_OPEN      Type = 0x34
	ACK_CLOSE     Type = 0x36
	ACK_TRANS_END Type = 0x38
)

// Data phase (0x00) types.
const (
	DTF   Type = 0x00
	DTFMA Type = 0x40
	DTFDA Type = 0x41
	DTFFA Type = 0x42
)

// key is a (phase, type) pair used to look the FPDU up in the known
// set. Assignments are irregular (ACK does not equal request + 0x20
// consistently), so lookups always go through this table, never
// arithmetic.
type key struct {
	phase Phase
	typ   Type
}

var knownFpdus = map[key]string{
	{PhaseSession, CONNECT}:  "CONNECT",
	{PhaseSession, ACONNECT}: "ACONNECT",
	{PhaseSession, RCONNECT}: "RCONNECT",
	{PhaseSession, RELEASE}:  "RELEASE",
	{PhaseSession, RELCONF}:  "RELCONF",
	{PhaseSession, ABORT}:    "ABORT",

	{PhaseFile, READ}:      "READ",
	{PhaseFile, WRITE}:     "WRITE",
	{PhaseFile, SYN}:       "SYN",
	{PhaseFile, DTF_END}:   "DTF_END",
	{PhaseFile, RESYN}:     "RESYN",
	{PhaseFile, IDT}:       "IDT",
	{PhaseFile, TRANS_END}: "TRANS_END",
	{PhaseFile, CREATE}:    "CREATE",
	{PhaseFile, SELECT}:    "SELECT",
	{PhaseFile, DESELECT}:  "DESELECT",
	{PhaseFile, OPEN}:      "OPEN",
	{PhaseFile, CLOSE}:     "CLOSE",
	{PhaseFile, MSG}:       "MSG",
	{PhaseFile, MSGDM}:     "MSGDM",
	{PhaseFile, MSGMM}:     "MSGMM",
	{PhaseFile, MSGFM}:     "MSGFM",

	{PhaseFile, ACK_READ}:      "ACK_READ",
	{PhaseFile, ACK_WRITE}:     "ACK_WRITE",
	{PhaseFile, ACK_SYN}:       "ACK_SYN",
	{PhaseFile, ACK_RESYN}:     "ACK_RESYN",
	{PhaseFile, ACK_CREATE}:    "ACK_CREATE",
	{PhaseFile, ACK_SELECT}:    "ACK_SELECT",
	{PhaseFile, ACK_DESELECT}:  "ACK_DESELECT",
	{PhaseFile, ACK_OPEN}:      "ACK_OPEN",
	{PhaseFile, ACK_CLOSE}:     "ACK_CLOSE",
	{PhaseFile, ACK_TRANS_END}: "ACK_TRANS_END",

	{PhaseData, DTF}:   "DTF",
	{PhaseData, DTFMA}: "DTFMA",
	{PhaseData, DTFDA}: "DTFDA",
	{PhaseData, DTFFA}: "DTFFA",
}

// Name returns the known mnemonic for (phase, typ), or "" if unknown.
func Name(phase Phase, typ Type) string {
	return knownFpdus[key{phase, typ}]
}

// IsKnown reports whether (phase, typ) is a recognized FPDU.
func IsKnown(phase Phase, typ Type) bool {
	_, ok := knownFpdus[key{phase, typ}]
	return ok
}

const (
	headerLen = 6
	minLength = headerLen
	maxLength = 65535
)

// Fpdu is one parsed Formatted Protocol Data Unit.
type Fpdu struct {
	Phase Phase
	Type  Type
	IDDst byte
	IDSrc byte
	Body  []byte
}

// Serialize encodes an FPDU to wire bytes: 2-byte big-endian length
// (including itself), phase, type, idDst, idSrc, body.
func Serialize(phase Phase, typ Type, idDst, idSrc byte, body []byte) []byte {
	total := headerLen + len(body)
	out := make([]byte, total)
	out[0] = byte(total >> 8)
	out[1] = byte(total)
	out[2] = byte(phase)
	out[3] = byte(typ)
	out[4] = idDst
	out[5] = idSrc
	copy(out[headerLen:], body)
	return out
}

func (f *Fpdu) Serialize() []byte {
	return Serialize(f.Phase, f.Type, f.IDDst, f.IDSrc, f.Body)
}

// parseOne parses exactly one FPDU from the front of buf. It returns
// the FPDU, the number of bytes consumed, or (nil, 0, nil) if buf does
// not yet contain a complete FPDU (more bytes needed).
func parseOne(buf []byte) (*Fpdu, int, error) {
	if len(buf) < 2 {
		return nil, 0, nil
	}
	length := int(buf[0])<<8 | int(buf[1])
	if length < minLength || length > maxLength {
		return nil, 0, diagnostics.MalformedFramef("invalid FPDU length %d (must be %d..%d)", length, minLength, maxLength)
	}
	if len(buf) < length {
		return nil, 0, nil // wait for more bytes
	}
	frame := buf[:length]
	phase := Phase(frame[2])
	typ := Type(frame[3])
	if !IsKnown(phase, typ) {
		return nil, 0, diagnostics.MalformedFramef("unknown FPDU (phase=0x%02x, type=0x%02x)", byte(phase), byte(typ))
	}
	f := &Fpdu{
		Phase: phase,
		Type:  typ,
		IDDst: frame[4],
		IDSrc: frame[5],
		Body:  append([]byte(nil), frame[headerLen:]...),
	}
	return f, length, nil
}
