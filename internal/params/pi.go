package params

// PI identifies a parameter within an FPDU body. PGI identifies a
// parameter group. Both are single bytes on the wire.
type PI byte
type PGI byte

// Kind is the on-wire value encoding for a parameter.
type Kind int

const (
	KindS Kind = iota // 1-byte code
	KindA             // ASCII digits
	KindC             // 8-bit character string (ASCII or EBCDIC)
	KindN             // right-justified binary integer
	KindD             // 12-byte date YYYYMMDDhhmm
	KindM             // packed bit-mask
)

// Parameter identifiers.
const (
	PI_01 PI = 0x01 // CRC (S)
	PI_02 PI = 0x02 // diagnostic (A,3)
	PI_03 PI = 0x03 // demander (C,<=24)
	PI_04 PI = 0x04 // server (C,<=24)
	PI_05 PI = 0x05 // access-control (C,<=16)
	PI_06 PI = 0x06 // version (N,2)
	PI_07 PI = 0x07 // sync-config (A,3)
	PI_11 PI = 0x0B // file-type (N,2)
	PI_12 PI = 0x0C // filename (C,<=24)
	PI_13 PI = 0x0D // transfer-id (N,3)
	PI_16 PI = 0x10 // data-code (S)
	PI_17 PI = 0x11 // priority (S)
	PI_18 PI = 0x12 // restart-point (sync number + byte offset)
	PI_19 PI = 0x13 // end-code (S)
	PI_20 PI = 0x14 // sync-number (N,3)
	PI_22 PI = 0x16 // access-type (S)
	PI_23 PI = 0x17 // resync (S)
	PI_25 PI = 0x19 // max-entity-size (N,2)
	PI_27 PI = 0x1B // file-size-bytes (N,8)
	PI_28 PI = 0x1C // record-count (N,4)
	PI_31 PI = 0x1F // record-format (M)
	PI_32 PI = 0x20 // record-length (N,2)
	PI_33 PI = 0x21 // organization (S)
	PI_34 PI = 0x22 // signature (C)
	PI_37 PI = 0x25 // label (C,<=20)
	PI_38 PI = 0x26 // key length (N,2)
	PI_39 PI = 0x27 // key offset (N,4)
	PI_41 PI = 0x29 // reservation unit (N,2)
	PI_42 PI = 0x2A // max reservation (N,4)
	PI_51 PI = 0x33 // creation date (D,12)
	PI_52 PI = 0x34 // extraction date (D,12)
)

// Parameter groups.
const (
	PGI09 PGI = 0x09 // file identity
	PGI30 PGI = 0x1E // logical attributes
	PGI40 PGI = 0x28 // physical attributes
	PGI50 PGI = 0x32 // historical attributes
)

// Def describes a single PI's wire shape: its value kind and its
// length bounds. MinLen == MaxLen means the field is fixed-width.
type Def struct {
	Name   string
	Kind   Kind
	MinLen int
	MaxLen int
}

// Catalog is the closed set of PIs this profile understands. An
// unrecognized PI is skipped using its declared length.
var Catalog = map[PI]Def{
	PI_01: {"crc", KindS, 1, 1},
	PI_02: {"diagnostic", KindA, 3, 3},
	PI_03: {"demander", KindC, 1, 24},
	PI_04: {"server", KindC, 1, 24},
	PI_05: {"access-control", KindC, 1, 16},
	PI_06: {"version", KindN, 2, 2},
	PI_07: {"sync-config", KindA, 3, 3},
	PI_11: {"file-type", KindN, 2, 2},
	PI_12: {"filename", KindC, 1, 24},
	PI_13: {"transfer-id", KindN, 3, 3},
	PI_16: {"data-code", KindS, 1, 1},
	PI_17: {"priority", KindS, 1, 1},
	PI_18: {"restart-point", KindN, 12, 12},
	PI_19: {"end-code", KindS, 1, 1},
	PI_20: {"sync-number", KindN, 3, 3},
	PI_22: {"access-type", KindS, 1, 1},
	PI_23: {"resync", KindS, 1, 1},
	PI_25: {"max-entity-size", KindN, 2, 2},
	PI_27: {"file-size-bytes", KindN, 8, 8},
	PI_28: {"record-count", KindN, 4, 4},
	PI_31: {"record-format", KindM, 1, 1},
	PI_32: {"record-length", KindN, 2, 2},
	PI_33: {"organization", KindS, 1, 1},
	PI_34: {"signature", KindC, 0, 64},
	PI_37: {"label", KindC, 0, 20},
	PI_38: {"key-length", KindN, 2, 2},
	PI_39: {"key-offset", KindN, 4, 4},
	PI_41: {"reservation-unit", KindN, 2, 2},
	PI_42: {"max-reservation", KindN, 4, 4},
	PI_51: {"creation-date", KindD, 12, 12},
	PI_52: {"extraction-date", KindD, 12, 12},
}

// GroupMembers lists the PIs carried by each known PGI, for validation
// and for documentation; parsing itself does not require this (an
// unknown PI inside a known PGI is simply skipped).
var GroupMembers = map[PGI][]PI{
	PGI09: {PI_03, PI_04, PI_11, PI_12},
	PGI30: {PI_31, PI_32, PI_33, PI_34, PI_37, PI_38, PI_39},
	PGI40: {PI_41, PI_42},
	PGI50: {PI_51, PI_52},
}
