package transfer

import (
	"encoding/binary"

	"github.com/pesit-e/pesitengine/internal/diagnostics"
)

// parseArticles splits a packed multi-article entity body
// ([len1][art1]...[lenn][artn]) into its constituent records. It
// reports ok=false when the length prefixes do not consume the body
// exactly.
//
// A declared length of 0 terminates parsing early; a declared
// length exceeding the remaining body is reported as an error,
// matching the fatal 2.220 case.
func parseArticles(body []byte) (records [][]byte, ok bool, err error) {
	if len(body) == 0 {
		return nil, false, nil
	}
	var out [][]byte
	pos := 0
	for pos < len(body) {
		if pos+lengthPrefixSize > len(body) {
			return nil, false, nil
		}
		length := int(binary.BigEndian.Uint16(body[pos : pos+lengthPrefixSize]))
		pos += lengthPrefixSize
		if length == 0 {
			return out, true, nil
		}
		if pos+length > len(body) {
			return nil, false, diagnostics.New(diagnostics.LimitExceeded, diagnostics.CodeRecordTooLong,
				"article length prefix exceeds remaining entity body")
		}
		out = append(out, body[pos:pos+length])
		pos += length
	}
	return out, true, nil
}

// idSrcIndicatesPacked applies the DTFDA disambiguation rule:
// idSrc >= 1 signals packed multi-article carrying idSrc records;
// idSrc = 0 signals an unprefixed segment of a single record split
// across entities.
func idSrcIndicatesPacked(idSrc byte) bool {
	return idSrc >= 1
}
