package session

import (
	"fmt"
	"io"
	"strings"
)

// ebcdicToASCII and asciiToEBCDIC are a CP037-derived subset covering
// uppercase letters, digits, and space — enough for the pre-connect
// handshake's "PESIT" + id + password fields, which are always plain
// uppercase/numeric per the Hors-SIT profile. Bytes outside this
// subset pass through unchanged, which is sufficient since partner
// ids and passwords in this handshake are restricted to that
// character set.
var ebcdicToASCII = buildEBCDICToASCII()
var asciiToEBCDIC = buildASCIIToEBCDIC()

func buildEBCDICToASCII() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = byte(i)
	}
	// Digits 0-9: EBCDIC 0xF0-0xF9.
	for d := 0; d < 10; d++ {
		t[0xF0+d] = byte('0' + d)
	}
	// Uppercase letters: EBCDIC blocks 0xC1-0xC9 (A-I), 0xD1-0xD9
	// (J-R), 0xE2-0xE9 (S-Z).
	letters := "ABCDEFGHI"
	for i, c := range letters {
		t[0xC1+i] = byte(c)
	}
	letters = "JKLMNOPQR"
	for i, c := range letters {
		t[0xD1+i] = byte(c)
	}
	letters = "STUVWXYZ"
	for i, c := range letters {
		t[0xE2+i] = byte(c)
	}
	t[0x40] = ' '
	return t
}

func buildASCIIToEBCDIC() [256]byte {
	var t [256]byte
	toE := ebcdicToASCII
	for e, a := range toE {
		t[a] = byte(e)
	}
	return t
}

func encodeEBCDIC(s string) []byte {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = asciiToEBCDIC[s[i]]
	}
	return out
}

func decodeEBCDIC(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = ebcdicToASCII[c]
	}
	return string(out)
}

// PreconnectLen is how many bytes a server must peek to detect the
// optional EBCDIC identification exchange.
const PreconnectLen = 24

const (
	preconnectTag = "PESIT"
	preconnectAck = "ACK0"
	fieldIDLen    = 8
	fieldPassLen  = 8
)

// BuildPreconnect encodes the optional 24-byte EBCDIC handshake:
// "PESIT" + padded id(8) + padded password(8), space-padded to
// PreconnectLen.
func BuildPreconnect(demanderID, password string) []byte {
	msg := preconnectTag + padTo(demanderID, fieldIDLen) + padTo(password, fieldPassLen)
	return encodeEBCDIC(padTo(msg, PreconnectLen))
}

func padTo(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// DetectPreconnect peeks the first 24 bytes of a stream. If they
// decode cleanly as EBCDIC and start with "PESIT", the session is
// treated as EBCDIC-coded and the demander id / password are
// returned; otherwise the caller should treat the bytes as the start
// of an ordinary FPDU in ASCII coding.
func DetectPreconnect(peek []byte) (demanderID, password string, ok bool) {
	if len(peek) < PreconnectLen {
		return "", "", false
	}
	decoded := decodeEBCDIC(peek[:PreconnectLen])
	if !strings.HasPrefix(decoded, preconnectTag) {
		return "", "", false
	}
	rest := decoded[len(preconnectTag):]
	id := strings.TrimRight(rest[:fieldIDLen], " ")
	pass := strings.TrimRight(rest[fieldIDLen:fieldIDLen+fieldPassLen], " ")
	return id, pass, true
}

// WritePreconnectAck writes the server's "ACK0" EBCDIC reply.
func WritePreconnectAck(w io.Writer) error {
	_, err := w.Write(encodeEBCDIC(preconnectAck))
	if err != nil {
		return fmt.Errorf("writing preconnect ack: %w", err)
	}
	return nil
}

// ReadPreconnectAck reads and validates the server's 4-byte EBCDIC
// "ACK0" reply.
func ReadPreconnectAck(r io.Reader) error {
	buf := make([]byte, len(preconnectAck))
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("reading preconnect ack: %w", err)
	}
	if decodeEBCDIC(buf) != preconnectAck {
		return fmt.Errorf("unexpected preconnect ack: %q", buf)
	}
	return nil
}
