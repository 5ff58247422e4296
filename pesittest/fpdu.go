package pesittest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// FPDU phase and type codes, duplicated here as raw numbers so the
// harness exercises the server without sharing its codec.
const (
	PhaseSession = 0x40
	PhaseFile    = 0xC0

	TypeConnect  = 0x20
	TypeAconnect = 0x21
	TypeRelease  = 0x23
	TypeRelconf  = 0x24
	TypeAbort    = 0x25
	TypeWrite    = 0x02
)

type FPDU struct {
	Length uint16
	Phase  uint8
	Type   uint8
	IDDst  uint8
	IDSrc  uint8
	Body   []byte
}

func ReadNextFPDU(conn net.Conn) (*FPDU, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, fmt.Errorf("reading FPDU header: %w", err)
	}

	length := binary.BigEndian.Uint16(header[0:2])
	if length < 6 {
		return nil, fmt.Errorf("invalid FPDU length: %d", length)
	}

	body := make([]byte, length-6)
	if len(body) > 0 {
		if _, err := io.ReadFull(conn, body); err != nil {
			return nil, fmt.Errorf("reading FPDU body: %w", err)
		}
	}

	return &FPDU{
		Length: length,
		Phase:  header[2],
		Type:   header[3],
		IDDst:  header[4],
		IDSrc:  header[5],
		Body:   body,
	}, nil
}

func buildFPDU(phase, typ uint8, body []byte) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint16(6+len(body)))
	buf.WriteByte(phase)
	buf.WriteByte(typ)
	buf.WriteByte(0) // idDst
	buf.WriteByte(0) // idSrc
	buf.Write(body)
	return buf.Bytes()
}

func tlv(id uint8, value []byte) []byte {
	out := []byte{id, byte(len(value))}
	return append(out, value...)
}

// BuildConnect assembles a CONNECT with PI_03/PI_04/PI_05/PI_06.
func BuildConnect(demander, server, password string, version int) []byte {
	body := tlv(0x03, []byte(demander))
	body = append(body, tlv(0x04, []byte(server))...)
	body = append(body, tlv(0x05, []byte(password))...)
	body = append(body, tlv(0x06, []byte{byte(version >> 8), byte(version)})...)
	return buildFPDU(PhaseSession, TypeConnect, body)
}

func BuildRelease() []byte {
	return buildFPDU(PhaseSession, TypeRelease, nil)
}

// BuildWrite assembles a bare file-phase WRITE, valid only once a
// transfer is open; sent cold it must trip the state machine.
func BuildWrite() []byte {
	return buildFPDU(PhaseFile, TypeWrite, nil)
}

func BuildMalformedFPDU() []byte {
	// Declared length below the 6-byte minimum
	return []byte{0x00, 0x03, 0x00, 0x00}
}

// ParseDiagnostic extracts PI_02's 3 ASCII digits from an FPDU body.
func ParseDiagnostic(body []byte) (string, error) {
	for len(body) >= 2 {
		id, length := body[0], int(body[1])
		if len(body) < 2+length {
			return "", fmt.Errorf("truncated parameter %#x", id)
		}
		if id == 0x02 {
			return string(body[2 : 2+length]), nil
		}
		body = body[2+length:]
	}
	return "", fmt.Errorf("no PI_02 present")
}
