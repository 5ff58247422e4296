// Package params implements the PeSIT-E parameter catalog: typed PI
// (parameter) and PGI (parameter group) values encoded as TLV records
// inside an FPDU body.
package params

import (
	"fmt"

	"github.com/pesit-e/pesitengine/internal/diagnostics"
)

// extendedLenMarker flags a 2-byte big-endian length following this
// byte, for values that don't fit in 7 bits. Plain lengths use the
// low 7 bits directly (0..127); this profile's catalog never needs
// more than a couple hundred bytes (PI_34 signature, PI_37 label), so
// the marker is rarely exercised but kept for robustness against a
// future PI with a longer value.
const extendedLenMarker = 0x80

// Param is a single decoded TLV parameter value.
type Param struct {
	ID    PI
	Value []byte
}

// Group is a parameter group: a PGI id plus the PIs nested inside it.
// Groups nest one level deep only (no PGI-in-PGI).
type Group struct {
	ID     PGI
	Params []Param
}

// List is an ordered, parsed parameter list for one FPDU body. Plain
// params and groups can be interleaved; duplicate PIs take the last
// value.
type List struct {
	Params []Param
	Groups []Group
}

// Get returns the last occurrence of id in the list, if present.
func (l *List) Get(id PI) ([]byte, bool) {
	var found []byte
	ok := false
	for _, p := range l.Params {
		if p.ID == id {
			found = p.Value
			ok = true
		}
	}
	return found, ok
}

// Find returns id's value whether it appears as a plain parameter or
// nested inside any group, preferring the plain occurrence. Senders
// vary in whether they group parameters (PGI 09 file identity, PGI 30
// logical attributes) or send them flat; receivers accept both.
func (l *List) Find(id PI) ([]byte, bool) {
	if v, ok := l.Get(id); ok {
		return v, true
	}
	for i := len(l.Groups) - 1; i >= 0; i-- {
		if v, ok := l.Groups[i].Get(id); ok {
			return v, true
		}
	}
	return nil, false
}

// GetGroup returns the last occurrence of a group, if present.
func (l *List) GetGroup(id PGI) (*Group, bool) {
	for i := len(l.Groups) - 1; i >= 0; i-- {
		if l.Groups[i].ID == id {
			return &l.Groups[i], true
		}
	}
	return nil, false
}

// Get returns the last occurrence of a PI's value within the group.
func (g *Group) Get(id PI) ([]byte, bool) {
	var found []byte
	ok := false
	for _, p := range g.Params {
		if p.ID == id {
			found = p.Value
			ok = true
		}
	}
	return found, ok
}

// Set replaces (or appends) the value for id.
func (l *List) Set(id PI, value []byte) {
	for i := range l.Params {
		if l.Params[i].ID == id {
			l.Params[i].Value = value
			return
		}
	}
	l.Params = append(l.Params, Param{ID: id, Value: value})
}

// SetGroup appends a parameter group (replacing an existing one with
// the same id, if any).
func (l *List) SetGroup(g Group) {
	for i := range l.Groups {
		if l.Groups[i].ID == g.ID {
			l.Groups[i] = g
			return
		}
	}
	l.Groups = append(l.Groups, g)
}

func encodeLen(n int) []byte {
	if n < extendedLenMarker {
		return []byte{byte(n)}
	}
	return []byte{extendedLenMarker, byte(n >> 8), byte(n)}
}

func decodeLen(buf []byte) (length int, consumed int, err error) {
	if len(buf) == 0 {
		return 0, 0, fmt.Errorf("empty length field")
	}
	if buf[0] != extendedLenMarker {
		return int(buf[0]), 1, nil
	}
	if len(buf) < 3 {
		return 0, 0, fmt.Errorf("truncated extended length")
	}
	return int(buf[1])<<8 | int(buf[2]), 3, nil
}

// encodeParam writes one TLV: id | length | value.
func encodeParam(p Param) []byte {
	lenBytes := encodeLen(len(p.Value))
	out := make([]byte, 0, 1+len(lenBytes)+len(p.Value))
	out = append(out, byte(p.ID))
	out = append(out, lenBytes...)
	out = append(out, p.Value...)
	return out
}

// encodeGroup writes a PGI: id | group-length | nested PIs.
func encodeGroup(g Group) []byte {
	var body []byte
	for _, p := range g.Params {
		body = append(body, encodeParam(p)...)
	}
	lenBytes := encodeLen(len(body))
	out := make([]byte, 0, 1+len(lenBytes)+len(body))
	out = append(out, byte(g.ID))
	out = append(out, lenBytes...)
	out = append(out, body...)
	return out
}

// EncodeList serializes an ordered parameter/group list into an FPDU
// body (session/file phase).
func EncodeList(l *List) []byte {
	var out []byte
	for _, p := range l.Params {
		out = append(out, encodeParam(p)...)
	}
	for _, g := range l.Groups {
		out = append(out, encodeGroup(g)...)
	}
	return out
}

var knownGroups = map[PGI]bool{PGI09: true, PGI30: true, PGI40: true, PGI50: true}

// DecodeList parses a session/file phase FPDU body into a List.
// Parsing is liberal in ordering but strict in declared length: an
// unknown PI is skipped using its declared length; an unknown PGI is
// skipped wholesale; duplicate PIs take the last value.
func DecodeList(body []byte) (*List, error) {
	l := &List{}
	i := 0
	for i < len(body) {
		id := body[i]
		i++
		if i >= len(body) {
			return nil, diagnostics.MalformedFramef("truncated parameter id 0x%02x: no length byte", id)
		}
		length, consumed, err := decodeLen(body[i:])
		if err != nil {
			return nil, diagnostics.MalformedFramef("parameter 0x%02x: %v", id, err)
		}
		i += consumed
		if i+length > len(body) {
			return nil, diagnostics.MalformedFramef("parameter 0x%02x declares length %d, exceeds remaining body", id, length)
		}
		value := body[i : i+length]
		i += length

		if knownGroups[PGI(id)] {
			group, err := decodeGroupBody(PGI(id), value)
			if err != nil {
				return nil, err
			}
			l.Groups = append(l.Groups, *group)
			continue
		}
		l.Params = append(l.Params, Param{ID: PI(id), Value: value})
	}
	return l, nil
}

// decodeGroupBody parses the inner PIs of a single group's value
// bytes. Groups never nest, so this never recurses into
// knownGroups again.
func decodeGroupBody(gid PGI, body []byte) (*Group, error) {
	g := &Group{ID: gid}
	i := 0
	for i < len(body) {
		id := body[i]
		i++
		if i >= len(body) {
			return nil, diagnostics.MalformedFramef("group 0x%02x: truncated PI 0x%02x", gid, id)
		}
		length, consumed, err := decodeLen(body[i:])
		if err != nil {
			return nil, diagnostics.MalformedFramef("group 0x%02x, PI 0x%02x: %v", gid, id, err)
		}
		i += consumed
		if i+length > len(body) {
			return nil, diagnostics.MalformedFramef("group 0x%02x, PI 0x%02x declares length %d, exceeds group body", gid, id, length)
		}
		g.Params = append(g.Params, Param{ID: PI(id), Value: body[i : i+length]})
		i += length
	}
	return g, nil
}
