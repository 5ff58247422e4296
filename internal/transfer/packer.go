// Package transfer implements the data-phase orchestrator: packing
// file records into entities (DTF/DTFDA/DTFMA/DTFFA) for the sender,
// and the symmetric unpacking for the receiver.
package transfer

import (
	"encoding/binary"

	"github.com/pesit-e/pesitengine/internal/diagnostics"
	"github.com/pesit-e/pesitengine/internal/wire"
)

// article is one outgoing data-phase FPDU body, already shaped for
// wire.Serialize.
type article struct {
	Type  wire.Type
	IDSrc byte
	Body  []byte
}

const lengthPrefixSize = 2

// Packer groups a stream of records into entities sized to fit
// maxEntitySize (PI_25).
//
// Entity type assignment: a single entity holding exactly one whole
// record is a plain DTF. Whenever packing a record batch needs more
// than one entity — either because several whole records are grouped
// with length prefixes into consecutive entities, or because one
// record is too large for a single entity and must be split — the
// first entity produced is DTFDA, the last is DTFFA, and everything
// between is DTFMA. idSrc on a multi-record entity carries the
// article count packed into it; idSrc is 0 on a split segment of an
// oversized record, which is how the receiver tells the two body
// layouts apart.
type Packer struct {
	maxEntitySize int
}

func NewPacker(maxEntitySize int) *Packer {
	return &Packer{maxEntitySize: maxEntitySize}
}

// Pack converts a batch of records — typically the whole file, or one
// chunk read by the sender loop — into the articles needed to carry
// it.
func (p *Packer) Pack(records [][]byte) ([]article, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if p.maxEntitySize <= 0 {
		return nil, diagnostics.MalformedFramef("max entity size must be positive")
	}

	groups := groupRecords(records, p.maxEntitySize)
	var out []article
	for _, g := range groups {
		if len(g) == 1 && len(g[0]) <= p.maxEntitySize {
			out = append(out, article{Type: wire.DTF, Body: g[0]})
			continue
		}
		if len(g) == 1 {
			segs, err := p.packSplit(g[0])
			if err != nil {
				return nil, err
			}
			out = append(out, segs...)
			continue
		}
		body, err := p.prefixBody(g)
		if err != nil {
			return nil, err
		}
		out = append(out, article{Type: wire.DTFDA, IDSrc: byte(len(g)), Body: body})
	}

	if len(out) > 1 {
		markSequence(out)
	}
	return out, nil
}

// markSequence relabels a multi-entity run so only the first entity
// is DTFDA and only the last is DTFFA; everything between becomes
// DTFMA. Single-record DTF entities inside the run keep their DTF
// type only when they are the sole entity overall — once more than
// one entity exists they participate in the same DTFDA/DTFMA/DTFFA
// bracket as the rest.
func markSequence(out []article) {
	for i := range out {
		switch {
		case i == 0:
			out[i].Type = wire.DTFDA
		case i == len(out)-1:
			out[i].Type = wire.DTFFA
		default:
			out[i].Type = wire.DTFMA
		}
	}
}

// packSplit spans one oversized record across as many entities as
// needed, each filled to maxEntitySize, with no length prefixes and
// idSrc 0 throughout (split-record marker).
func (p *Packer) packSplit(record []byte) ([]article, error) {
	var out []article
	for offset := 0; offset < len(record); offset += p.maxEntitySize {
		end := offset + p.maxEntitySize
		if end > len(record) {
			end = len(record)
		}
		out = append(out, article{Type: wire.DTFMA, Body: record[offset:end]})
	}
	return out, nil
}

// prefixBody packs several whole records, each preceded by a 2-byte
// big-endian length, into one entity body.
func (p *Packer) prefixBody(records [][]byte) ([]byte, error) {
	body := make([]byte, 0, p.maxEntitySize)
	for _, r := range records {
		if len(r) > 0xFFFF {
			return nil, diagnostics.MalformedFramef("record of %d bytes exceeds 65535-byte article length prefix", len(r))
		}
		var lenBuf [lengthPrefixSize]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(r)))
		body = append(body, lenBuf[:]...)
		body = append(body, r...)
	}
	if len(body) > p.maxEntitySize {
		return nil, diagnostics.MalformedFramef("grouped entity of %d bytes exceeds max entity size %d", len(body), p.maxEntitySize)
	}
	return body, nil
}

// groupRecords greedily packs a sequence of records into entity-sized
// groups: each group either holds exactly one oversized record (to be
// split) or as many whole records as fit with their 2-byte prefixes.
func groupRecords(records [][]byte, maxEntitySize int) [][][]byte {
	var groups [][][]byte
	var current [][]byte
	used := 0

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
			current = nil
			used = 0
		}
	}

	for _, r := range records {
		if len(r) > maxEntitySize {
			flush()
			groups = append(groups, [][]byte{r})
			continue
		}
		cost := lengthPrefixSize + len(r)
		if len(current) > 0 && used+cost > maxEntitySize {
			flush()
		}
		current = append(current, r)
		used += cost
	}
	flush()
	return groups
}
