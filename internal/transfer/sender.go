package transfer

import (
	"io"

	"github.com/pesit-e/pesitengine/internal/diagnostics"
	"github.com/pesit-e/pesitengine/internal/params"
	"github.com/pesit-e/pesitengine/internal/wire"
)

// senderBatchBytes bounds how many bytes of records are read and
// packed per loop iteration, so a very large file doesn't demand one
// giant in-memory record batch.
const senderBatchBytes = 64 * 1024

// SendFile drives the sender side of the data phase once the caller
// has already sent WRITE (or replied ACK_READ) and is in
// TDE02A/TDL02B. It reads from c.source,
// packs records into entities, periodically syncs per
// cfg.SyncIntervalKB, and finishes with DTF_END/TRANS_END.
func (c *Context) SendFile(s Sender) error {
	if c.cfg.RestartFrom != nil {
		if _, err := c.source.Seek(int64(c.cfg.RestartFrom.ByteOffset), io.SeekStart); err != nil {
			return diagnostics.Wrap(diagnostics.StorageError, diagnostics.CodeFileNotFound, "seeking to restart offset", err)
		}
		c.counters.LastSyncNum = c.cfg.RestartFrom.SyncNumber
		c.base = c.cfg.RestartFrom.ByteOffset
	}

	packer := NewPacker(c.cfg.MaxEntitySize)
	for {
		records, eof, err := readRecords(c.source, c.cfg.RecordLength, c.cfg.MaxEntitySize, senderBatchBytes)
		if err != nil {
			return err
		}

		articles, err := packer.Pack(records)
		if err != nil {
			return err
		}
		resynced := false
		for _, a := range articles {
			if err := s.Send(a.Type, 0, a.IDSrc, a.Body); err != nil {
				return err
			}
			// Net file bytes only: a packed entity carries IDSrc
			// 2-byte article prefixes that are wire overhead, not
			// file data, and the restart offset must stay a file
			// offset.
			c.counters.AddBytes(len(a.Body) - int(a.IDSrc)*lengthPrefixSize)

			// Sync points fall on record boundaries only: an entity
			// with idSrc 0 that is not the final DTFFA leaves the
			// receiver holding an unflushed partial record.
			boundary := a.IDSrc >= 1 || a.Type == wire.DTF || a.Type == wire.DTFFA
			if boundary && c.counters.DueForSync() {
				r, err := c.emitSync(s)
				if err != nil {
					return err
				}
				if r {
					resynced = true
					break
				}
			}
		}
		if resynced {
			// The source was rewound; re-read from the agreed offset
			// even if this batch had hit EOF.
			continue
		}

		if eof {
			break
		}
	}

	if err := s.Send(wire.DTF_END, 0, 0, nil); err != nil {
		return err
	}
	c.logger.Infof("sent %d bytes, %d sync points", c.counters.BytesAtLastSync+c.counters.BytesSinceLastSync, c.counters.LastSyncNum)
	return c.sendTransEnd(s, 0)
}

// emitSync sends the next SYN and commits its acknowledgement. It
// reports resynced=true when the ACK_SYN mismatched but a RESYN
// renegotiation recovered, in which case the source has been rewound.
func (c *Context) emitSync(s Sender) (resynced bool, err error) {
	num := c.counters.NextSyncNumber()
	body := params.EncodeList(&params.List{Params: []params.Param{
		{ID: params.PI_20, Value: params.EncodeN(uint64(num), 3)},
	}})
	f, err := s.SendAndAwaitAck(wire.SYN, 0, 0, body, wire.ACK_SYN)
	if err != nil {
		return false, err
	}
	c.logger.Debugf("sync %d acked", num)
	list, err := params.DecodeList(f.Body)
	if err != nil {
		return false, diagnostics.Wrap(diagnostics.MalformedFrame, diagnostics.CodeProtocolViolation, "decoding ACK_SYN body", err)
	}
	raw, ok := list.Get(params.PI_20)
	if !ok {
		return false, diagnostics.MalformedFramef("ACK_SYN missing PI_20")
	}
	acked := uint32(params.DecodeN(raw))
	if err := c.counters.CommitSync(acked); err != nil {
		if rerr := c.attemptResync(s, acked, err); rerr != nil {
			return false, rerr
		}
		return true, nil
	}
	c.saveRestartPoint()
	return false, nil
}

// attemptResync recovers from one ACK_SYN mismatch by renegotiating
// the sync point with RESYN and rewinding the source to the last
// committed offset. It can only honor an agreement at exactly the
// last committed sync number, since no earlier offsets are retained;
// anything else leaves the original SyncViolation fatal.
func (c *Context) attemptResync(s Sender, acked uint32, cause error) error {
	if acked != c.counters.LastSyncNum {
		return cause
	}
	body := params.EncodeList(&params.List{Params: []params.Param{
		{ID: params.PI_20, Value: params.EncodeN(uint64(acked), 3)},
	}})
	f, err := s.SendAndAwaitAck(wire.RESYN, 0, 0, body, wire.ACK_RESYN)
	if err != nil {
		return cause
	}
	list, err := params.DecodeList(f.Body)
	if err != nil {
		return cause
	}
	raw, ok := list.Get(params.PI_20)
	if !ok || uint32(params.DecodeN(raw)) != acked {
		return cause
	}

	rewind := int64(c.base + c.counters.BytesAtLastSync)
	if _, err := c.source.Seek(rewind, io.SeekStart); err != nil {
		return diagnostics.Wrap(diagnostics.StorageError, diagnostics.CodeFileNotFound, "rewinding source for resync", err)
	}
	c.counters.ApplyResync(acked, c.counters.BytesAtLastSync)
	c.logger.Infof("resynchronized at sync %d (offset %d)", acked, rewind)
	return nil
}

// sendTransEnd emits TRANS_END carrying PI_19 (end-code) and waits for
// ACK_TRANS_END, returning to the caller's OF02/OF02B handling once
// acknowledged.
func (c *Context) sendTransEnd(s Sender, endCode byte) error {
	body := params.EncodeList(&params.List{Params: []params.Param{
		{ID: params.PI_19, Value: []byte{endCode}},
	}})
	_, err := s.SendAndAwaitAck(wire.TRANS_END, 0, 0, body, wire.ACK_TRANS_END)
	return err
}
