package transfer

import (
	"io"

	"github.com/pesit-e/pesitengine/internal/diagnostics"
	"github.com/pesit-e/pesitengine/internal/params"
	"github.com/pesit-e/pesitengine/internal/wire"
)

// ReceiveFile drives the receiver side of the data phase once the
// caller has replied ACK_WRITE (or sent READ) and is in
// TDL02A/TDE02B. It dispatches incoming FPDUs by type until
// TRANS_END, writing decoded records to c.sink.
func (c *Context) ReceiveFile(s Sender) error {
	var pendingSplit []byte
	var written uint64
	writeOffset := int64(0)
	if c.cfg.RestartFrom != nil {
		writeOffset = int64(c.cfg.RestartFrom.ByteOffset)
		written = c.cfg.RestartFrom.ByteOffset
		c.counters.LastSyncNum = c.cfg.RestartFrom.SyncNumber
		c.base = c.cfg.RestartFrom.ByteOffset
	}

	writeRecord := func(rec []byte) error {
		if c.cfg.DeclaredSize > 0 && written+uint64(len(rec)) > c.cfg.DeclaredSize {
			return diagnostics.New(diagnostics.LimitExceeded, diagnostics.CodeSizeExceeded,
				"received bytes exceed declared file size")
		}
		if _, err := c.sink.Seek(writeOffset, io.SeekStart); err != nil {
			return diagnostics.Wrap(diagnostics.StorageError, diagnostics.CodeFileNotFound, "seeking sink", err)
		}
		n, err := c.sink.Write(rec)
		if err != nil {
			return diagnostics.Wrap(diagnostics.StorageError, diagnostics.CodeFileNotFound, "writing sink", err)
		}
		writeOffset += int64(n)
		written += uint64(n)
		c.counters.AddBytes(n)
		return nil
	}

	for {
		f, err := s.Recv()
		if err != nil {
			return err
		}

		switch f.Type {
		case wire.DTF:
			if len(pendingSplit) > 0 {
				if err := writeRecord(pendingSplit); err != nil {
					return err
				}
				pendingSplit = nil
			}
			if err := writeRecord(f.Body); err != nil {
				return err
			}

		case wire.DTFDA, wire.DTFMA, wire.DTFFA:
			// idSrc >= 1 declares packed multi-article with that
			// many records; idSrc = 0 is a raw segment of a record
			// spanning entities. No sniffing of idSrc = 0 bodies:
			// arbitrary record bytes can coincidentally parse as
			// length-prefixed articles.
			if idSrcIndicatesPacked(f.IDSrc) {
				records, ok, perr := parseArticles(f.Body)
				if perr != nil {
					return perr
				}
				if !ok {
					return diagnostics.MalformedFramef(
						"entity declares %d packed articles but length prefixes do not span the body", f.IDSrc)
				}
				// A packed entity terminates any record split across
				// the preceding entities.
				if len(pendingSplit) > 0 {
					if err := writeRecord(pendingSplit); err != nil {
						return err
					}
					pendingSplit = nil
				}
				for _, rec := range records {
					if err := writeRecord(rec); err != nil {
						return err
					}
				}
				continue
			}
			pendingSplit = append(pendingSplit, f.Body...)
			if f.Type == wire.DTFFA {
				if err := writeRecord(pendingSplit); err != nil {
					return err
				}
				pendingSplit = nil
			}

		case wire.SYN:
			if err := c.handleSyn(s, f); err != nil {
				return err
			}

		case wire.RESYN:
			list, err := params.DecodeList(f.Body)
			if err != nil {
				return diagnostics.Wrap(diagnostics.MalformedFrame, diagnostics.CodeProtocolViolation, "decoding RESYN body", err)
			}
			raw, ok := list.Get(params.PI_20)
			if !ok {
				return diagnostics.MalformedFramef("RESYN missing PI_20")
			}
			requested := uint32(params.DecodeN(raw))
			agreed, accepted := c.counters.Resync(requested)
			// Only the last committed point's offset is retained, so
			// an agreement below it cannot be honored either.
			if !accepted || agreed != c.counters.LastSyncNum {
				return diagnostics.New(diagnostics.SyncViolation, diagnostics.CodeSyncViolation,
					"cannot resynchronize at requested sync point")
			}
			target := int64(c.base + c.counters.BytesAtLastSync)
			if err := c.sink.Truncate(target); err != nil {
				return diagnostics.Wrap(diagnostics.StorageError, diagnostics.CodeFileNotFound, "truncating sink for resync", err)
			}
			writeOffset = target
			written = uint64(target)
			pendingSplit = nil
			c.counters.ApplyResync(agreed, c.counters.BytesAtLastSync)
			ackBody := params.EncodeList(&params.List{Params: []params.Param{
				{ID: params.PI_20, Value: params.EncodeN(uint64(agreed), 3)},
			}})
			if err := s.Send(wire.ACK_RESYN, 0, 0, ackBody); err != nil {
				return err
			}
			c.logger.Infof("resynchronized at sync %d (offset %d)", agreed, target)

		case wire.IDT:
			// Sender interrupt: drop any half-assembled record, fall
			// back to the last committed sync point, and realign by
			// sending SYN at that number. Data flow resumes once the
			// peer acknowledges it.
			pendingSplit = nil
			target := int64(c.base + c.counters.BytesAtLastSync)
			if err := c.sink.Truncate(target); err != nil {
				return diagnostics.Wrap(diagnostics.StorageError, diagnostics.CodeFileNotFound, "truncating sink after interrupt", err)
			}
			writeOffset = target
			written = uint64(target)
			c.counters.BytesSinceLastSync = 0
			realign := params.EncodeList(&params.List{Params: []params.Param{
				{ID: params.PI_20, Value: params.EncodeN(uint64(c.counters.LastSyncNum), 3)},
			}})
			ack, err := s.SendAndAwaitAck(wire.SYN, 0, 0, realign, wire.ACK_SYN)
			if err != nil {
				return err
			}
			if list, derr := params.DecodeList(ack.Body); derr == nil {
				if raw, ok := list.Get(params.PI_20); ok && uint32(params.DecodeN(raw)) != c.counters.LastSyncNum {
					return diagnostics.New(diagnostics.SyncViolation, diagnostics.CodeSyncViolation,
						"peer realigned at a different sync point after interrupt")
				}
			}
			c.logger.Infof("realigned at sync %d after interrupt", c.counters.LastSyncNum)

		case wire.ABORT, wire.RCONNECT:
			code := diagnostics.CodeProtocolViolation
			if list, derr := params.DecodeList(f.Body); derr == nil {
				if raw, ok := list.Get(params.PI_02); ok {
					code = diagnostics.FromWireCode(raw)
				}
			}
			return diagnostics.New(diagnostics.StateViolation, code, "peer tore the session down mid-transfer")

		case wire.DTF_END:
			if len(pendingSplit) > 0 {
				return diagnostics.MalformedFramef("DTF_END with an unterminated split-record article pending")
			}

		case wire.TRANS_END:
			if err := c.sink.Sync(); err != nil {
				return diagnostics.Wrap(diagnostics.StorageError, diagnostics.CodeFileNotFound, "final sync", err)
			}
			if err := s.Send(wire.ACK_TRANS_END, 0, 0, nil); err != nil {
				return err
			}
			if err := transEndError(f); err != nil {
				return err
			}
			c.logger.Infof("received %d bytes", written)
			return nil

		default:
			return diagnostics.StateViolationf("unexpected FPDU %s in data phase", wire.Name(f.Phase, f.Type))
		}
	}
}

func (c *Context) handleSyn(s Sender, f *wire.Fpdu) error {
	list, err := params.DecodeList(f.Body)
	if err != nil {
		return diagnostics.Wrap(diagnostics.MalformedFrame, diagnostics.CodeProtocolViolation, "decoding SYN body", err)
	}
	raw, ok := list.Get(params.PI_20)
	if !ok {
		return diagnostics.MalformedFramef("SYN missing PI_20")
	}
	num := uint32(params.DecodeN(raw))
	if err := c.sink.Sync(); err != nil {
		return diagnostics.Wrap(diagnostics.StorageError, diagnostics.CodeFileNotFound, "syncing sink", err)
	}
	if err := c.counters.CommitSync(num); err != nil {
		return err
	}
	c.saveRestartPoint()
	ackBody := params.EncodeList(&params.List{Params: []params.Param{
		{ID: params.PI_20, Value: params.EncodeN(uint64(num), 3)},
	}})
	return s.Send(wire.ACK_SYN, 0, 0, ackBody)
}

// transEndError surfaces an abnormal TRANS_END (PI_19 != 0) as a
// TransferEndError carrying the peer's PI_02 diagnostic, if any.
func transEndError(f *wire.Fpdu) error {
	list, err := params.DecodeList(f.Body)
	if err != nil {
		return nil
	}
	raw, ok := list.Get(params.PI_19)
	if !ok || len(raw) == 0 || raw[0] == 0 {
		return nil
	}
	code := diagnostics.CodeProtocolViolation
	if diag, ok := list.Get(params.PI_02); ok {
		code = diagnostics.FromWireCode(diag)
	}
	return diagnostics.New(diagnostics.TransferEndError, code, "peer ended transfer abnormally")
}
