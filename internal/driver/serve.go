package driver

import (
	"context"
	"errors"

	"github.com/pesit-e/pesitengine/internal/diagnostics"
	"github.com/pesit-e/pesitengine/internal/params"
	"github.com/pesit-e/pesitengine/internal/session"
	"github.com/pesit-e/pesitengine/internal/storage"
	syncpkg "github.com/pesit-e/pesitengine/internal/sync"
	"github.com/pesit-e/pesitengine/internal/transfer"
	"github.com/pesit-e/pesitengine/internal/wire"
)

// ServeConfig carries what the server-side dispatch loop needs to
// answer CREATE/SELECT requests against a backing store.
type ServeConfig struct {
	Store          storage.ObjectStore
	Restarts       syncpkg.RestartStore
	MaxEntitySize  int
	SyncIntervalKB uint16
}

// ServeTransfer runs the server's file-phase accept loop on an already
// Accept()-ed session: CREATE or SELECT, then OPEN, then WRITE (receive)
// or READ (send), repeating until the peer sends RELEASE.
func ServeTransfer(ctx context.Context, sess *session.Context, cfg ServeConfig) error {
	for {
		f, err := sess.Recv()
		if err != nil {
			return err
		}

		switch f.Type {
		case wire.RELEASE:
			if err := sess.Send(wire.RELCONF, 0, 0, nil); err != nil {
				return err
			}
			return nil
		case wire.CREATE:
			if err := serveCreate(ctx, sess, cfg, f); err != nil {
				return err
			}
		case wire.SELECT:
			if err := serveSelect(ctx, sess, cfg, f); err != nil {
				return err
			}
		default:
			return diagnostics.StateViolationf("unexpected %s while awaiting CREATE/SELECT/RELEASE", wire.Name(f.Phase, f.Type))
		}
	}
}

func serveCreate(ctx context.Context, sess *session.Context, cfg ServeConfig, createFpdu *wire.Fpdu) error {
	list, err := params.DecodeList(createFpdu.Body)
	if err != nil {
		return diagnostics.Wrap(diagnostics.MalformedFrame, diagnostics.CodeProtocolViolation, "decoding CREATE body", err)
	}
	filenameRaw, _ := list.Find(params.PI_12)
	filename := string(params.DecodeC(filenameRaw))
	var declaredSize uint64
	if raw, ok := list.Get(params.PI_27); ok {
		declaredSize = params.DecodeN(raw)
	}

	if err := sess.Send(wire.ACK_CREATE, 0, 0, nil); err != nil {
		return err
	}

	fc, err := serveOpen(sess, cfg)
	if err != nil {
		return err
	}
	fc.Filename = filename
	fc.DeclaredSize = declaredSize

	op, err := sess.Recv()
	if err != nil {
		return err
	}
	if op.Type != wire.WRITE {
		return diagnostics.StateViolationf("expected WRITE after CREATE/OPEN, got %s", wire.Name(op.Phase, op.Type))
	}
	fc.RestartFrom = restartPointOf(op)
	if err := sess.Send(wire.ACK_WRITE, 0, 0, nil); err != nil {
		return err
	}

	sink, err := cfg.Store.OpenWrite(ctx, filename)
	if err != nil {
		return err
	}

	tfr := transfer.NewContext(fc.toTransferConfig(transferKey(sess.DemanderID, filename), cfg.Restarts), sess.Logger)
	tfr.SetSink(sink)
	sess.SetTransfer(tfr)
	defer func() {
		sess.ClearTransfer()
		_ = tfr.Close()
	}()

	if err := tfr.ReceiveFile(sess); err != nil {
		return err
	}
	if cfg.Restarts != nil {
		_ = cfg.Restarts.Delete(transferKey(sess.DemanderID, filename))
	}
	return serveClose(sess)
}

func serveSelect(ctx context.Context, sess *session.Context, cfg ServeConfig, selectFpdu *wire.Fpdu) error {
	list, err := params.DecodeList(selectFpdu.Body)
	if err != nil {
		return diagnostics.Wrap(diagnostics.MalformedFrame, diagnostics.CodeProtocolViolation, "decoding SELECT body", err)
	}
	filenameRaw, _ := list.Find(params.PI_12)
	filename := string(params.DecodeC(filenameRaw))

	exists, err := cfg.Store.Exists(ctx, filename)
	if err != nil {
		return err
	}
	if !exists {
		_ = sess.Send(wire.ABORT, 0, 0, nil)
		return diagnostics.New(diagnostics.StorageError, diagnostics.CodeFileNotFound, "selected file does not exist: "+filename)
	}
	size, err := cfg.Store.Len(ctx, filename)
	if err != nil {
		return err
	}

	ackBody := params.EncodeList(&params.List{Params: []params.Param{
		{ID: params.PI_27, Value: params.EncodeN(uint64(size), 8)},
	}})
	if err := sess.Send(wire.ACK_SELECT, 0, 0, ackBody); err != nil {
		return err
	}

	fc, err := serveOpen(sess, cfg)
	if err != nil {
		return err
	}
	fc.Filename = filename
	fc.DeclaredSize = uint64(size)

	op, err := sess.Recv()
	if err != nil {
		return err
	}
	if op.Type != wire.READ {
		return diagnostics.StateViolationf("expected READ after SELECT/OPEN, got %s", wire.Name(op.Phase, op.Type))
	}
	fc.RestartFrom = restartPointOf(op)
	if err := sess.Send(wire.ACK_READ, 0, 0, nil); err != nil {
		return err
	}

	src, err := cfg.Store.OpenRead(ctx, filename)
	if errors.Is(err, storage.ErrNotFound) {
		return diagnostics.New(diagnostics.StorageError, diagnostics.CodeFileNotFound, "file vanished between SELECT and READ: "+filename)
	}
	if err != nil {
		return err
	}

	tfr := transfer.NewContext(fc.toTransferConfig(transferKey(sess.DemanderID, filename), cfg.Restarts), sess.Logger)
	tfr.SetSource(src)
	sess.SetTransfer(tfr)
	defer func() {
		sess.ClearTransfer()
		_ = tfr.Close()
	}()

	if err := tfr.SendFile(sess); err != nil {
		return err
	}
	if cfg.Restarts != nil {
		_ = cfg.Restarts.Delete(transferKey(sess.DemanderID, filename))
	}
	return serveClose(sess)
}

// serveFileParams is the negotiated subset of OPEN's body this server
// needs to build a transfer.Config, plus the fields filled in by the
// CREATE/SELECT caller before the transfer starts.
type serveFileParams struct {
	Filename       string
	RecordLength   int
	MaxEntitySize  int
	SyncIntervalKB uint16
	DeclaredSize   uint64
	RestartFrom    *params.RestartPoint
}

func (p serveFileParams) toTransferConfig(transferID string, restarts syncpkg.RestartStore) transfer.Config {
	return transfer.Config{
		RecordLength:   p.RecordLength,
		MaxEntitySize:  p.MaxEntitySize,
		DeclaredSize:   p.DeclaredSize,
		SyncIntervalKB: p.SyncIntervalKB,
		TransferID:     transferID,
		RestartFrom:    p.RestartFrom,
		Restarts:       restarts,
	}
}

// serveOpen awaits and acknowledges the OPEN that follows ACK_CREATE
// or ACK_SELECT, decoding the negotiated record/entity/sync parameters.
func serveOpen(sess *session.Context, cfg ServeConfig) (serveFileParams, error) {
	f, err := sess.Recv()
	if err != nil {
		return serveFileParams{}, err
	}
	if f.Type != wire.OPEN {
		return serveFileParams{}, diagnostics.StateViolationf("expected OPEN, got %s", wire.Name(f.Phase, f.Type))
	}
	list, err := params.DecodeList(f.Body)
	if err != nil {
		return serveFileParams{}, diagnostics.Wrap(diagnostics.MalformedFrame, diagnostics.CodeProtocolViolation, "decoding OPEN body", err)
	}

	out := serveFileParams{MaxEntitySize: cfg.MaxEntitySize, SyncIntervalKB: cfg.SyncIntervalKB}
	if raw, ok := list.Get(params.PI_25); ok {
		out.MaxEntitySize = int(params.DecodeN(raw))
	}
	if raw, ok := list.Find(params.PI_32); ok {
		out.RecordLength = int(params.DecodeN(raw))
	}
	if raw, ok := list.Get(params.PI_07); ok {
		if sc, err := params.DecodeSyncConfig(raw); err == nil {
			out.SyncIntervalKB = sc.SyncKB
		}
	}

	if err := sess.Send(wire.ACK_OPEN, 0, 0, nil); err != nil {
		return serveFileParams{}, err
	}
	return out, nil
}

// transferKey identifies a transfer across sessions for restart
// bookkeeping: the same partner resuming the same file finds the sync
// point a previous session recorded.
func transferKey(demanderID, filename string) string {
	return demanderID + "/" + filename
}

// restartPointOf extracts PI_18 from a WRITE or READ FPDU, or nil
// when the peer is not resuming.
func restartPointOf(f *wire.Fpdu) *params.RestartPoint {
	list, err := params.DecodeList(f.Body)
	if err != nil {
		return nil
	}
	raw, ok := list.Get(params.PI_18)
	if !ok {
		return nil
	}
	point, err := params.DecodeRestartPoint(raw)
	if err != nil {
		return nil
	}
	return &point
}
