package driver

import (
	"context"

	"github.com/pesit-e/pesitengine/internal/params"
	"github.com/pesit-e/pesitengine/internal/session"
	"github.com/pesit-e/pesitengine/internal/storage"
	syncpkg "github.com/pesit-e/pesitengine/internal/sync"
	"github.com/pesit-e/pesitengine/internal/transfer"
	"github.com/pesit-e/pesitengine/internal/wire"
)

// PullFile drives the demander side of retrieving a file from the
// peer into store under cfg.Filename: SELECT -> ACK_SELECT -> OPEN ->
// ACK_OPEN -> READ -> ACK_READ -> data phase -> TRANS_END (the TDL
// mirror of PushFile's TDE subtree).
func PullFile(ctx context.Context, sess *session.Context, store storage.ObjectStore, cfg FileConfig, restarts syncpkg.RestartStore) error {
	selectBody := params.EncodeList(&params.List{
		Groups: []params.Group{{ID: params.PGI09, Params: []params.Param{
			{ID: params.PI_03, Value: params.EncodeC([]byte(sess.DemanderID))},
			{ID: params.PI_04, Value: params.EncodeC([]byte(sess.ServerID))},
			{ID: params.PI_12, Value: params.EncodeC([]byte(cfg.Filename))},
		}}},
	})
	ack, err := sess.SendAndAwaitAck(wire.SELECT, 0, 0, selectBody, wire.ACK_SELECT)
	if err != nil {
		return err
	}

	var declaredSize uint64
	if list, derr := params.DecodeList(ack.Body); derr == nil {
		if raw, ok := list.Get(params.PI_27); ok {
			declaredSize = params.DecodeN(raw)
		}
	}

	transferID := transferKey(sess.DemanderID, cfg.Filename)

	var restartFrom *params.RestartPoint
	if cfg.Restart && restarts != nil {
		if point, ok, err := restarts.Load(transferID); err == nil && ok {
			restartFrom = &point
		}
	}

	openBody := params.EncodeList(&params.List{Params: []params.Param{
		{ID: params.PI_25, Value: params.EncodeN(uint64(cfg.MaxEntitySize), 2)},
		{ID: params.PI_07, Value: params.EncodeSyncConfig(params.SyncConfig{ResyncEnabled: cfg.Restart, SyncKB: cfg.SyncIntervalKB})},
		{ID: params.PI_16, Value: params.EncodeS(cfg.DataCode)},
	}})
	if _, err := sess.SendAndAwaitAck(wire.OPEN, 0, 0, openBody, wire.ACK_OPEN); err != nil {
		return err
	}

	readParams := []params.Param{
		{ID: params.PI_13, Value: params.EncodeN(0, 3)},
	}
	if restartFrom != nil {
		readParams = append(readParams,
			params.Param{ID: params.PI_18, Value: params.EncodeRestartPoint(*restartFrom)})
	}
	readBody := params.EncodeList(&params.List{Params: readParams})
	if _, err := sess.SendAndAwaitAck(wire.READ, 0, 0, readBody, wire.ACK_READ); err != nil {
		return err
	}

	sink, err := store.OpenWrite(ctx, cfg.Filename)
	if err != nil {
		return err
	}

	tfrCfg := transfer.Config{
		RecordLength:   cfg.RecordLength,
		MaxEntitySize:  cfg.MaxEntitySize,
		DeclaredSize:   declaredSize,
		SyncIntervalKB: cfg.SyncIntervalKB,
		TransferID:     transferID,
		RestartFrom:    restartFrom,
		Restarts:       restarts,
	}
	tfr := transfer.NewContext(tfrCfg, sess.Logger)
	tfr.SetSink(sink)
	sess.SetTransfer(tfr)
	defer func() {
		sess.ClearTransfer()
		_ = tfr.Close()
	}()

	if err := tfr.ReceiveFile(sess); err != nil {
		return err
	}
	if restarts != nil {
		_ = restarts.Delete(transferID)
	}
	return closeFile(sess)
}
