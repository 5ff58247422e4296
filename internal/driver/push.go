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

// FileConfig describes the file identity and transfer parameters a
// push or pull negotiates at CREATE/SELECT+OPEN.
type FileConfig struct {
	Filename       string
	RecordLength   int
	MaxEntitySize  int
	SyncIntervalKB uint16
	DataCode       byte
	Restart        bool
}

// PushFile drives the demander side of sending store's object named
// cfg.Filename to the peer: CREATE -> ACK_CREATE -> OPEN -> ACK_OPEN ->
// WRITE -> ACK_WRITE -> data phase -> TRANS_END.
func PushFile(ctx context.Context, sess *session.Context, store storage.ObjectStore, cfg FileConfig, restarts syncpkg.RestartStore) error {
	src, err := store.OpenRead(ctx, cfg.Filename)
	if err != nil {
		return err
	}
	size, err := src.Size()
	if err != nil {
		_ = src.Close()
		return err
	}

	createBody := params.EncodeList(&params.List{
		Params: []params.Param{
			{ID: params.PI_27, Value: params.EncodeN(uint64(size), 8)},
		},
		Groups: []params.Group{{ID: params.PGI09, Params: []params.Param{
			{ID: params.PI_03, Value: params.EncodeC([]byte(sess.DemanderID))},
			{ID: params.PI_04, Value: params.EncodeC([]byte(sess.ServerID))},
			{ID: params.PI_12, Value: params.EncodeC([]byte(cfg.Filename))},
		}}},
	})
	if _, err := sess.SendAndAwaitAck(wire.CREATE, 0, 0, createBody, wire.ACK_CREATE); err != nil {
		_ = src.Close()
		return err
	}

	transferID := transferKey(sess.DemanderID, cfg.Filename)

	var restartFrom *params.RestartPoint
	if cfg.Restart && restarts != nil {
		if point, ok, err := restarts.Load(transferID); err == nil && ok {
			restartFrom = &point
		}
	}

	openBody := params.EncodeList(&params.List{
		Params: []params.Param{
			{ID: params.PI_25, Value: params.EncodeN(uint64(cfg.MaxEntitySize), 2)},
			{ID: params.PI_07, Value: params.EncodeSyncConfig(params.SyncConfig{ResyncEnabled: cfg.Restart, SyncKB: cfg.SyncIntervalKB})},
			{ID: params.PI_16, Value: params.EncodeS(cfg.DataCode)},
		},
		Groups: []params.Group{{ID: params.PGI30, Params: []params.Param{
			{ID: params.PI_32, Value: params.EncodeN(uint64(cfg.RecordLength), 2)},
		}}},
	})
	if _, err := sess.SendAndAwaitAck(wire.OPEN, 0, 0, openBody, wire.ACK_OPEN); err != nil {
		_ = src.Close()
		return err
	}

	writeParams := []params.Param{
		{ID: params.PI_13, Value: params.EncodeN(0, 3)},
	}
	if restartFrom != nil {
		writeParams = append(writeParams,
			params.Param{ID: params.PI_18, Value: params.EncodeRestartPoint(*restartFrom)})
	}
	writeBody := params.EncodeList(&params.List{Params: writeParams})
	if _, err := sess.SendAndAwaitAck(wire.WRITE, 0, 0, writeBody, wire.ACK_WRITE); err != nil {
		_ = src.Close()
		return err
	}

	tfrCfg := transfer.Config{
		RecordLength:   cfg.RecordLength,
		MaxEntitySize:  cfg.MaxEntitySize,
		DeclaredSize:   uint64(size),
		SyncIntervalKB: cfg.SyncIntervalKB,
		TransferID:     transferID,
		RestartFrom:    restartFrom,
		Restarts:       restarts,
	}
	tfr := transfer.NewContext(tfrCfg, sess.Logger)
	tfr.SetSource(src)
	sess.SetTransfer(tfr)
	defer func() {
		sess.ClearTransfer()
		_ = tfr.Close()
	}()

	if err := tfr.SendFile(sess); err != nil {
		return err
	}
	if restarts != nil {
		_ = restarts.Delete(transferID)
	}
	return closeFile(sess)
}
