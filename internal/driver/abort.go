package driver

import (
	"errors"

	"github.com/pesit-e/pesitengine/internal/diagnostics"
	"github.com/pesit-e/pesitengine/internal/params"
	"github.com/pesit-e/pesitengine/internal/session"
	"github.com/pesit-e/pesitengine/internal/wire"
)

// sendAbort notifies the peer of a fatal failure, best effort: it
// sends ABORT carrying the error's PI_02 code. Transport errors are
// local-only (the peer is unreachable) and produce no ABORT.
func sendAbort(sess *session.Context, err error) {
	var de *diagnostics.Error
	if !errors.As(err, &de) || !de.Fatal() {
		return
	}
	body := params.EncodeList(&params.List{Params: []params.Param{
		{ID: params.PI_02, Value: diagnostics.WireCode(de.Code)},
	}})
	_ = sess.Send(wire.ABORT, 0, 0, body)
}
