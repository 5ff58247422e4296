package session

import (
	"errors"
	"net"
	"time"

	"github.com/pesit-e/pesitengine/internal/diagnostics"
	"github.com/pesit-e/pesitengine/internal/params"
	"github.com/pesit-e/pesitengine/internal/wire"
)

// deadlineSetter is implemented by net.Conn and any other transport
// that supports read deadlines. Transports that don't (e.g. a plain
// in-memory pipe in tests) simply skip timeout enforcement.
type deadlineSetter interface {
	SetReadDeadline(t time.Time) error
}

// SendAndAwaitAck sends one request FPDU and blocks until the
// matching ACK arrives: every file-phase request
// other than data-bearing DTF*/SYN has exactly one matching ACK. The
// state machine's per-state transition table already rejects any
// other FPDU type arriving while in an awaiting-ACK state (surfacing
// as a StateViolation), so this helper only needs to track the
// ACK-wait timeout and hand back the ACK's body.
func (c *Context) SendAndAwaitAck(typ wire.Type, idDst, idSrc byte, body []byte, ackType wire.Type) (*wire.Fpdu, error) {
	if err := c.Send(typ, idDst, idSrc, body); err != nil {
		return nil, err
	}

	c.awaitingAck = &ackType
	defer func() { c.awaitingAck = nil }()

	if ds, ok := c.transportDeadline(); ok {
		_ = ds.SetReadDeadline(time.Now().Add(c.AckWaitTimeout))
		defer ds.SetReadDeadline(time.Time{})
	}

	f, err := c.Recv()
	if err != nil {
		if isTimeout(err) {
			return nil, diagnostics.New(diagnostics.SyncViolation, diagnostics.CodeTransportGeneric,
				"timed out waiting for "+wire.Name(wire.PhaseFile, ackType))
		}
		return nil, err
	}
	// Out-of-band session teardown is allowed while waiting; anything
	// else arriving here is a protocol error.
	if f.Type == wire.ABORT || f.Type == wire.RCONNECT {
		code := diagnostics.CodeProtocolViolation
		if list, derr := params.DecodeList(f.Body); derr == nil {
			if raw, ok := list.Get(params.PI_02); ok {
				code = diagnostics.FromWireCode(raw)
			}
		}
		return nil, diagnostics.New(diagnostics.StateViolation, code,
			"peer sent "+wire.Name(f.Phase, f.Type)+" while awaiting "+wire.Name(wire.PhaseFile, ackType))
	}
	if f.Type != ackType {
		return nil, diagnostics.StateViolationf("expected %s, got %s", wire.Name(wire.PhaseFile, ackType), wire.Name(f.Phase, f.Type))
	}
	return f, nil
}

func (c *Context) transportDeadline() (deadlineSetter, bool) {
	ds, ok := c.transport.(deadlineSetter)
	return ds, ok
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
