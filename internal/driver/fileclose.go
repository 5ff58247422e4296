package driver

import (
	"github.com/pesit-e/pesitengine/internal/diagnostics"
	"github.com/pesit-e/pesitengine/internal/session"
	"github.com/pesit-e/pesitengine/internal/wire"
)

// closeFile drives the demander side of CLOSE -> ACK_CLOSE -> DESELECT
// -> ACK_DESELECT, returning the session from OF02 to CN03 so another
// CREATE/SELECT or a RELEASE can follow.
func closeFile(sess *session.Context) error {
	if _, err := sess.SendAndAwaitAck(wire.CLOSE, 0, 0, nil, wire.ACK_CLOSE); err != nil {
		return err
	}
	if _, err := sess.SendAndAwaitAck(wire.DESELECT, 0, 0, nil, wire.ACK_DESELECT); err != nil {
		return err
	}
	return nil
}

// serveClose drives the server side of the same exchange: awaits
// CLOSE, acknowledges it, awaits DESELECT, acknowledges it.
func serveClose(sess *session.Context) error {
	f, err := sess.Recv()
	if err != nil {
		return err
	}
	if f.Type != wire.CLOSE {
		return diagnostics.StateViolationf("expected CLOSE, got %s", wire.Name(f.Phase, f.Type))
	}
	if err := sess.Send(wire.ACK_CLOSE, 0, 0, nil); err != nil {
		return err
	}

	f, err = sess.Recv()
	if err != nil {
		return err
	}
	if f.Type != wire.DESELECT {
		return diagnostics.StateViolationf("expected DESELECT, got %s", wire.Name(f.Phase, f.Type))
	}
	return sess.Send(wire.ACK_DESELECT, 0, 0, nil)
}
