// Package session implements the PeSIT-E session layer: sending and
// receiving FPDUs over a transport, correlating requests with their
// ACKs, and driving the per-connection state.Machine. It owns the
// transport exclusively for the life of the connection.
package session

import (
	"io"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/pesit-e/pesitengine/internal/diagnostics"
	"github.com/pesit-e/pesitengine/internal/logging"
	"github.com/pesit-e/pesitengine/internal/params"
	"github.com/pesit-e/pesitengine/internal/state"
	"github.com/pesit-e/pesitengine/internal/wire"
)

// Transport is an abstract bidirectional byte stream.
// io.ReadWriteCloser already has this exact shape.
type Transport = io.ReadWriteCloser

// TransferContext is the narrow view session needs of the active
// transfer: just enough to close it on DESELECT or fatal error. The
// concrete type lives in internal/transfer, which depends on this
// package, not the other way around.
type TransferContext interface {
	Close() error
}

// DataCode values for PI_16.
const (
	DataCodeASCII  byte = 0
	DataCodeEBCDIC byte = 1
	DataCodeBinary byte = 2
)

// Context is one active session: negotiated parameters, current state
// machine, and at most one transfer context.
type Context struct {
	ID     string
	Logger *zap.SugaredLogger

	transport Transport
	reader    *wire.FrameReader

	Role    state.Role
	Machine *state.Machine

	DemanderID    string
	ServerID      string
	Version       uint8
	MaxEntitySize uint16
	SyncCfg       params.SyncConfig
	DataCode      byte

	mu       sync.Mutex
	Transfer TransferContext

	awaitingAck *wire.Type

	IdleTimeout    time.Duration
	AckWaitTimeout time.Duration
}

// New wraps transport into a Context for the given role. Callers must
// still run the CONNECT/ACONNECT exchange (or the EBCDIC pre-connect
// handshake, see ebcdic.go) before using the transfer-phase API.
func New(role state.Role, transport Transport, logger *zap.SugaredLogger) *Context {
	var m *state.Machine
	if role == state.Demander {
		m = state.NewDemander()
	} else {
		m = state.NewServer()
	}
	id := xid.New().String()
	return &Context{
		ID:             id,
		Logger:         logging.ForSession(logger, id),
		transport:      transport,
		reader:         wire.NewFrameReader(transport),
		Role:           role,
		Machine:        m,
		IdleTimeout:    60 * time.Second,
		AckWaitTimeout: 60 * time.Second,
	}
}

// Send writes one FPDU to the transport, also driving the local state
// machine with the "I sent this" event. Calls to Send must come from
// the single goroutine that owns this Context; sends are never
// reordered.
func (c *Context) Send(typ wire.Type, idDst, idSrc byte, body []byte) error {
	phase := phaseFor(typ)
	if _, err := c.Machine.Transition(state.Sent(typ)); err != nil {
		return asTransportOrStateErr(err)
	}
	raw := wire.Serialize(phase, typ, idDst, idSrc, body)
	if _, err := c.transport.Write(raw); err != nil {
		return diagnostics.Wrap(diagnostics.TransportError, diagnostics.CodeTransportGeneric, "write failed", err)
	}
	return nil
}

// Recv blocks for the next FPDU, driving the local state machine with
// the "I received this" event. The idle timeout applies unless an
// ACK wait is in progress, whose own (usually tighter) deadline is
// already armed.
func (c *Context) Recv() (*wire.Fpdu, error) {
	if c.awaitingAck == nil && c.IdleTimeout > 0 {
		if ds, ok := c.transportDeadline(); ok {
			_ = ds.SetReadDeadline(time.Now().Add(c.IdleTimeout))
			defer ds.SetReadDeadline(time.Time{})
		}
	}
	f, err := c.reader.ReadFpdu()
	if err != nil {
		if de, ok := err.(*diagnostics.Error); ok {
			if _, terr := c.Machine.Transition(state.CodecFailure); terr != nil {
				c.Logger.Warnf("codec failure event rejected by state machine: %v", terr)
			}
			return nil, de
		}
		return nil, diagnostics.Wrap(diagnostics.TransportError, diagnostics.CodeTransportGeneric, "read failed", err)
	}
	if _, err := c.Machine.Transition(state.Received(f.Type)); err != nil {
		return f, asTransportOrStateErr(err)
	}
	return f, nil
}

// PrimeRead seeds the frame reader with bytes already read off the
// transport during pre-connect detection.
func (c *Context) PrimeRead(b []byte) {
	c.reader.Prime(b)
}

// Close closes the transport and, if a transfer context is active,
// closes that too.
func (c *Context) Close() error {
	c.mu.Lock()
	tfr := c.Transfer
	c.Transfer = nil
	c.mu.Unlock()

	var tfrErr error
	if tfr != nil {
		tfrErr = tfr.Close()
	}
	err := c.transport.Close()
	if err != nil {
		return err
	}
	return tfrErr
}

// SetTransfer installs the active transfer context. The session
// exclusively owns it; only one exists at a time in this profile.
func (c *Context) SetTransfer(t TransferContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transfer = t
}

// ClearTransfer detaches (without closing) the current transfer
// context, e.g. once DESELECT has already closed it itself.
func (c *Context) ClearTransfer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transfer = nil
}

func phaseFor(typ wire.Type) wire.Phase {
	switch typ {
	case wire.CONNECT, wire.ACONNECT, wire.RCONNECT, wire.RELEASE, wire.RELCONF, wire.ABORT:
		return wire.PhaseSession
	case wire.DTF, wire.DTFMA, wire.DTFDA, wire.DTFFA:
		return wire.PhaseData
	default:
		return wire.PhaseFile
	}
}

func asTransportOrStateErr(err error) error {
	if serr, ok := err.(*state.TransitionError); ok {
		return serr.AsDiagnostics()
	}
	return err
}
