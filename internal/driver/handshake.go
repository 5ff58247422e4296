// Package driver glues session, transfer, sync, and storage into the
// high-level operations a caller actually wants: open a session to a
// partner, accept one, and push or pull a file.
package driver

import (
	"io"

	"go.uber.org/zap"

	"github.com/pesit-e/pesitengine/internal/diagnostics"
	"github.com/pesit-e/pesitengine/internal/params"
	"github.com/pesit-e/pesitengine/internal/session"
	"github.com/pesit-e/pesitengine/internal/state"
	"github.com/pesit-e/pesitengine/internal/wire"
)

// ProtocolVersion is the only PI_06 value this engine negotiates.
const ProtocolVersion = 2

// DialConfig carries what the demander side needs to open a session.
// MaxEntitySize and SyncIntervalKB are proposals; the server may
// answer with a smaller entity size in ACONNECT and both sides use
// the agreed value.
type DialConfig struct {
	DemanderID     string
	ServerID       string
	Password       []byte
	MaxEntitySize  int
	SyncIntervalKB uint16

	// Preconnect sends the optional 24-byte EBCDIC identification
	// exchange before the first FPDU and marks the session
	// EBCDIC-coded.
	Preconnect bool
}

// Dial runs the demander's CONNECT/ACONNECT exchange over transport
// and returns a ready-to-use Context in CN03.
func Dial(transport session.Transport, cfg DialConfig, logger *zap.SugaredLogger) (*session.Context, error) {
	ctx := session.New(state.Demander, transport, logger)

	if cfg.Preconnect {
		if _, err := transport.Write(session.BuildPreconnect(cfg.DemanderID, string(cfg.Password))); err != nil {
			return nil, diagnostics.Wrap(diagnostics.TransportError, diagnostics.CodeTransportGeneric, "sending pre-connect", err)
		}
		if err := session.ReadPreconnectAck(transport); err != nil {
			return nil, diagnostics.Wrap(diagnostics.NegotiationFailure, diagnostics.CodeProtocolViolation, "pre-connect rejected", err)
		}
		ctx.DataCode = session.DataCodeEBCDIC
	}

	connectParams := []params.Param{
		{ID: params.PI_03, Value: params.EncodeC([]byte(cfg.DemanderID))},
		{ID: params.PI_04, Value: params.EncodeC([]byte(cfg.ServerID))},
		{ID: params.PI_05, Value: params.EncodeC(cfg.Password)},
		{ID: params.PI_06, Value: params.EncodeN(ProtocolVersion, 2)},
	}
	if cfg.MaxEntitySize > 0 {
		connectParams = append(connectParams,
			params.Param{ID: params.PI_25, Value: params.EncodeN(uint64(cfg.MaxEntitySize), 2)})
	}
	if cfg.SyncIntervalKB > 0 {
		connectParams = append(connectParams,
			params.Param{ID: params.PI_07, Value: params.EncodeSyncConfig(params.SyncConfig{ResyncEnabled: true, SyncKB: cfg.SyncIntervalKB})})
	}
	body := params.EncodeList(&params.List{Params: connectParams})

	f, err := ctx.SendAndAwaitAck(wire.CONNECT, 0, 0, body, wire.ACONNECT)
	if err != nil {
		return nil, err
	}

	list, err := params.DecodeList(f.Body)
	if err != nil {
		return nil, diagnostics.Wrap(diagnostics.MalformedFrame, diagnostics.CodeProtocolViolation, "decoding ACONNECT body", err)
	}
	if err := applyConnectParams(ctx, list); err != nil {
		return nil, err
	}

	ctx.DemanderID = cfg.DemanderID
	ctx.ServerID = cfg.ServerID
	return ctx, nil
}

// AcceptConfig carries what the server side needs to validate an
// inbound CONNECT.
type AcceptConfig struct {
	ServerID string
	Lookup   session.PartnerLookup

	// MaxEntitySize caps the entity size this server will agree to in
	// ACONNECT; zero accepts whatever the demander proposed.
	MaxEntitySize int

	// AllowPreconnect answers the optional EBCDIC identification
	// exchange when the demander opens with one. Detection blocks for
	// the first 24 bytes, so only enable it on listeners whose
	// partners either pre-connect or send a CONNECT of at least that
	// size (any CONNECT carrying real ids does).
	AllowPreconnect bool
}

// Accept runs the server's CONNECT/ACONNECT exchange and returns a
// ready-to-use Context in CN03B, or a diagnostics.Authentication error
// if the partner lookup rejects the demander.
func Accept(transport session.Transport, cfg AcceptConfig, logger *zap.SugaredLogger) (*session.Context, error) {
	ctx := session.New(state.Server, transport, logger)

	if cfg.AllowPreconnect {
		peek := make([]byte, session.PreconnectLen)
		if _, err := io.ReadFull(transport, peek); err != nil {
			return nil, diagnostics.Wrap(diagnostics.TransportError, diagnostics.CodeTransportGeneric, "reading session opening", err)
		}
		if id, password, ok := session.DetectPreconnect(peek); ok {
			if cfg.Lookup != nil {
				partner, found := cfg.Lookup(id)
				if !found || !session.CheckPassword(partner, []byte(password)) {
					return nil, diagnostics.New(diagnostics.Authentication, diagnostics.CodeAuthFailure, "pre-connect authentication failed")
				}
			}
			if err := session.WritePreconnectAck(transport); err != nil {
				return nil, diagnostics.Wrap(diagnostics.TransportError, diagnostics.CodeTransportGeneric, "answering pre-connect", err)
			}
			ctx.DataCode = session.DataCodeEBCDIC
		} else {
			ctx.PrimeRead(peek)
		}
	}

	f, err := ctx.Recv()
	if err != nil {
		sendAbort(ctx, err)
		return nil, err
	}
	if f.Type != wire.CONNECT {
		err := diagnostics.StateViolationf("expected CONNECT, got %s", wire.Name(f.Phase, f.Type))
		sendAbort(ctx, err)
		return nil, err
	}

	list, err := params.DecodeList(f.Body)
	if err != nil {
		err := diagnostics.Wrap(diagnostics.MalformedFrame, diagnostics.CodeProtocolViolation, "decoding CONNECT body", err)
		sendAbort(ctx, err)
		return nil, err
	}
	if err := applyConnectParams(ctx, list); err != nil {
		abortBody := params.EncodeList(&params.List{Params: []params.Param{
			{ID: params.PI_02, Value: diagnostics.WireCode(diagnostics.CodeBadVersion)},
		}})
		_ = ctx.Send(wire.ABORT, 0, 0, abortBody)
		return nil, err
	}

	demanderRaw, _ := list.Get(params.PI_03)
	demanderID := string(params.DecodeC(demanderRaw))
	passwordRaw, _ := list.Get(params.PI_05)

	if cfg.Lookup != nil {
		partner, found := cfg.Lookup(demanderID)
		if !found || !session.CheckPassword(partner, passwordRaw) {
			abortBody := params.EncodeList(&params.List{Params: []params.Param{
				{ID: params.PI_02, Value: diagnostics.WireCode(diagnostics.CodeAuthFailure)},
			}})
			_ = ctx.Send(wire.ABORT, 0, 0, abortBody)
			return nil, diagnostics.New(diagnostics.Authentication, diagnostics.CodeAuthFailure, "partner authentication failed")
		}
	}

	if cfg.MaxEntitySize > 0 && (ctx.MaxEntitySize == 0 || int(ctx.MaxEntitySize) > cfg.MaxEntitySize) {
		ctx.MaxEntitySize = uint16(cfg.MaxEntitySize)
	}

	ackParams := []params.Param{
		{ID: params.PI_06, Value: params.EncodeN(ProtocolVersion, 2)},
	}
	if ctx.MaxEntitySize > 0 {
		ackParams = append(ackParams,
			params.Param{ID: params.PI_25, Value: params.EncodeN(uint64(ctx.MaxEntitySize), 2)})
	}
	if err := ctx.Send(wire.ACONNECT, 0, 0, params.EncodeList(&params.List{Params: ackParams})); err != nil {
		return nil, err
	}

	ctx.DemanderID = demanderID
	ctx.ServerID = cfg.ServerID
	return ctx, nil
}

func applyConnectParams(ctx *session.Context, list *params.List) error {
	if raw, ok := list.Get(params.PI_06); ok {
		version := params.DecodeN(raw)
		if version != ProtocolVersion {
			return diagnostics.New(diagnostics.NegotiationFailure, diagnostics.CodeBadVersion,
				"unsupported protocol version")
		}
		ctx.Version = ProtocolVersion
	}
	if raw, ok := list.Get(params.PI_25); ok {
		ctx.MaxEntitySize = uint16(params.DecodeN(raw))
	}
	if raw, ok := list.Get(params.PI_07); ok {
		if sc, err := params.DecodeSyncConfig(raw); err == nil {
			ctx.SyncCfg = sc
		}
	}
	return nil
}
