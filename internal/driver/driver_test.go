package driver

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pesit-e/pesitengine/internal/params"
	"github.com/pesit-e/pesitengine/internal/session"
	"github.com/pesit-e/pesitengine/internal/storage"
	syncpkg "github.com/pesit-e/pesitengine/internal/sync"
	"github.com/pesit-e/pesitengine/internal/wire"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func lookupAlways(partner session.Partner) session.PartnerLookup {
	return func(id string) (session.Partner, bool) { return partner, id == "CLIENT1" }
}

func TestDialAccept_Handshake(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverDone := make(chan error, 1)
	var serverCtx *session.Context
	go func() {
		var err error
		serverCtx, err = Accept(serverConn, AcceptConfig{
			ServerID: "SRV1",
			Lookup:   lookupAlways(session.Partner{Password: []byte("s3cret"), Enabled: true}),
		}, testLogger())
		serverDone <- err
	}()

	demanderCtx, err := Dial(clientConn, DialConfig{
		DemanderID: "CLIENT1",
		ServerID:   "SRV1",
		Password:   []byte("s3cret"),
	}, testLogger())
	require.NoError(t, err)
	require.NoError(t, <-serverDone)

	assert.Equal(t, "CLIENT1", demanderCtx.DemanderID)
	assert.Equal(t, "SRV1", demanderCtx.ServerID)
	assert.Equal(t, "CLIENT1", serverCtx.DemanderID)
}

func TestDialAccept_BadPasswordRejected(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverDone := make(chan error, 1)
	go func() {
		_, err := Accept(serverConn, AcceptConfig{
			ServerID: "SRV1",
			Lookup:   lookupAlways(session.Partner{Password: []byte("s3cret"), Enabled: true}),
		}, testLogger())
		serverDone <- err
	}()

	_, err := Dial(clientConn, DialConfig{
		DemanderID: "CLIENT1",
		ServerID:   "SRV1",
		Password:   []byte("wrong"),
	}, testLogger())
	require.Error(t, err)
	require.Error(t, <-serverDone)
}

func TestPushFile_EndToEnd(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	srcStore := storage.NewLocalStore(t.TempDir())
	dstStore := storage.NewLocalStore(t.TempDir())
	ctx := context.Background()

	sink, err := srcStore.OpenWrite(ctx, "report.txt")
	require.NoError(t, err)
	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	_, err = sink.Write(payload)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	serverDone := make(chan error, 1)
	go func() {
		serverCtx, err := Accept(serverConn, AcceptConfig{ServerID: "SRV1"}, testLogger())
		if err != nil {
			serverDone <- err
			return
		}
		serverDone <- ServeTransfer(ctx, serverCtx, ServeConfig{
			Store:          dstStore,
			Restarts:       syncpkg.NewMemoryRestartStore(),
			MaxEntitySize:  512,
			SyncIntervalKB: 1,
		})
	}()

	demanderCtx, err := Dial(clientConn, DialConfig{DemanderID: "CLIENT1", ServerID: "SRV1"}, testLogger())
	require.NoError(t, err)

	err = PushFile(ctx, demanderCtx, srcStore, FileConfig{
		Filename:       "report.txt",
		RecordLength:   128,
		MaxEntitySize:  512,
		SyncIntervalKB: 1,
	}, syncpkg.NewMemoryRestartStore())
	require.NoError(t, err)

	_, err = demanderCtx.SendAndAwaitAck(wire.RELEASE, 0, 0, nil, wire.RELCONF)
	require.NoError(t, err)
	require.NoError(t, <-serverDone)

	got, err := dstStore.OpenRead(ctx, "report.txt")
	require.NoError(t, err)
	defer got.Close()

	size, err := got.Size()
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), size)
}

func TestPullFile_EndToEnd(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverStore := storage.NewLocalStore(t.TempDir())
	clientStore := storage.NewLocalStore(t.TempDir())
	ctx := context.Background()

	sink, err := serverStore.OpenWrite(ctx, "catalog.bin")
	require.NoError(t, err)
	payload := []byte("pull me across the wire")
	_, err = sink.Write(payload)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	serverDone := make(chan error, 1)
	go func() {
		serverCtx, err := Accept(serverConn, AcceptConfig{ServerID: "SRV1"}, testLogger())
		if err != nil {
			serverDone <- err
			return
		}
		serverDone <- ServeTransfer(ctx, serverCtx, ServeConfig{
			Store:         serverStore,
			MaxEntitySize: 256,
		})
	}()

	demanderCtx, err := Dial(clientConn, DialConfig{DemanderID: "CLIENT1", ServerID: "SRV1"}, testLogger())
	require.NoError(t, err)

	err = PullFile(ctx, demanderCtx, clientStore, FileConfig{
		Filename:      "catalog.bin",
		MaxEntitySize: 256,
	}, nil)
	require.NoError(t, err)

	_, err = demanderCtx.SendAndAwaitAck(wire.RELEASE, 0, 0, nil, wire.RELCONF)
	require.NoError(t, err)
	require.NoError(t, <-serverDone)

	got, err := clientStore.OpenRead(ctx, "catalog.bin")
	require.NoError(t, err)
	defer got.Close()

	data, err := io.ReadAll(got)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestPullFile_MissingFileAborted(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverStore := storage.NewLocalStore(t.TempDir())
	clientStore := storage.NewLocalStore(t.TempDir())
	ctx := context.Background()

	serverDone := make(chan error, 1)
	go func() {
		serverCtx, err := Accept(serverConn, AcceptConfig{ServerID: "SRV1"}, testLogger())
		if err != nil {
			serverDone <- err
			return
		}
		serverDone <- ServeTransfer(ctx, serverCtx, ServeConfig{Store: serverStore, MaxEntitySize: 256})
	}()

	demanderCtx, err := Dial(clientConn, DialConfig{DemanderID: "CLIENT1", ServerID: "SRV1"}, testLogger())
	require.NoError(t, err)

	err = PullFile(ctx, demanderCtx, clientStore, FileConfig{Filename: "nope.bin", MaxEntitySize: 256}, nil)
	require.Error(t, err)
	require.Error(t, <-serverDone)
}

func TestDialAccept_PreconnectHandshake(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverDone := make(chan error, 1)
	var serverCtx *session.Context
	go func() {
		var err error
		serverCtx, err = Accept(serverConn, AcceptConfig{
			ServerID:        "SRV1",
			Lookup:          lookupAlways(session.Partner{Password: []byte("PW"), Enabled: true}),
			AllowPreconnect: true,
		}, testLogger())
		serverDone <- err
	}()

	demanderCtx, err := Dial(clientConn, DialConfig{
		DemanderID: "CLIENT1",
		ServerID:   "SRV1",
		Password:   []byte("PW"),
		Preconnect: true,
	}, testLogger())
	require.NoError(t, err)
	require.NoError(t, <-serverDone)

	assert.Equal(t, session.DataCodeEBCDIC, demanderCtx.DataCode)
	assert.Equal(t, session.DataCodeEBCDIC, serverCtx.DataCode)
}

func TestPushFile_RestartSkipsCommittedPrefix(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	srcStore := storage.NewLocalStore(t.TempDir())
	dstStore := storage.NewLocalStore(t.TempDir())
	ctx := context.Background()

	payload := make([]byte, 2048)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	sink, err := srcStore.OpenWrite(ctx, "big.bin")
	require.NoError(t, err)
	_, err = sink.Write(payload)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	// Simulate an interrupted earlier attempt: the receiver already
	// holds the first KiB, and the demander recorded sync point 1 at
	// that offset.
	partial, err := dstStore.OpenWrite(ctx, "big.bin")
	require.NoError(t, err)
	_, err = partial.Write(payload[:1024])
	require.NoError(t, err)
	require.NoError(t, partial.Close())

	restarts := syncpkg.NewMemoryRestartStore()
	require.NoError(t, restarts.Save("CLIENT1/big.bin", params.RestartPoint{SyncNumber: 1, ByteOffset: 1024}))

	serverDone := make(chan error, 1)
	go func() {
		serverCtx, err := Accept(serverConn, AcceptConfig{ServerID: "SRV1"}, testLogger())
		if err != nil {
			serverDone <- err
			return
		}
		serverDone <- ServeTransfer(ctx, serverCtx, ServeConfig{
			Store:          dstStore,
			MaxEntitySize:  512,
			SyncIntervalKB: 1,
		})
	}()

	demanderCtx, err := Dial(clientConn, DialConfig{DemanderID: "CLIENT1", ServerID: "SRV1"}, testLogger())
	require.NoError(t, err)

	err = PushFile(ctx, demanderCtx, srcStore, FileConfig{
		Filename:       "big.bin",
		MaxEntitySize:  512,
		SyncIntervalKB: 1,
		Restart:        true,
	}, restarts)
	require.NoError(t, err)

	_, err = demanderCtx.SendAndAwaitAck(wire.RELEASE, 0, 0, nil, wire.RELCONF)
	require.NoError(t, err)
	require.NoError(t, <-serverDone)

	got, err := dstStore.OpenRead(ctx, "big.bin")
	require.NoError(t, err)
	defer got.Close()
	data, err := io.ReadAll(got)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	// The completed transfer clears its checkpoint.
	_, found, err := restarts.Load("CLIENT1/big.bin")
	require.NoError(t, err)
	assert.False(t, found)
}
