package transfer

import (
	"bytes"
	"crypto/sha256"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pesit-e/pesitengine/internal/params"
	"github.com/pesit-e/pesitengine/internal/wire"
)

// memSource is an in-memory ByteSource backed by a byte slice.
type memSource struct {
	*bytes.Reader
}

func newMemSource(data []byte) *memSource { return &memSource{bytes.NewReader(data)} }
func (m *memSource) Close() error         { return nil }
func (m *memSource) Size() (int64, error) { return m.Reader.Size(), nil }

// memSink is an in-memory ByteSink backed by a growable buffer.
type memSink struct {
	buf    []byte
	offset int64
}

func (m *memSink) Write(p []byte) (int, error) {
	end := m.offset + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	n := copy(m.buf[m.offset:end], p)
	m.offset += int64(n)
	return n, nil
}

func (m *memSink) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.offset = offset
	case io.SeekCurrent:
		m.offset += offset
	case io.SeekEnd:
		m.offset = int64(len(m.buf)) + offset
	}
	return m.offset, nil
}

func (m *memSink) Close() error              { return nil }
func (m *memSink) Sync() error               { return nil }
func (m *memSink) Truncate(size int64) error { m.buf = m.buf[:size]; return nil }

// chanSender is a Sender backed by a pair of channels, simulating a
// session.Context's Send/Recv without a real transport underneath.
type chanSender struct {
	out chan *wire.Fpdu
	in  chan *wire.Fpdu
}

func newChanSenderPair() (*chanSender, *chanSender) {
	ab := make(chan *wire.Fpdu, 32)
	ba := make(chan *wire.Fpdu, 32)
	return &chanSender{out: ab, in: ba}, &chanSender{out: ba, in: ab}
}

func phaseForTest(typ wire.Type) wire.Phase {
	switch typ {
	case wire.DTF, wire.DTFMA, wire.DTFDA, wire.DTFFA:
		return wire.PhaseData
	default:
		return wire.PhaseFile
	}
}

func (s *chanSender) Send(typ wire.Type, idDst, idSrc byte, body []byte) error {
	s.out <- &wire.Fpdu{Phase: phaseForTest(typ), Type: typ, IDDst: idDst, IDSrc: idSrc, Body: append([]byte(nil), body...)}
	return nil
}

func (s *chanSender) Recv() (*wire.Fpdu, error) {
	f, ok := <-s.in
	if !ok {
		return nil, io.EOF
	}
	return f, nil
}

func (s *chanSender) SendAndAwaitAck(typ wire.Type, idDst, idSrc byte, body []byte, ackType wire.Type) (*wire.Fpdu, error) {
	if err := s.Send(typ, idDst, idSrc, body); err != nil {
		return nil, err
	}
	f, err := s.Recv()
	if err != nil {
		return nil, err
	}
	return f, nil
}

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func runTransfer(t *testing.T, data []byte, recordLength, maxEntitySize int, syncKB uint16) []byte {
	t.Helper()
	senderSide, receiverSide := newChanSenderPair()

	senderCtx := NewContext(Config{
		RecordLength:   recordLength,
		MaxEntitySize:  maxEntitySize,
		DeclaredSize:   uint64(len(data)),
		SyncIntervalKB: syncKB,
	}, testLogger())
	senderCtx.SetSource(newMemSource(data))

	sink := &memSink{}
	receiverCtx := NewContext(Config{
		RecordLength:   recordLength,
		MaxEntitySize:  maxEntitySize,
		DeclaredSize:   uint64(len(data)),
		SyncIntervalKB: syncKB,
	}, testLogger())
	receiverCtx.SetSink(sink)

	errCh := make(chan error, 2)
	go func() { errCh <- senderCtx.SendFile(senderSide) }()
	go func() { errCh <- receiverCtx.ReceiveFile(receiverSide) }()

	require.NoError(t, <-errCh)
	require.NoError(t, <-errCh)
	return sink.buf
}

func TestSendReceive_SmallUnstructuredFile(t *testing.T) {
	data := bytes.Repeat([]byte{'z'}, 100)
	got := runTransfer(t, data, 0, 512, 0)
	assert.Equal(t, data, got)
}

func TestSendReceive_FixedRecordsWithSync(t *testing.T) {
	data := bytes.Repeat([]byte{0}, 0)
	for i := 0; i < 8; i++ {
		data = append(data, bytes.Repeat([]byte{byte('A' + i)}, 128)...)
	}
	got := runTransfer(t, data, 128, 512, 1) // 1KB sync interval, file is 1KB
	assert.Equal(t, data, got)
	assert.Equal(t, sha256.Sum256(data), sha256.Sum256(got))
}

func TestSendReceive_OversizedRecordSplit(t *testing.T) {
	data := bytes.Repeat([]byte{'q'}, 1000)
	got := runTransfer(t, data, 1000, 512, 0)
	assert.Equal(t, data, got)
}

func TestSendReceive_DeclaredSizeExceeded(t *testing.T) {
	senderSide, receiverSide := newChanSenderPair()

	data := bytes.Repeat([]byte{'o'}, 200)
	senderCtx := NewContext(Config{RecordLength: 0, MaxEntitySize: 512, DeclaredSize: uint64(len(data))}, testLogger())
	senderCtx.SetSource(newMemSource(data))

	sink := &memSink{}
	receiverCtx := NewContext(Config{RecordLength: 0, MaxEntitySize: 512, DeclaredSize: 50}, testLogger())
	receiverCtx.SetSink(sink)

	errCh := make(chan error, 1)
	go func() { _ = senderCtx.SendFile(senderSide) }()
	go func() { errCh <- receiverCtx.ReceiveFile(receiverSide) }()

	err := <-errCh
	require.Error(t, err)
}

// TestReceive_InterruptRealignment scripts a peer that interrupts the
// transfer with IDT after some uncommitted data; the receiver must
// discard back to the last committed sync point (here, the start),
// realign with a SYN at that number, and accept the retransmission.
func TestReceive_InterruptRealignment(t *testing.T) {
	peer, receiverSide := newChanSenderPair()

	sink := &memSink{}
	receiverCtx := NewContext(Config{MaxEntitySize: 512}, testLogger())
	receiverCtx.SetSink(sink)

	done := make(chan error, 1)
	go func() { done <- receiverCtx.ReceiveFile(receiverSide) }()

	require.NoError(t, peer.Send(wire.DTF, 0, 0, []byte("doomed")))
	require.NoError(t, peer.Send(wire.IDT, 0, 0, nil))

	f, err := peer.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.SYN, f.Type)
	list, err := params.DecodeList(f.Body)
	require.NoError(t, err)
	raw, ok := list.Get(params.PI_20)
	require.True(t, ok)
	assert.EqualValues(t, 0, params.DecodeN(raw))
	require.NoError(t, peer.Send(wire.ACK_SYN, 0, 0, f.Body))

	require.NoError(t, peer.Send(wire.DTF, 0, 0, []byte("kept")))
	require.NoError(t, peer.Send(wire.DTF_END, 0, 0, nil))
	require.NoError(t, peer.Send(wire.TRANS_END, 0, 0, nil))

	f, err = peer.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.ACK_TRANS_END, f.Type)
	require.NoError(t, <-done)

	assert.Equal(t, []byte("kept"), sink.buf)
}

// TestSendReceive_ResyncAfterAckMismatch scripts a peer that
// acknowledges the first SYN with the wrong number, forcing the
// sender through RESYN/ACK_RESYN and a rewind to offset zero.
func TestSendReceive_ResyncAfterAckMismatch(t *testing.T) {
	senderSide, peer := newChanSenderPair()

	data := bytes.Repeat([]byte{'r'}, 2048)
	senderCtx := NewContext(Config{MaxEntitySize: 512, DeclaredSize: uint64(len(data)), SyncIntervalKB: 1}, testLogger())
	senderCtx.SetSource(newMemSource(data))

	done := make(chan error, 1)
	go func() { done <- senderCtx.SendFile(senderSide) }()

	encodeSyncNum := func(num uint64) []byte {
		return params.EncodeList(&params.List{Params: []params.Param{
			{ID: params.PI_20, Value: params.EncodeN(num, 3)},
		}})
	}
	ackSyn := func(num uint64) {
		require.NoError(t, peer.Send(wire.ACK_SYN, 0, 0, encodeSyncNum(num)))
	}

	var received []byte
	misacked := false
	for {
		f, err := peer.Recv()
		require.NoError(t, err)

		switch f.Type {
		case wire.DTF, wire.DTFDA, wire.DTFMA, wire.DTFFA:
			received = append(received, f.Body...)
		case wire.SYN:
			list, err := params.DecodeList(f.Body)
			require.NoError(t, err)
			raw, ok := list.Get(params.PI_20)
			require.True(t, ok)
			if !misacked {
				misacked = true
				ackSyn(0) // behind on purpose: still at the start
				continue
			}
			ackSyn(params.DecodeN(raw))
		case wire.RESYN:
			list, err := params.DecodeList(f.Body)
			require.NoError(t, err)
			raw, ok := list.Get(params.PI_20)
			require.True(t, ok)
			require.EqualValues(t, 0, params.DecodeN(raw))
			received = nil // sender rewinds to offset 0
			require.NoError(t, peer.Send(wire.ACK_RESYN, 0, 0, encodeSyncNum(0)))
		case wire.DTF_END:
		case wire.TRANS_END:
			require.NoError(t, peer.Send(wire.ACK_TRANS_END, 0, 0, nil))
			require.NoError(t, <-done)
			assert.Equal(t, data, received)
			return
		default:
			t.Fatalf("unexpected FPDU type %#x", f.Type)
		}
	}
}
