package transfer

import (
	"io"

	"go.uber.org/zap"

	"github.com/pesit-e/pesitengine/internal/diagnostics"
	"github.com/pesit-e/pesitengine/internal/logging"
	"github.com/pesit-e/pesitengine/internal/params"
	syncpkg "github.com/pesit-e/pesitengine/internal/sync"
	"github.com/pesit-e/pesitengine/internal/wire"
)

// ByteSource is the file-side collaborator a sender reads from: the
// narrow contract over whatever holds the actual file bytes
// (internal/storage's LocalStore/S3Store satisfy it).
type ByteSource interface {
	io.ReadSeekCloser
	Size() (int64, error)
}

// ByteSink is the file-side collaborator a receiver writes to.
type ByteSink interface {
	io.WriteSeeker
	io.Closer
	Truncate(size int64) error
	Sync() error
}

// Sender is an abstract FPDU sender: the subset of session.Context a
// transfer needs, so this package never imports internal/session.
type Sender interface {
	Send(typ wire.Type, idDst, idSrc byte, body []byte) error
	SendAndAwaitAck(typ wire.Type, idDst, idSrc byte, body []byte, ackType wire.Type) (*wire.Fpdu, error)
	Recv() (*wire.Fpdu, error)
}

// Config carries the negotiated parameters a transfer needs from the
// file-phase CREATE/OPEN exchange.
type Config struct {
	RecordLength   int
	MaxEntitySize  int
	DeclaredSize   uint64
	SyncIntervalKB uint16
	TransferID     string
	RestartFrom    *params.RestartPoint

	// Restarts, when non-nil, persists each committed sync point so a
	// later session can resume the transfer with PI_18.
	Restarts syncpkg.RestartStore
}

// Context is the active transfer: its sync-point bookkeeping and a
// Close to detach the underlying source/sink. It satisfies
// session.TransferContext.
type Context struct {
	cfg      Config
	counters *syncpkg.Counters
	logger   *zap.SugaredLogger
	source   ByteSource
	sink     ByteSink

	// base is the absolute file offset the transfer (re)started from;
	// counters track bytes relative to it.
	base uint64
}

func NewContext(cfg Config, logger *zap.SugaredLogger) *Context {
	return &Context{
		cfg:      cfg,
		counters: syncpkg.NewCounters(uint64(cfg.SyncIntervalKB) * 1024),
		logger:   logging.ForTransfer(logger, cfg.TransferID),
	}
}

// saveRestartPoint persists the last committed sync point, best
// effort: a failing restart store degrades restartability, not the
// transfer itself.
func (c *Context) saveRestartPoint() {
	if c.cfg.Restarts == nil || c.counters.LastSyncNum == 0 {
		return
	}
	point := params.RestartPoint{
		SyncNumber: c.counters.LastSyncNum,
		ByteOffset: c.base + c.counters.BytesAtLastSync,
	}
	if err := c.cfg.Restarts.Save(c.cfg.TransferID, point); err != nil {
		c.logger.Warnf("persisting restart point: %v", err)
	}
}

// SetSource attaches the file-side reader a sender pulls from.
func (c *Context) SetSource(src ByteSource) { c.source = src }

// SetSink attaches the file-side writer a receiver writes to.
func (c *Context) SetSink(sink ByteSink) { c.sink = sink }

func (c *Context) Close() error {
	var err error
	if c.source != nil {
		err = c.source.Close()
	}
	if c.sink != nil {
		if serr := c.sink.Close(); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}

// readRecords pulls up to batchBytes worth of fixed-length records
// from src, returning the records read and true if the source is now
// exhausted. recordLength <= 0 means unstructured data; each record
// is then one entity-sized chunk.
func readRecords(src io.Reader, recordLength, maxEntitySize, batchBytes int) ([][]byte, bool, error) {
	chunkSize := recordLength
	if chunkSize <= 0 {
		chunkSize = maxEntitySize
	}
	var records [][]byte
	read := 0
	for read < batchBytes {
		buf := make([]byte, chunkSize)
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			records = append(records, buf[:n])
			read += n
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return records, true, nil
		}
		if err != nil {
			return nil, false, diagnostics.Wrap(diagnostics.StorageError, diagnostics.CodeFileNotFound, "reading source", err)
		}
	}
	return records, false, nil
}
