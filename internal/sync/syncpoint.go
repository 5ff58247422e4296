// Package sync implements the PeSIT-E sync-point protocol: periodic
// checkpoint bookkeeping, PI_20 monotonicity, and restart/RESYN
// recovery.
package sync

import (
	"strconv"

	"github.com/pesit-e/pesitengine/internal/diagnostics"
)

// Counters tracks one transfer's sync-point state. It is owned by a
// single transfer context and must not be shared across transfers.
type Counters struct {
	LastSyncNum        uint32
	BytesAtLastSync    uint64
	BytesSinceLastSync uint64
	syncIntervalBytes  uint64
}

// NewCounters builds a Counters for a transfer whose sync interval
// (derived from PI_07's KB count) is syncIntervalBytes.
func NewCounters(syncIntervalBytes uint64) *Counters {
	return &Counters{syncIntervalBytes: syncIntervalBytes}
}

// AddBytes records net file bytes moved since the last sync point.
func (c *Counters) AddBytes(n int) {
	c.BytesSinceLastSync += uint64(n)
}

// DueForSync reports whether enough bytes have moved to emit a SYN.
// A zero interval disables periodic sync points (the transfer relies
// solely on DTF_END/TRANS_END framing).
func (c *Counters) DueForSync() bool {
	return c.syncIntervalBytes > 0 && c.BytesSinceLastSync >= c.syncIntervalBytes
}

// NextSyncNumber returns the sync number to use for the next SYN,
// without mutating state — callers commit with CommitSync once the
// matching ACK_SYN arrives. PI_20 starts at 1 and is strictly
// monotonic.
func (c *Counters) NextSyncNumber() uint32 {
	return c.LastSyncNum + 1
}

// CommitSync records that sync number num was acknowledged at the
// current byte position. It fails with a SyncViolation (2.222) if
// num does not match the sync number actually outstanding.
func (c *Counters) CommitSync(num uint32) error {
	expected := c.NextSyncNumber()
	if num != expected {
		return diagnostics.New(diagnostics.SyncViolation, diagnostics.CodeSyncViolation,
			syncMismatchMessage(expected, num))
	}
	c.LastSyncNum = num
	c.BytesAtLastSync += c.BytesSinceLastSync
	c.BytesSinceLastSync = 0
	return nil
}

func syncMismatchMessage(expected, got uint32) string {
	return "sync number mismatch: expected " + strconv.FormatUint(uint64(expected), 10) +
		", got " + strconv.FormatUint(uint64(got), 10)
}

// Resync negotiates a mid-transfer RESYN: the peer proposes
// requested; this side accepts with an agreed sync number at or
// below both the requested and the last-committed number, or rejects
// if requested is ahead of what this side has seen (it cannot agree
// to a point it hasn't reached).
func (c *Counters) Resync(requested uint32) (agreed uint32, accepted bool) {
	if requested > c.LastSyncNum {
		return 0, false
	}
	return requested, true
}

// ApplyResync truncates local bookkeeping to the agreed sync point.
// The receiver must discard any data recorded beyond the agreed
// offset before resuming; the actual file truncation is the transfer
// orchestrator's job since only it holds the sink.
func (c *Counters) ApplyResync(agreed uint32, offsetAtAgreed uint64) {
	c.LastSyncNum = agreed
	c.BytesAtLastSync = offsetAtAgreed
	c.BytesSinceLastSync = 0
}
