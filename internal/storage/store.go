// Package storage provides the file-side collaborators a transfer
// reads from and writes to: the ObjectStore capability contract
// and its LocalStore/S3Store implementations.
package storage

import (
	"context"
	"errors"

	"github.com/pesit-e/pesitengine/internal/transfer"
)

// ErrNotFound is returned by Len/OpenRead when the named object does
// not exist.
var ErrNotFound = errors.New("storage: object not found")

// ObjectStore is the capability a driver needs to turn a negotiated
// PI_12 filename into the byte source/sink a transfer reads from or
// writes to.
type ObjectStore interface {
	OpenRead(ctx context.Context, name string) (transfer.ByteSource, error)
	OpenWrite(ctx context.Context, name string) (transfer.ByteSink, error)
	Len(ctx context.Context, name string) (int64, error)
	Exists(ctx context.Context, name string) (bool, error)
}
