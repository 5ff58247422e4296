package sync

import (
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/pesit-e/pesitengine/internal/params"
)

// BadgerRestartStore is the optional durable RestartStore: restart
// points survive a process restart, which PI_18 recovery across
// sessions requires. The caller owns the *badger.DB lifecycle
// (open/close); this type only touches the restartKeyPrefix namespace
// within it.
type BadgerRestartStore struct {
	db *badger.DB
}

func NewBadgerRestartStore(db *badger.DB) *BadgerRestartStore {
	return &BadgerRestartStore{db: db}
}

func (s *BadgerRestartStore) Save(transferID string, point params.RestartPoint) error {
	encoded := params.EncodeRestartPoint(point)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(restartKey(transferID), encoded)
	})
}

func (s *BadgerRestartStore) Load(transferID string) (params.RestartPoint, bool, error) {
	var point params.RestartPoint
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(restartKey(transferID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			decoded, decErr := params.DecodeRestartPoint(val)
			if decErr != nil {
				return decErr
			}
			point = decoded
			return nil
		})
	})
	if err != nil {
		return params.RestartPoint{}, false, err
	}
	return point, found, nil
}

func (s *BadgerRestartStore) Delete(transferID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(restartKey(transferID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

var _ RestartStore = (*BadgerRestartStore)(nil)
