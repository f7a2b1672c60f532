package session

import (
	stderrors "errors"

	"github.com/dgraph-io/badger/v4"
)

var recoveryKey = []byte("local:regNo")

// Keystore persists the registration number of the last authenticated
// session, so the revocation watch can be re-bound after a restart.
type Keystore struct {
	db *badger.DB
}

func NewKeystore(db *badger.DB) *Keystore {
	return &Keystore{db: db}
}

func (k *Keystore) Save(regNo string) error {
	return k.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recoveryKey, []byte(regNo))
	})
}

// Load returns the saved registration number, or "" when none is held.
func (k *Keystore) Load() (string, error) {
	var regNo string
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recoveryKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			regNo = string(val)
			return nil
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	return regNo, err
}

func (k *Keystore) Clear() error {
	return k.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(recoveryKey)
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
