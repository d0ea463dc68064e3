package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps the blacklist in an embedded BadgerDB. Badger drops entries once their TTL passes.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadger opens (or creates) a database under dir. An empty dir opens an in-memory database.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return NewBadgerStore(db), nil
}

func (s *BadgerStore) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	entry := badger.NewEntry([]byte(Key(token)), []byte("1")).
		WithTTL(time.Duration(ttlSeconds(ttl)) * time.Second)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}); err != nil {
		return fmt.Errorf("set %s: %w", keyPrefix, err)
	}
	return nil
}

func (s *BadgerStore) IsRevoked(_ context.Context, token string) (bool, error) {
	revoked := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(Key(token)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		revoked = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("get %s: %w", keyPrefix, err)
	}
	return revoked, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
