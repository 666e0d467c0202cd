// Package badgerstore implements the repository interfaces on an embedded
// BadgerDB key-value store.
//
// The store keeps every record under a namespaced key prefix ("user:",
// "file:", "folder:") with BSON-encoded values, so the persisted field set is
// identical to the MongoDB backend's. Queries are prefix scans with in-memory
// filtering, which is appropriate for the single-node deployments and test
// suites this backend serves.
//
// All operations are protected by one read-write mutex. Badger transactions
// already serialize conflicting writes, but the coarse lock additionally
// makes the read-modify-write version checks trivially correct without retry
// loops.
package badgerstore

import (
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/repository"
)

const (
	userPrefix   = "user:"
	filePrefix   = "file:"
	folderPrefix = "folder:"
)

// Store wraps a badger database shared by the three repositories.
type Store struct {
	mu sync.RWMutex
	db *badger.DB
}

// Open opens (creating if needed) a badger database at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewRepositories creates the badger-backed repository set.
func NewRepositories(store *Store) *repository.Repository {
	return &repository.Repository{
		User:   &userRepository{store: store},
		File:   &fileRepository{store: store},
		Folder: &folderRepository{store: store},
	}
}

func userKey(id primitive.ObjectID) []byte {
	return []byte(userPrefix + id.Hex())
}

func fileKey(id primitive.ObjectID) []byte {
	return []byte(filePrefix + id.Hex())
}

func folderKey(id primitive.ObjectID) []byte {
	return []byte(folderPrefix + id.Hex())
}

// get loads and decodes one record; returns badger.ErrKeyNotFound when absent.
func (s *Store) get(key []byte, out interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return bson.Unmarshal(val, out)
		})
	})
}

// put encodes and stores one record.
func (s *Store) put(key []byte, record interface{}) error {
	val, err := bson.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

// delete removes one record, reporting whether it existed.
func (s *Store) delete(key []byte) (bool, error) {
	existed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		existed = true
		return txn.Delete(key)
	})
	return existed, err
}

// scan decodes every record under prefix and hands it to fn; fn returning
// false stops the scan.
func (s *Store) scan(prefix string, decode func(val []byte) (bool, error)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var keep bool
			err := it.Item().Value(func(val []byte) error {
				var innerErr error
				keep, innerErr = decode(val)
				return innerErr
			})
			if err != nil {
				return err
			}
			if !keep {
				return nil
			}
		}
		return nil
	})
}
