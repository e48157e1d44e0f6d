// Package badger provides a metadatastore.Store backed by an embedded
// BadgerDB instance, used for the durable base and local layers on a
// device.
package badger

import (
	"context"

	bdg "github.com/dgraph-io/badger/v4"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
	"github.com/lockbook/lockbook-core/pkg/metadatastore"
)

// Store is a thin wrapper over a *badger.DB with NO business logic: it
// stores and retrieves SignedFile records by id and nothing else.
type Store struct {
	db *bdg.DB
}

// Open opens (creating if necessary) a badger database rooted at path.
func Open(path string) (*Store, error) {
	opts := bdg.DefaultOptions(path).WithLogger(nil)
	db, err := bdg.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, id lbmodel.FileID) (lbmodel.SignedFile, bool, error) {
	if err := ctx.Err(); err != nil {
		return lbmodel.SignedFile{}, false, err
	}

	var file lbmodel.SignedFile
	found := false
	err := s.db.View(func(txn *bdg.Txn) error {
		item, err := txn.Get(keyFile(id))
		if err == bdg.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeFile(val)
			if err != nil {
				return err
			}
			file = decoded
			found = true
			return nil
		})
	})
	if err != nil {
		return lbmodel.SignedFile{}, false, err
	}
	return file, found, nil
}

func (s *Store) Put(ctx context.Context, file lbmodel.SignedFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := encodeFile(file)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *bdg.Txn) error {
		return txn.Set(keyFile(file.Metadata.ID), raw)
	})
}

func (s *Store) Delete(ctx context.Context, id lbmodel.FileID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *bdg.Txn) error {
		err := txn.Delete(keyFile(id))
		if err == bdg.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (s *Store) All(ctx context.Context) ([]lbmodel.SignedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []lbmodel.SignedFile
	err := s.db.View(func(txn *bdg.Txn) error {
		opts := bdg.DefaultIteratorOptions
		opts.Prefix = []byte(prefixFile)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				file, err := decodeFile(val)
				if err != nil {
					return err
				}
				out = append(out, file)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	files, err := s.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// WithTransaction runs fn inside a single native Badger transaction. A
// returned error discards every write fn made.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx metadatastore.Layer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *bdg.Txn) error {
		return fn(&txLayer{ctx: ctx, txn: txn})
	})
}

func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *bdg.Txn) error { return nil })
}

func (s *Store) Close() error {
	return s.db.Close()
}

// txLayer adapts a single badger.Txn to metadatastore.Layer for the
// duration of a WithTransaction call.
type txLayer struct {
	ctx context.Context
	txn *bdg.Txn
}

func (tx *txLayer) Get(ctx context.Context, id lbmodel.FileID) (lbmodel.SignedFile, bool, error) {
	item, err := tx.txn.Get(keyFile(id))
	if err == bdg.ErrKeyNotFound {
		return lbmodel.SignedFile{}, false, nil
	}
	if err != nil {
		return lbmodel.SignedFile{}, false, err
	}

	var file lbmodel.SignedFile
	err = item.Value(func(val []byte) error {
		decoded, err := decodeFile(val)
		if err != nil {
			return err
		}
		file = decoded
		return nil
	})
	return file, err == nil, err
}

func (tx *txLayer) Put(ctx context.Context, file lbmodel.SignedFile) error {
	raw, err := encodeFile(file)
	if err != nil {
		return err
	}
	return tx.txn.Set(keyFile(file.Metadata.ID), raw)
}

func (tx *txLayer) Delete(ctx context.Context, id lbmodel.FileID) error {
	err := tx.txn.Delete(keyFile(id))
	if err == bdg.ErrKeyNotFound {
		return nil
	}
	return err
}

func (tx *txLayer) All(ctx context.Context) ([]lbmodel.SignedFile, error) {
	var out []lbmodel.SignedFile
	opts := bdg.DefaultIteratorOptions
	opts.Prefix = []byte(prefixFile)
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		err := it.Item().Value(func(val []byte) error {
			file, err := decodeFile(val)
			if err != nil {
				return err
			}
			out = append(out, file)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (tx *txLayer) Len(ctx context.Context) (int, error) {
	files, err := tx.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}
