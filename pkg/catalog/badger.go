package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

// BadgerConfig configures a persistent catalog.
type BadgerConfig struct {
	// DBPath is the database directory. Ignored when InMemory is set.
	DBPath string `mapstructure:"path"`

	// InMemory runs badger without touching disk, for tests.
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB defaults to 64.
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`
}

// BadgerCatalog stores entries as JSON values in BadgerDB.
//
// Key Layout:
//   - "msg:<peer kind>:<peer id>:<zero-padded message id>" -> Entry JSON
//
// Zero-padding keeps a chat's messages in ID order under prefix iteration.
type BadgerCatalog struct {
	db *badger.DB
}

// NewBadgerCatalog opens (or creates) the database.
func NewBadgerCatalog(ctx context.Context, cfg BadgerConfig) (*BadgerCatalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, errors.New("badger catalog: path is required")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}

	// Entries are small and written once; compression is not worth it.
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}
	return &BadgerCatalog{db: db}, nil
}

func (c *BadgerCatalog) Get(ctx context.Context, ref retrieval.MessageRef) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry *Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(Key(ref)))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get entry: %w", err)
		}

		return item.Value(func(val []byte) error {
			entry, err = decodeEntry(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if err := checkAccess(entry, ref); err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *BadgerCatalog) Put(ctx context.Context, e *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(e); err != nil {
		return err
	}

	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(Key(e.Ref)), val)
	})
}

func (c *BadgerCatalog) Delete(ctx context.Context, ref retrieval.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(Key(ref)))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (c *BadgerCatalog) List(ctx context.Context, fn func(*Entry) error) error {
	return c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("msg:")

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var entry *Entry
			err := it.Item().Value(func(val []byte) error {
				var err error
				entry, err = decodeEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *BadgerCatalog) Close() error {
	return c.db.Close()
}

func decodeEntry(val []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	return &e, nil
}
