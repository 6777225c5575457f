package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

const bucketEntries = "entries"

// boltEntry запись кэша со сроком действия
type boltEntry struct {
	Value     []byte
	ExpiresAt time.Time
}

// BoltCache встроенный кэш на bbolt для установок без Redis
type BoltCache struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltCache открывает (или создает) базу dataDir/cache.db
func NewBoltCache(dataDir string) (*BoltCache, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	path := filepath.Join(dataDir, "cache.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt at %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketEntries))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket %s: %w", bucketEntries, err)
	}
	return &BoltCache{db: db, now: time.Now}, nil
}

func (b *BoltCache) Get(_ context.Context, key string) ([]byte, error) {
	var entry boltEntry
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bucketEntries)).Get([]byte(key))
		if raw == nil {
			return nil
		}
		found = true
		return msgpack.Unmarshal(raw, &entry)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: bolt get %s: %v", ErrUnavailable, key, err)
	}
	if !found || !b.now().Before(entry.ExpiresAt) {
		return nil, ErrMiss
	}
	return entry.Value, nil
}

func (b *BoltCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := msgpack.Marshal(boltEntry{Value: value, ExpiresAt: b.now().Add(ttl).UTC()})
	if err != nil {
		return fmt.Errorf("marshal entry %s: %w", key, err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketEntries)).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: bolt set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Prune удаляет истекшие записи, возвращает их количество
func (b *BoltCache) Prune() (int, error) {
	now := b.now()
	var pruned int
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(bucketEntries))
		var toDelete [][]byte
		if err := bk.ForEach(func(k, v []byte) error {
			var entry boltEntry
			if err := msgpack.Unmarshal(v, &entry); err != nil || !now.Before(entry.ExpiresAt) {
				key := make([]byte, len(k))
				copy(key, k)
				toDelete = append(toDelete, key)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range toDelete {
			if err := bk.Delete(k); err != nil {
				return err
			}
			pruned++
		}
		return nil
	})
	return pruned, err
}

func (b *BoltCache) Ping(context.Context) error {
	return b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(bucketEntries)) == nil {
			return fmt.Errorf("%w: bucket %s missing", ErrUnavailable, bucketEntries)
		}
		return nil
	})
}

func (b *BoltCache) Close() error {
	return b.db.Close()
}

// GetStats возвращает размер базы и число записей
func (b *BoltCache) GetStats() map[string]interface{} {
	stats := map[string]interface{}{"backend": "bolt"}
	_ = b.db.View(func(tx *bolt.Tx) error {
		stats["size_bytes"] = tx.Size()
		stats["keys"] = tx.Bucket([]byte(bucketEntries)).Stats().KeyN
		return nil
	})
	return stats
}
