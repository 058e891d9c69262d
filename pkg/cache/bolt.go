package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltCache implements Service on a local bbolt file, so state survives
// process restarts without an external server.
type BoltCache struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

type boltRecord struct {
	Value    string    `json:"v"`
	ExpireAt time.Time `json:"e,omitempty"`
}

// NewBoltCache opens (or creates) the database file at path.
func NewBoltCache(path string, opts ...BoltOption) (*BoltCache, error) {
	cfg := &BoltConfig{
		Bucket:      "whalewatch",
		OpenTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	bucket := []byte(cfg.Bucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &BoltCache{db: db, bucket: bucket, now: time.Now}, nil
}

func (c *BoltCache) Get(_ context.Context, key string) (string, error) {
	var rec boltRecord
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(c.bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return "", fmt.Errorf("bolt get %s: %w", key, err)
	}
	if !found || (!rec.ExpireAt.IsZero() && c.now().After(rec.ExpireAt)) {
		return "", ErrCacheMiss
	}
	return rec.Value, nil
}

func (c *BoltCache) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return c.MSet(ctx, map[string]string{key: value}, expiration)
}

// MSet writes all values in a single transaction.
func (c *BoltCache) MSet(_ context.Context, values map[string]string, expiration time.Duration) error {
	var expireAt time.Time
	if expiration > 0 {
		expireAt = c.now().Add(expiration)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		for k, v := range values {
			raw, err := json.Marshal(boltRecord{Value: v, ExpireAt: expireAt})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(k), raw); err != nil {
				return fmt.Errorf("bolt put %s: %w", k, err)
			}
		}
		return nil
	})
}

func (c *BoltCache) Delete(_ context.Context, keys ...string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return fmt.Errorf("bolt delete %s: %w", k, err)
			}
		}
		return nil
	})
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}
