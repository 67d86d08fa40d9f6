package stagestore

import (
	"context"
	"time"

	bolt "github.com/boltdb/bolt"
)

const rootBucket = "checkout_sessions"

// boltStore keeps one nested bucket per session under rootBucket.
type boltStore struct {
	db *bolt.DB
}

// NewBolt opens (or creates) the database file at path.
func NewBolt(path string) (Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(rootBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &boltStore{db: db}, nil
}

func (s *boltStore) Get(_ context.Context, session, key string) (string, error) {
	var out string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(rootBucket)).Bucket([]byte(session))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction.
		out = string(v)
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (s *boltStore) Set(_ context.Context, session, key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket([]byte(rootBucket)).CreateBucketIfNotExists([]byte(session))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(value))
	})
}

func (s *boltStore) Delete(_ context.Context, session, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(rootBucket)).Bucket([]byte(session))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (s *boltStore) Close() error {
	return s.db.Close()
}
