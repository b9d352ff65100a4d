package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

// Store is a thin JSON-document layer over bbolt, one bucket per concern.
type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, os.FileMode(0600), &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) CreateBucket(bucket string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
}

// Get unmarshals the record with the given id into v.
func (s *Store) Get(bucket, id string, v interface{}) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("storage: bucket %s not found", bucket)
		}
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("storage: %s/%s not found", bucket, id)
		}
		return json.Unmarshal(data, v)
	})
}

// Update marshals v and overwrites the record wholesale.
func (s *Store) Update(bucket, id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("storage: bucket %s not found", bucket)
		}
		return b.Put([]byte(id), data)
	})
}

// List iterates all records in a bucket.
func (s *Store) List(bucket string, fn func(string, []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("storage: bucket %s not found", bucket)
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
}
