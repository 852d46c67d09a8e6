// Package boltstore implements state.Store on a bbolt database.
//
// Every set lives in its own bucket, named by Ref.Identifier(), nested under
// a root bucket. The set bucket holds a `values` bucket of option texts and a
// `meta` key with the snapshot metadata and save order.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/goliatone/go-optset/pkg/state"
)

const (
	// DefaultBucket is the root bucket used when none is configured.
	DefaultBucket = "optset"

	valuesBucket = "values"
	metaKey      = "meta"
)

// Option configures a Store.
type Option func(*Store)

// WithBucket overrides the root bucket name.
func WithBucket(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.bucket = []byte(name)
		}
	}
}

// Store persists records in bbolt.
type Store struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

type storedMeta struct {
	state.Meta
	Order []string `json:"order,omitempty"`
}

func New(db *bolt.DB, options ...Option) *Store {
	s := &Store{db: db, bucket: []byte(DefaultBucket), now: time.Now}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// NewProvider returns a StoreProvider named "bolt" over db.
func NewProvider(db *bolt.DB, options ...state.ProviderOption) *state.StoreProvider {
	options = append([]state.ProviderOption{state.WithProviderName("bolt")}, options...)
	return state.NewStoreProvider(New(db), options...)
}

func (s *Store) Load(_ context.Context, ref state.Ref) (state.Record, bool, error) {
	id, err := ref.Identifier()
	if err != nil {
		return state.Record{}, false, err
	}
	var (
		record state.Record
		found  bool
	)
	err = s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(s.bucket)
		if root == nil {
			return nil
		}
		setBucket := root.Bucket([]byte(id))
		if setBucket == nil {
			return nil
		}
		found = true
		meta, err := decodeMeta(setBucket.Get([]byte(metaKey)))
		if err != nil {
			return err
		}
		record.Meta = meta.Meta
		record.Order = meta.Order
		record.Values = map[string]string{}
		if values := setBucket.Bucket([]byte(valuesBucket)); values != nil {
			return values.ForEach(func(k, v []byte) error {
				record.Values[string(k)] = string(v)
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return state.Record{}, false, fmt.Errorf("boltstore: load %q: %w", id, err)
	}
	return record, found, nil
}

func (s *Store) Save(_ context.Context, ref state.Ref, record state.Record) (state.Meta, error) {
	id, err := ref.Identifier()
	if err != nil {
		return state.Meta{}, err
	}
	var saved state.Meta
	err = s.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		var current state.Meta
		existing := root.Bucket([]byte(id))
		if existing != nil {
			stored, err := decodeMeta(existing.Get([]byte(metaKey)))
			if err != nil {
				return err
			}
			current = stored.Meta
		}
		if err := state.CheckETag(record.Meta.ETag, current, existing != nil); err != nil {
			return err
		}
		if existing != nil {
			if err := root.DeleteBucket([]byte(id)); err != nil {
				return err
			}
		}

		setBucket, err := root.CreateBucket([]byte(id))
		if err != nil {
			return err
		}
		values, err := setBucket.CreateBucket([]byte(valuesBucket))
		if err != nil {
			return err
		}
		for key, value := range record.Values {
			if err := values.Put([]byte(key), []byte(value)); err != nil {
				return err
			}
		}
		saved = state.NextMeta(record.Meta, record.Values, s.now())
		raw, err := json.Marshal(storedMeta{Meta: saved, Order: record.Order})
		if err != nil {
			return err
		}
		return setBucket.Put([]byte(metaKey), raw)
	})
	if err != nil {
		return state.Meta{}, fmt.Errorf("boltstore: save %q: %w", id, err)
	}
	return saved, nil
}

func decodeMeta(raw []byte) (storedMeta, error) {
	var meta storedMeta
	if len(raw) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return storedMeta{}, fmt.Errorf("decode meta: %w", err)
	}
	return meta, nil
}
