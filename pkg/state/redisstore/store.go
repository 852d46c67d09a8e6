// Package redisstore implements state.Store on Redis.
//
// A set is kept in two hashes: `<prefix><id>` maps option keys to texts and
// `<prefix><id>:meta` holds the snapshot metadata. The meta hash marks the
// record as existing, since Redis drops empty hashes. Saves run in a
// WATCH/MULTI transaction on the meta hash.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-optset/pkg/state"
)

// DefaultPrefix is prepended to every key when no prefix is configured.
const DefaultPrefix = "optset:"

const (
	fieldSnapshot = "snapshot_id"
	fieldETag     = "etag"
	fieldUpdated  = "updated_at"
	fieldOrder    = "order"
	extraPrefix   = "extra."
)

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL expires both hashes ttl after every save.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// Store persists records in Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func New(client redis.UniversalClient, options ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix, now: time.Now}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// NewProvider returns a StoreProvider named "redis" over client.
func NewProvider(client redis.UniversalClient, storeOptions []Option, options ...state.ProviderOption) *state.StoreProvider {
	options = append([]state.ProviderOption{state.WithProviderName("redis")}, options...)
	return state.NewStoreProvider(New(client, storeOptions...), options...)
}

func (s *Store) keys(ref state.Ref) (string, string, error) {
	id, err := ref.Identifier()
	if err != nil {
		return "", "", err
	}
	valuesKey := s.prefix + id
	return valuesKey, valuesKey + ":meta", nil
}

func (s *Store) Load(ctx context.Context, ref state.Ref) (state.Record, bool, error) {
	valuesKey, metaKey, err := s.keys(ref)
	if err != nil {
		return state.Record{}, false, err
	}
	rawMeta, err := s.client.HGetAll(ctx, metaKey).Result()
	if err != nil {
		return state.Record{}, false, fmt.Errorf("redisstore: load %q: %w", metaKey, err)
	}
	if len(rawMeta) == 0 {
		return state.Record{}, false, nil
	}
	values, err := s.client.HGetAll(ctx, valuesKey).Result()
	if err != nil {
		return state.Record{}, false, fmt.Errorf("redisstore: load %q: %w", valuesKey, err)
	}
	meta, order := decodeMeta(rawMeta)
	return state.Record{Values: values, Order: order, Meta: meta}, true, nil
}

func (s *Store) Save(ctx context.Context, ref state.Ref, record state.Record) (state.Meta, error) {
	valuesKey, metaKey, err := s.keys(ref)
	if err != nil {
		return state.Meta{}, err
	}
	var saved state.Meta
	txn := func(tx *redis.Tx) error {
		rawMeta, err := tx.HGetAll(ctx, metaKey).Result()
		if err != nil {
			return err
		}
		current, _ := decodeMeta(rawMeta)
		if err := state.CheckETag(record.Meta.ETag, current, len(rawMeta) > 0); err != nil {
			return err
		}
		saved = state.NextMeta(record.Meta, record.Values, s.now())
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, valuesKey, metaKey)
			if len(record.Values) > 0 {
				fields := make(map[string]any, len(record.Values))
				for key, value := range record.Values {
					fields[key] = value
				}
				pipe.HSet(ctx, valuesKey, fields)
			}
			pipe.HSet(ctx, metaKey, encodeMeta(saved, record.Order))
			if s.ttl > 0 {
				pipe.Expire(ctx, valuesKey, s.ttl)
				pipe.Expire(ctx, metaKey, s.ttl)
			}
			return nil
		})
		return err
	}
	err = s.client.Watch(ctx, txn, metaKey)
	if errors.Is(err, redis.TxFailedErr) {
		return state.Meta{}, fmt.Errorf("%w: concurrent save of %q", state.ErrETagMismatch, valuesKey)
	}
	if err != nil {
		return state.Meta{}, fmt.Errorf("redisstore: save %q: %w", valuesKey, err)
	}
	return saved, nil
}

func encodeMeta(meta state.Meta, order []string) map[string]any {
	fields := map[string]any{
		fieldSnapshot: meta.SnapshotID,
		fieldETag:     meta.ETag,
		fieldUpdated:  meta.UpdatedAt.UTC().Format(time.RFC3339Nano),
		fieldOrder:    strings.Join(order, ","),
	}
	for key, value := range meta.Extra {
		fields[extraPrefix+key] = value
	}
	return fields
}

func decodeMeta(fields map[string]string) (state.Meta, []string) {
	meta := state.Meta{
		SnapshotID: fields[fieldSnapshot],
		ETag:       fields[fieldETag],
	}
	if updated, err := time.Parse(time.RFC3339Nano, fields[fieldUpdated]); err == nil {
		meta.UpdatedAt = updated
	}
	for key, value := range fields {
		if name, ok := strings.CutPrefix(key, extraPrefix); ok {
			if meta.Extra == nil {
				meta.Extra = map[string]string{}
			}
			meta.Extra[name] = value
		}
	}
	var order []string
	if raw := fields[fieldOrder]; raw != "" {
		order = strings.Split(raw, ",")
	}
	return meta, order
}
