package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	opts "github.com/goliatone/go-optset"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// Ref identifies the persisted record of one option set.
type Ref struct {
	Namespace string
	Set       string
}

// Identifier renders the canonical storage key `<namespace>/<set>`, or the
// set name alone when no namespace is configured.
func (r Ref) Identifier() (string, error) {
	if r.Set == "" {
		return "", fmt.Errorf("state: set name is required")
	}
	if err := opts.ValidateKey(r.Set); err != nil {
		return "", fmt.Errorf("state: set name: %w", err)
	}
	if r.Namespace == "" {
		return r.Set, nil
	}
	if strings.HasSuffix(r.Namespace, "/") {
		return "", fmt.Errorf("state: namespace %q must not end with a separator", r.Namespace)
	}
	return r.Namespace + "/" + r.Set, nil
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Record is the persisted text of one set. Values holds the saved entries
// keyed by option key; Order keeps the save order.
type Record struct {
	Values map[string]string
	Order  []string
	Meta   Meta
}

// Store loads and saves one record per Ref. Save compares record.Meta.ETag,
// when non-empty, with the stored ETag and fails with ErrETagMismatch on a
// difference. It returns the metadata of the new snapshot.
type Store interface {
	Load(ctx context.Context, ref Ref) (record Record, ok bool, err error)
	Save(ctx context.Context, ref Ref, record Record) (Meta, error)
}

// RecordFromEntries builds a record from CollectEntries output.
func RecordFromEntries(entries []opts.Entry) Record {
	record := Record{
		Values: make(map[string]string, len(entries)),
		Order:  make([]string, 0, len(entries)),
	}
	for _, entry := range entries {
		if _, exists := record.Values[entry.Key]; !exists {
			record.Order = append(record.Order, entry.Key)
		}
		record.Values[entry.Key] = entry.Value
	}
	return record
}

// Entries returns the record in save order. Keys missing from Order follow
// in lexical order.
func (r Record) Entries() []opts.Entry {
	seen := make(map[string]struct{}, len(r.Order))
	out := make([]opts.Entry, 0, len(r.Values))
	for _, key := range r.Order {
		value, ok := r.Values[key]
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, opts.Entry{Key: key, Value: value})
	}
	var rest []string
	for key := range r.Values {
		if _, ok := seen[key]; !ok {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		out = append(out, opts.Entry{Key: key, Value: r.Values[key]})
	}
	return out
}

// ETag fingerprints record values independent of order.
func ETag(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	hash := sha256.New()
	for _, key := range keys {
		hash.Write([]byte(key))
		hash.Write([]byte{0})
		hash.Write([]byte(values[key]))
		hash.Write([]byte{0})
	}
	return hex.EncodeToString(hash.Sum(nil))[:16]
}

// CheckETag reports ErrETagMismatch when expected is set and differs from
// the stored tag.
func CheckETag(expected string, stored Meta, exists bool) error {
	if expected == "" {
		return nil
	}
	if !exists || stored.ETag != expected {
		return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected, stored.ETag)
	}
	return nil
}

// NextMeta stamps a fresh snapshot for values. Extra entries of meta are kept.
func NextMeta(meta Meta, values map[string]string, now time.Time) Meta {
	return Meta{
		SnapshotID: uuid.NewString(),
		ETag:       ETag(values),
		UpdatedAt:  now,
		Extra:      cloneExtra(meta.Extra),
	}
}

func cloneMeta(meta Meta) Meta {
	out := meta
	out.Extra = cloneExtra(meta.Extra)
	return out
}

func cloneExtra(extra map[string]string) map[string]string {
	if extra == nil {
		return nil
	}
	out := make(map[string]string, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func cloneRecord(record Record) Record {
	out := Record{
		Values: make(map[string]string, len(record.Values)),
		Order:  append([]string(nil), record.Order...),
		Meta:   cloneMeta(record.Meta),
	}
	for k, v := range record.Values {
		out.Values[k] = v
	}
	return out
}
