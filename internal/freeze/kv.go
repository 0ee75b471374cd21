package freeze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the key-value bucket holding the freeze state.
const DefaultBucket = "SDM_FREEZE"

const stateKey = "state"

// KV is the subset of jetstream.KeyValue the store needs.
type KV interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
}

// KVStore keeps the freeze state in a NATS JetStream key-value bucket, shared
// by every machine connected to the same cluster.
type KVStore struct {
	bucket KV
}

// NewKVStore wraps an existing bucket.
func NewKVStore(bucket KV) *KVStore {
	return &KVStore{bucket: bucket}
}

// OpenKVStore creates (or reuses) the bucket on js.
func OpenKVStore(ctx context.Context, js jetstream.JetStream, bucket string) (*KVStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	// CreateOrUpdateKeyValue is idempotent.
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Deployment freeze state",
		History:     5,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update kv bucket: %w", err)
	}
	return NewKVStore(kv), nil
}

// State implements Store. A missing key means not frozen.
func (k *KVStore) State(ctx context.Context) (State, error) {
	entry, err := k.bucket.Get(ctx, stateKey)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("get freeze state: %w", err)
	}
	var s State
	if err := json.Unmarshal(entry.Value(), &s); err != nil {
		return State{}, fmt.Errorf("unmarshal freeze state: %w", err)
	}
	return s, nil
}

// Set implements Store.
func (k *KVStore) Set(ctx context.Context, s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal freeze state: %w", err)
	}
	if _, err := k.bucket.Put(ctx, stateKey, data); err != nil {
		return fmt.Errorf("put freeze state: %w", err)
	}
	return nil
}
