//go:build js && wasm

package credentials

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/syumai/workers/cloudflare/kv"
)

const (
	// KVNamespace is the binding name configured in wrangler.toml.
	KVNamespace = "bearer_proxy_kv"
	kvKey       = "bearer_proxy_credentials"
)

// KVStore keeps credentials in Cloudflare Workers KV.
type KVStore struct {
	kvStore *kv.Namespace
}

// NewKVStore opens the KV namespace bound as KVNamespace.
func NewKVStore() (*KVStore, error) {
	kvStore, err := kv.NewNamespace(KVNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KV namespace: %w", err)
	}
	return &KVStore{kvStore: kvStore}, nil
}

func (c *KVStore) Read(_ context.Context) (*Record, error) {
	credsJSON, err := c.kvStore.GetString(kvKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials from KV: %w", err)
	}
	if credsJSON == "" {
		return nil, nil
	}

	var rec Record
	if err := json.Unmarshal([]byte(credsJSON), &rec); err != nil {
		return nil, fmt.Errorf("failed to parse credentials JSON: %w", err)
	}
	if rec.AccessToken == "" {
		return nil, nil
	}
	return &rec, nil
}

func (c *KVStore) Write(_ context.Context, rec Record) error {
	credsJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := c.kvStore.PutString(kvKey, string(credsJSON), nil); err != nil {
		return fmt.Errorf("failed to store credentials in KV: %w", err)
	}
	return nil
}

func (c *KVStore) Clear(_ context.Context) error {
	if err := c.kvStore.Delete(kvKey); err != nil {
		return fmt.Errorf("failed to delete credentials from KV: %w", err)
	}
	return nil
}
