// Package blob fetches and publishes content-addressed JSON
// documents (job documents, result documents) through the blob
// gateway, memoizing reads since a CID's content never changes.
package blob

import (
	"context"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/meridian-network/node/pkg/cid"
	"github.com/meridian-network/node/pkg/errkind"
	"github.com/meridian-network/node/pkg/metrics"
)

// Gateway is the injected transport to the blob store. The node never
// talks to the gateway's wire protocol directly; it only depends on
// this interface, so tests can substitute a fake.
type Gateway interface {
	Get(ctx context.Context, cidStr string) ([]byte, error)
	Put(ctx context.Context, data []byte) (cidStr string, err error)
}

// Client is the Blob Client component from the spec: a cid.Encode/
// Decode-aware JSON layer over a Gateway, with an LRU cache for
// immutable reads.
type Client struct {
	gateway Gateway
	cache   *lru.Cache[string, []byte]
}

// New builds a Client. capacity bounds the number of distinct CIDs
// kept in memory; spec's Data Model puts no ceiling on a job's
// lifetime blob traffic, so this cache trades memory for avoiding
// repeat gateway round trips on the same content.
func New(gateway Gateway, capacity int) (*Client, error) {
	cache, err := lru.New[string, []byte](capacity)
	if err != nil {
		return nil, fmt.Errorf("blob: new cache: %w", err)
	}
	return &Client{gateway: gateway, cache: cache}, nil
}

// GetJSON fetches and decodes the document at cidStr into v. Content
// addressing means the same cidStr always yields the same bytes, so
// a cache hit skips the gateway entirely.
func (c *Client) GetJSON(ctx context.Context, cidStr string, v any) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.BlobRequestDuration, "get")

	if cached, ok := c.cache.Get(cidStr); ok {
		metrics.BlobCacheHits.Inc()
		return json.Unmarshal(cached, v)
	}

	data, err := c.gateway.Get(ctx, cidStr)
	if err != nil {
		return errkind.New(errkind.BlobTransient, fmt.Errorf("blob: get %s: %w", cidStr, err))
	}

	if err := json.Unmarshal(data, v); err != nil {
		return errkind.New(errkind.Decode, fmt.Errorf("blob: decode %s: %w", cidStr, err))
	}

	c.cache.Add(cidStr, data)
	return nil
}

// PutJSON marshals v and uploads it, returning the CID the gateway
// assigned. The upload is also seeded into the cache since a
// subsequent read of the same CID is certain to match.
func (c *Client) PutJSON(ctx context.Context, v any) (string, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.BlobRequestDuration, "put")

	data, err := json.Marshal(v)
	if err != nil {
		return "", errkind.New(errkind.Decode, fmt.Errorf("blob: encode: %w", err))
	}

	cidStr, err := c.gateway.Put(ctx, data)
	if err != nil {
		return "", errkind.New(errkind.BlobTransient, fmt.Errorf("blob: put: %w", err))
	}

	c.cache.Add(cidStr, data)
	return cidStr, nil
}

// DigestFromCID is a convenience wrapper so callers working with the
// on-chain [32]byte job digest can reach the gateway without manually
// importing pkg/cid.
func DigestFromCID(cidStr string) ([32]byte, error) {
	return cid.Decode(cidStr)
}
