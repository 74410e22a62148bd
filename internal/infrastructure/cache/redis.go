package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Open parses a redis:// URL and returns a client. An empty URL returns nil, nil.
func Open(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

const listingKeyPrefix = "listing:"

// ListingCache stores rendered listing payloads keyed by the identifier they
// were requested with. Listings are immutable, so entries only expire.
type ListingCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// Get decodes a cached entry into dst. A miss returns false with a nil error.
func (c *ListingCache) Get(ctx context.Context, id string, dst interface{}) (bool, error) {
	data, err := c.Client.Get(ctx, listingKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *ListingCache) Set(ctx context.Context, id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, listingKeyPrefix+id, data, c.TTL).Err()
}
