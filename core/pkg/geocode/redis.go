package geocode

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis key structure:
//
//	geo:us:{zip} - Hash with state_code, place_name, county_name
const DefaultKeyPrefix = "geo:us:"

const (
	hashState  = "state_code"
	hashPlace  = "place_name"
	hashCounty = "county_name"

	loadBatchSize = 1000
)

// RedisIndex serves lookups from a Redis hash per postal code, shared by every
// processor instance. It is populated once with Load.
type RedisIndex struct {
	redis  *redis.Client
	prefix string
}

// NewRedisIndex wraps an existing Redis connection. An empty prefix selects
// DefaultKeyPrefix.
func NewRedisIndex(client *redis.Client, prefix string) *RedisIndex {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisIndex{redis: client, prefix: prefix}
}

func (r *RedisIndex) key(zip string) string {
	return r.prefix + NormalizePostalCode(zip)
}

// Lookup implements Geocoder.
func (r *RedisIndex) Lookup(ctx context.Context, postalCode string) (Place, error) {
	fields, err := r.redis.HGetAll(ctx, r.key(postalCode)).Result()
	if err != nil {
		return Place{}, fmt.Errorf("failed to read geocode index: %w", err)
	}
	if len(fields) == 0 {
		return Place{}, ErrNotFound
	}
	return Place{
		StateCode:  fields[hashState],
		PlaceName:  fields[hashPlace],
		CountyName: fields[hashCounty],
	}, nil
}

// Load writes every entry of the table into Redis in pipelined batches and
// returns the number of postal codes written.
func (r *RedisIndex) Load(ctx context.Context, table *Table) (int, error) {
	pipe := r.redis.Pipeline()
	pending := 0
	written := 0

	flush := func() error {
		if pending == 0 {
			return nil
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to write geocode batch: %w", err)
		}
		written += pending
		pending = 0
		return nil
	}

	err := table.Each(func(zip string, place Place) error {
		pipe.HSet(ctx, r.key(zip), map[string]interface{}{
			hashState:  place.StateCode,
			hashPlace:  place.PlaceName,
			hashCounty: place.CountyName,
		})
		pending++
		if pending >= loadBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return written, err
	}
	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}

// Ping checks connectivity to the index.
func (r *RedisIndex) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx).Err()
}
