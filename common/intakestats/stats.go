// Package intakestats provides Redis-backed submission intake statistics.
//
// Several ingest instances write concurrently; any service or crnactl can read.
//
// Redis key structure, per data source:
//
//	intake:stats:{source}                - hash: accepted, rejected, last_received_at, last_ip
//	intake:hourly:{source}:{YYYYMMDDHH}  - hash: accepted, rejected (expires 48h)
//	intake:ips:{source}:{YYYYMMDD}       - set of client IPs for the day (expires 7d)
//	intake:instances:{source}            - hash: ingest instance -> last seen unix time
package intakestats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldAccepted       = "accepted"
	fieldRejected       = "rejected"
	fieldLastReceivedAt = "last_received_at"
	fieldLastIP         = "last_ip"

	statsKeyPrefix = "intake:stats:"
)

// Stats summarizes intake for one data source.
type Stats struct {
	Source           string            `json:"source" yaml:"source"`
	LastReceivedAt   *time.Time        `json:"last_received_at,omitempty" yaml:"last_received_at,omitempty"`
	LastIP           string            `json:"last_ip,omitempty" yaml:"last_ip,omitempty"`
	Accepted         int64             `json:"accepted" yaml:"accepted"`
	Rejected         int64             `json:"rejected" yaml:"rejected"`
	AcceptedLast24h  int64             `json:"accepted_last_24h" yaml:"accepted_last_24h"`
	RejectedLast24h  int64             `json:"rejected_last_24h" yaml:"rejected_last_24h"`
	UniqueIPsToday   int64             `json:"unique_ips_today" yaml:"unique_ips_today"`
	IngestInstances  map[string]string `json:"ingest_instances,omitempty" yaml:"ingest_instances,omitempty"`
	StatsRetrievedAt time.Time         `json:"stats_retrieved_at" yaml:"stats_retrieved_at"`
}

// Client records and reads intake statistics.
type Client struct {
	redis      *redis.Client
	instanceID string
}

// NewClient wraps an existing Redis connection. instanceID should be unique
// per ingest instance (hostname or pod name).
func NewClient(client *redis.Client, instanceID string) *Client {
	return &Client{redis: client, instanceID: instanceID}
}

// BatchUpdate holds accumulated counts for one source.
type BatchUpdate struct {
	Source    string
	Accepted  int64
	Rejected  int64
	ClientIPs map[string]struct{}
	LastIP    string
}

// NewBatchUpdate creates an empty accumulator for source.
func NewBatchUpdate(source string) *BatchUpdate {
	return &BatchUpdate{Source: source, ClientIPs: make(map[string]struct{})}
}

// Add counts one submission.
func (b *BatchUpdate) Add(accepted bool, clientIP string) {
	if accepted {
		b.Accepted++
	} else {
		b.Rejected++
	}
	if clientIP != "" {
		b.ClientIPs[clientIP] = struct{}{}
		b.LastIP = clientIP
	}
}

func (b *BatchUpdate) merge(other *BatchUpdate) {
	b.Accepted += other.Accepted
	b.Rejected += other.Rejected
	for ip := range other.ClientIPs {
		b.ClientIPs[ip] = struct{}{}
	}
	if other.LastIP != "" {
		b.LastIP = other.LastIP
	}
}

func (b *BatchUpdate) empty() bool {
	return b.Accepted == 0 && b.Rejected == 0
}

// Flush writes a batch in one pipeline.
func (c *Client) Flush(ctx context.Context, batch *BatchUpdate) error {
	if batch.empty() {
		return nil
	}

	now := time.Now().UTC()
	nowUnix := strconv.FormatInt(now.Unix(), 10)
	dayKey := now.Format("20060102")

	pipe := c.redis.Pipeline()

	statsKey := statsKeyPrefix + batch.Source
	pipe.HSet(ctx, statsKey, fieldLastReceivedAt, nowUnix)
	if batch.LastIP != "" {
		pipe.HSet(ctx, statsKey, fieldLastIP, batch.LastIP)
	}
	pipe.HIncrBy(ctx, statsKey, fieldAccepted, batch.Accepted)
	pipe.HIncrBy(ctx, statsKey, fieldRejected, batch.Rejected)

	hourlyKey := hourlyKey(batch.Source, now)
	pipe.HIncrBy(ctx, hourlyKey, fieldAccepted, batch.Accepted)
	pipe.HIncrBy(ctx, hourlyKey, fieldRejected, batch.Rejected)
	pipe.Expire(ctx, hourlyKey, 48*time.Hour)

	if len(batch.ClientIPs) > 0 {
		ipsKey := fmt.Sprintf("intake:ips:%s:%s", batch.Source, dayKey)
		ips := make([]any, 0, len(batch.ClientIPs))
		for ip := range batch.ClientIPs {
			ips = append(ips, ip)
		}
		pipe.SAdd(ctx, ipsKey, ips...)
		pipe.Expire(ctx, ipsKey, 7*24*time.Hour)
	}

	instancesKey := "intake:instances:" + batch.Source
	pipe.HSet(ctx, instancesKey, c.instanceID, nowUnix)
	pipe.Expire(ctx, instancesKey, 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to flush intake stats: %w", err)
	}
	return nil
}

// GetStats reads the current statistics for source.
func (c *Client) GetStats(ctx context.Context, source string) (*Stats, error) {
	now := time.Now().UTC()

	pipe := c.redis.Pipeline()
	statsCmd := pipe.HGetAll(ctx, statsKeyPrefix+source)

	hourly := make([]*redis.MapStringStringCmd, 24)
	for i := range hourly {
		hourly[i] = pipe.HGetAll(ctx, hourlyKey(source, now.Add(-time.Duration(i)*time.Hour)))
	}

	ipsCmd := pipe.SCard(ctx, fmt.Sprintf("intake:ips:%s:%s", source, now.Format("20060102")))
	instancesCmd := pipe.HGetAll(ctx, "intake:instances:"+source)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get intake stats: %w", err)
	}

	stats := &Stats{
		Source:           source,
		StatsRetrievedAt: now,
		IngestInstances:  make(map[string]string),
	}

	if m, err := statsCmd.Result(); err == nil {
		if unix, err := strconv.ParseInt(m[fieldLastReceivedAt], 10, 64); err == nil {
			t := time.Unix(unix, 0).UTC()
			stats.LastReceivedAt = &t
		}
		stats.LastIP = m[fieldLastIP]
		stats.Accepted, _ = strconv.ParseInt(m[fieldAccepted], 10, 64)
		stats.Rejected, _ = strconv.ParseInt(m[fieldRejected], 10, 64)
	}

	for _, cmd := range hourly {
		m, err := cmd.Result()
		if err != nil {
			continue
		}
		accepted, _ := strconv.ParseInt(m[fieldAccepted], 10, 64)
		rejected, _ := strconv.ParseInt(m[fieldRejected], 10, 64)
		stats.AcceptedLast24h += accepted
		stats.RejectedLast24h += rejected
	}

	if n, err := ipsCmd.Result(); err == nil {
		stats.UniqueIPsToday = n
	}

	if instances, err := instancesCmd.Result(); err == nil {
		for instance, lastSeen := range instances {
			if unix, err := strconv.ParseInt(lastSeen, 10, 64); err == nil {
				stats.IngestInstances[instance] = time.Unix(unix, 0).UTC().Format(time.RFC3339)
			}
		}
	}

	return stats, nil
}

// ListSources returns every source with recorded intake.
func (c *Client) ListSources(ctx context.Context) ([]string, error) {
	var sources []string
	iter := c.redis.Scan(ctx, 0, statsKeyPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		sources = append(sources, strings.TrimPrefix(iter.Val(), statsKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan intake sources: %w", err)
	}
	return sources, nil
}

func hourlyKey(source string, t time.Time) string {
	return fmt.Sprintf("intake:hourly:%s:%s", source, t.Format("2006010215"))
}
