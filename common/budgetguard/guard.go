// Package budgetguard stores service pauses requested by the budget monitor.
//
// A pause is a Redis key per target holding a JSON Pause record. Keys never
// expire; they are removed by Resume or by the monthly ResumeAll job.
package budgetguard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces pause keys.
const DefaultKeyPrefix = "budget:pause:"

// Target names a pausable service.
type Target string

const (
	TargetIngest Target = "ingest"
	TargetCore   Target = "core"
)

// Targets lists every pausable service in status order.
var Targets = []Target{TargetIngest, TargetCore}

// ErrPaused is returned by Check when the target is paused.
var ErrPaused = errors.New("paused by budget guard")

// ErrUnknownTarget is returned for targets outside Targets.
var ErrUnknownTarget = errors.New("unknown budget guard target")

// ParseTarget validates a target name.
func ParseTarget(s string) (Target, error) {
	for _, t := range Targets {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTarget, s)
}

// Pause records why and when a target was paused.
type Pause struct {
	Target    Target    `json:"target" yaml:"target"`
	Reason    string    `json:"reason" yaml:"reason"`
	Budget    string    `json:"budget,omitempty" yaml:"budget,omitempty"`
	CostRatio float64   `json:"cost_ratio" yaml:"cost_ratio"`
	PausedAt  time.Time `json:"paused_at" yaml:"paused_at"`
}

// State is the pause state of one target.
type State struct {
	Target Target `json:"target" yaml:"target"`
	Paused bool   `json:"paused" yaml:"paused"`
	Pause  *Pause `json:"pause,omitempty" yaml:"pause,omitempty"`
}

// Guard reads and writes pause keys.
type Guard struct {
	redis  *redis.Client
	prefix string
}

// New returns a Guard using prefix, or DefaultKeyPrefix when prefix is empty.
func New(client *redis.Client, prefix string) *Guard {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Guard{redis: client, prefix: prefix}
}

func (g *Guard) key(t Target) string {
	return g.prefix + string(t)
}

// Pause marks p.Target as paused. An existing pause is overwritten so the
// latest reason wins.
func (g *Guard) Pause(ctx context.Context, p Pause) error {
	if _, err := ParseTarget(string(p.Target)); err != nil {
		return err
	}
	if p.PausedAt.IsZero() {
		p.PausedAt = time.Now().UTC()
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pause: %w", err)
	}
	if err := g.redis.Set(ctx, g.key(p.Target), data, 0).Err(); err != nil {
		return fmt.Errorf("pause %s: %w", p.Target, err)
	}
	return nil
}

// Resume clears a pause. It reports whether the target was paused.
func (g *Guard) Resume(ctx context.Context, t Target) (bool, error) {
	if _, err := ParseTarget(string(t)); err != nil {
		return false, err
	}
	n, err := g.redis.Del(ctx, g.key(t)).Result()
	if err != nil {
		return false, fmt.Errorf("resume %s: %w", t, err)
	}
	return n > 0, nil
}

// ResumeAll clears every pause and returns how many were cleared.
func (g *Guard) ResumeAll(ctx context.Context) (int, error) {
	keys := make([]string, len(Targets))
	for i, t := range Targets {
		keys[i] = g.key(t)
	}
	n, err := g.redis.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("resume all: %w", err)
	}
	return int(n), nil
}

// IsPaused reports whether t is paused.
func (g *Guard) IsPaused(ctx context.Context, t Target) (bool, error) {
	n, err := g.redis.Exists(ctx, g.key(t)).Result()
	if err != nil {
		return false, fmt.Errorf("check pause %s: %w", t, err)
	}
	return n > 0, nil
}

// Check returns ErrPaused when t is paused, nil when it is not, or the
// backend error when the state cannot be read.
func (g *Guard) Check(ctx context.Context, t Target) error {
	paused, err := g.IsPaused(ctx, t)
	if err != nil {
		return err
	}
	if paused {
		return fmt.Errorf("%s: %w", t, ErrPaused)
	}
	return nil
}

// Status returns the state of every target.
func (g *Guard) Status(ctx context.Context) ([]State, error) {
	pipe := g.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(Targets))
	for i, t := range Targets {
		cmds[i] = pipe.Get(ctx, g.key(t))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("budget guard status: %w", err)
	}

	states := make([]State, len(Targets))
	for i, t := range Targets {
		states[i] = State{Target: t}
		data, err := cmds[i].Bytes()
		if err != nil {
			continue
		}
		states[i].Paused = true
		var p Pause
		if err := json.Unmarshal(data, &p); err == nil {
			states[i].Pause = &p
		}
	}
	return states, nil
}
