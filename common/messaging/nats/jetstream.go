package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/crnapay/crnapay-stack/common/messaging"
)

// JetStreamClient extends Client with JetStream persistence.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

// StreamConfig defines a JetStream stream.
type StreamConfig struct {
	Name       string
	Subjects   []string
	MaxAge     time.Duration
	MaxBytes   int64
	MaxMsgs    int64
	Retention  jetstream.RetentionPolicy
	Storage    jetstream.StorageType
	Duplicates time.Duration
}

// ConsumerConfig defines a durable JetStream consumer.
type ConsumerConfig struct {
	Name          string        `mapstructure:"name"`
	FilterSubject string        `mapstructure:"filter_subject"`
	AckWait       time.Duration `mapstructure:"ack_wait"`
	MaxDeliver    int           `mapstructure:"max_deliver"`
	MaxAckPending int           `mapstructure:"max_ack_pending"`
	// NakDelay postpones redelivery after a handler error.
	NakDelay time.Duration `mapstructure:"nak_delay"`
}

// DefaultConsumerConfig returns sensible defaults for a consumer.
func DefaultConsumerConfig(name, filterSubject string) ConsumerConfig {
	return ConsumerConfig{
		Name:          name,
		FilterSubject: filterSubject,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		MaxAckPending: 100,
		NakDelay:      5 * time.Second,
	}
}

// Streams used by crnapay.
var (
	// SubmissionsStream is the work queue between ingest and core. The
	// duplicate window drops re-publishes of the same submission ID by ingest.
	SubmissionsStream = StreamConfig{
		Name:       "SUBMISSIONS",
		Subjects:   []string{messaging.SubjectSubmissionsReceived},
		MaxAge:     7 * 24 * time.Hour,
		MaxBytes:   1024 * 1024 * 1024,
		MaxMsgs:    1_000_000,
		Retention:  jetstream.WorkQueuePolicy,
		Storage:    jetstream.FileStorage,
		Duplicates: 2 * time.Minute,
	}

	// SubmissionsDLQStream keeps rejected and undeliverable submissions for
	// audit and replay.
	SubmissionsDLQStream = StreamConfig{
		Name:      "SUBMISSIONS_DLQ",
		Subjects:  []string{messaging.DLQWildcard},
		MaxAge:    30 * 24 * time.Hour,
		MaxBytes:  512 * 1024 * 1024,
		MaxMsgs:   500_000,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	}

	// BudgetAlertsStream buffers billing notifications for the budget monitor.
	BudgetAlertsStream = StreamConfig{
		Name:      "BUDGET_ALERTS",
		Subjects:  []string{messaging.SubjectBudgetAlerts},
		MaxAge:    7 * 24 * time.Hour,
		MaxBytes:  64 * 1024 * 1024,
		MaxMsgs:   100_000,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	}
)

// NewJetStreamClient creates a JetStream-enabled client.
func NewJetStreamClient(cfg Config, logger *slog.Logger) (*JetStreamClient, error) {
	client, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{Client: client, js: js}, nil
}

// CreateOrUpdateStream creates or updates a stream.
func (c *JetStreamClient) CreateOrUpdateStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.Name,
		Subjects:   cfg.Subjects,
		MaxAge:     cfg.MaxAge,
		MaxBytes:   cfg.MaxBytes,
		MaxMsgs:    cfg.MaxMsgs,
		Retention:  cfg.Retention,
		Storage:    cfg.Storage,
		Duplicates: cfg.Duplicates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}
	return stream, nil
}

// Stream looks up an existing stream.
func (c *JetStreamClient) Stream(ctx context.Context, name string) (jetstream.Stream, error) {
	stream, err := c.js.Stream(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", name, err)
	}
	return stream, nil
}

// CreateOrUpdateConsumer creates or updates a durable consumer.
func (c *JetStreamClient) CreateOrUpdateConsumer(ctx context.Context, streamName string, cfg ConsumerConfig) (jetstream.Consumer, error) {
	stream, err := c.Stream(ctx, streamName)
	if err != nil {
		return nil, err
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          cfg.Name,
		Durable:       cfg.Name,
		FilterSubject: cfg.FilterSubject,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update consumer %s: %w", cfg.Name, err)
	}
	return consumer, nil
}

// Publish stores data on the stream bound to subject and waits for the ack.
// It shadows Client.Publish so JetStream clients never fire and forget.
func (c *JetStreamClient) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("jetstream publish %s: %w", subject, err)
	}
	return nil
}

// PublishMsg stores msg and waits for the ack. A HeaderSubmissionID header
// doubles as the JetStream message ID for publish de-duplication.
func (c *JetStreamClient) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	var opts []jetstream.PublishOpt
	if id := msg.Header(messaging.HeaderSubmissionID); id != "" {
		opts = append(opts, jetstream.WithMsgID(id))
	}
	if _, err := c.js.PublishMsg(ctx, toNATS(msg), opts...); err != nil {
		return fmt.Errorf("jetstream publish %s: %w", msg.Subject, err)
	}
	return nil
}

// ConsumeMessages runs handler for every message on a durable consumer.
// Handler success acks, a Terminal error terminates the message, and any other
// error naks it with cfg.NakDelay. The returned function stops consumption.
func (c *JetStreamClient) ConsumeMessages(ctx context.Context, streamName string, cfg ConsumerConfig, handler messaging.MessageHandler) (func(), error) {
	consumer, err := c.CreateOrUpdateConsumer(ctx, streamName, cfg)
	if err != nil {
		return nil, err
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	logger := c.logger.With(slog.String("consumer", cfg.Name))

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		m := &messaging.Message{
			Subject:   msg.Subject(),
			Data:      msg.Data(),
			Metadata:  headersToMetadata(msg.Headers()),
			Timestamp: time.Now().UTC(),
		}
		if meta, err := msg.Metadata(); err == nil {
			m.Timestamp = meta.Timestamp
			m.Attempt = meta.NumDelivered
		}

		err := handler(consumeCtx, m)
		switch {
		case err == nil:
			if ackErr := msg.Ack(); ackErr != nil {
				logger.Warn("ack failed", slog.String("error", ackErr.Error()))
			}
		case messaging.IsTerminal(err):
			logger.Error("message terminated", slog.String("subject", m.Subject), slog.String("error", err.Error()))
			_ = msg.Term()
		case errors.Is(err, context.Canceled):
			_ = msg.Nak()
		default:
			logger.Warn("message will be redelivered",
				slog.String("subject", m.Subject),
				slog.Uint64("attempt", m.Attempt),
				slog.String("error", err.Error()))
			_ = msg.NakWithDelay(cfg.NakDelay)
		}
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	return func() {
		cancel()
		cons.Stop()
	}, nil
}

// StreamStats summarizes a stream's stored messages.
type StreamStats struct {
	Messages  uint64    `json:"messages" yaml:"messages"`
	Bytes     uint64    `json:"bytes" yaml:"bytes"`
	FirstSeq  uint64    `json:"first_seq" yaml:"first_seq"`
	LastSeq   uint64    `json:"last_seq" yaml:"last_seq"`
	FirstTime time.Time `json:"first_time" yaml:"first_time"`
	LastTime  time.Time `json:"last_time" yaml:"last_time"`
}

// StreamStats returns the current state of a stream.
func (c *JetStreamClient) StreamStats(ctx context.Context, streamName string) (StreamStats, error) {
	stream, err := c.Stream(ctx, streamName)
	if err != nil {
		return StreamStats{}, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return StreamStats{}, fmt.Errorf("failed to get stream info %s: %w", streamName, err)
	}
	return StreamStats{
		Messages:  info.State.Msgs,
		Bytes:     info.State.Bytes,
		FirstSeq:  info.State.FirstSeq,
		LastSeq:   info.State.LastSeq,
		FirstTime: info.State.FirstTime,
		LastTime:  info.State.LastTime,
	}, nil
}

// ReadStream returns up to limit stored messages, oldest first, without
// consuming them. A limit of zero or less reads everything.
func (c *JetStreamClient) ReadStream(ctx context.Context, streamName string, limit int) ([]*messaging.Message, error) {
	stream, err := c.Stream(ctx, streamName)
	if err != nil {
		return nil, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream info %s: %w", streamName, err)
	}

	var out []*messaging.Message
	for seq := info.State.FirstSeq; seq <= info.State.LastSeq && info.State.Msgs > 0; seq++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		raw, err := stream.GetMsg(ctx, seq)
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("failed to read %s seq %d: %w", streamName, seq, err)
		}
		out = append(out, &messaging.Message{
			Subject:   raw.Subject,
			Data:      raw.Data,
			Metadata:  headersToMetadata(raw.Header),
			Timestamp: raw.Time,
			Sequence:  raw.Sequence,
		})
	}
	return out, nil
}

// PurgeStream removes stored messages, limited to subject when it is set.
func (c *JetStreamClient) PurgeStream(ctx context.Context, streamName, subject string) error {
	stream, err := c.Stream(ctx, streamName)
	if err != nil {
		return err
	}
	var opts []jetstream.StreamPurgeOpt
	if subject != "" {
		opts = append(opts, jetstream.WithPurgeSubject(subject))
	}
	if err := stream.Purge(ctx, opts...); err != nil {
		return fmt.Errorf("failed to purge stream %s: %w", streamName, err)
	}
	return nil
}
