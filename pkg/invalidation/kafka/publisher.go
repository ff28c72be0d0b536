package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/elevation-index/internal/core/observability"
	"github.com/mohammed-shakir/elevation-index/internal/invalidation"
)

// Publisher announces index changes on the invalidation topic.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *slog.Logger
}

func NewPublisher(cfg InvalidationConfig, log *slog.Logger) (*Publisher, error) {
	sc, err := cfg.sarama()
	if err != nil {
		return nil, err
	}
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 3

	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("sync producer: %w", err)
	}
	return NewPublisherWithProducer(p, cfg.Topic, log), nil
}

func NewPublisherWithProducer(p sarama.SyncProducer, topic string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{producer: p, topic: topic, log: log.With("component", "invalidation")}
}

// Publish validates ev and sends it keyed by op, so events of one kind stay
// ordered on one partition.
func (p *Publisher) Publish(ctx context.Context, ev invalidation.Event) error {
	err := p.publish(ev)
	observability.IncInvalidation("published", ev.Op, err)
	if err != nil {
		return err
	}
	p.log.InfoContext(ctx, "invalidation published", "op", ev.Op, "generation", ev.Generation, "topic", p.topic)
	return nil
}

func (p *Publisher) publish(ev invalidation.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.Op),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
