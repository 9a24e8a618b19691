package publisher

import (
	"context"
	"time"

	"github.com/fjod/storefront-checkout/internal/logging"
	r "github.com/fjod/storefront-checkout/internal/repository"
	"github.com/segmentio/kafka-go"
)

const (
	Topic     = "checkout-orchestrator-events"
	batchSize = 100
)

// messageWriter is the part of *kafka.Writer the poller uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller relays archived-session events from the outbox table to Kafka.
type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	repo      r.Outbox
	writer    messageWriter
}

func NewOutboxPoller(repo r.Outbox, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: time.Second,
		repo:      repo,
		writer:    w,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		logging.Log(logging.Fields{Step: "outbox_fetch", Status: "error", Error: err.Error()})
		return
	}

	for _, event := range events {
		if errPublish := p.publishToKafka(ctx, event); errPublish != nil {
			logging.Log(logging.Fields{SessionID: event.AggregateId, Step: "outbox_publish", Status: "error", Error: errPublish.Error()})
			continue
		}

		if errMark := p.repo.MarkEventAsProcessed(ctx, event.ID); errMark != nil {
			logging.Log(logging.Fields{SessionID: event.AggregateId, Step: "outbox_mark", Status: "error", Error: errMark.Error()})
			continue
		}
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *r.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateId), // session id keeps events of one checkout ordered
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, msg)
}
