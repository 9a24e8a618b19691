package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/storefront-checkout/domain"
	r "github.com/fjod/storefront-checkout/internal/repository"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

type MockOutbox struct {
	mu           sync.Mutex
	OutboxEvents []*r.OutboxEvent
	GetErr       error
	MarkErr      error
	ProcessedIds []int
}

func (m *MockOutbox) GetUnprocessedEvents(context.Context, int) ([]*r.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	ev := m.OutboxEvents
	m.OutboxEvents = nil
	return ev, nil
}

func (m *MockOutbox) MarkEventAsProcessed(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIds = append(m.ProcessedIds, id)
	return nil
}

func (m *MockOutbox) processed() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.ProcessedIds...)
}

type fakeWriter struct {
	messages []kafkaGo.Message
	failKey  string
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	for _, m := range msgs {
		if w.err != nil || string(m.Key) == w.failKey {
			return errors.New("broker unavailable")
		}
		w.messages = append(w.messages, m)
	}
	return nil
}

func (w *fakeWriter) Close() error {
	return nil
}

func event(id int, aggregate string) *r.OutboxEvent {
	return &r.OutboxEvent{
		ID:          id,
		AggregateId: aggregate,
		EventType:   domain.EventCheckoutCompleted,
		Payload:     json.RawMessage(fmt.Sprintf(`{"checkout_id":%q}`, aggregate)),
		CreatedAt:   time.Now(),
	}
}

func newTestPoller(repo r.Outbox, w messageWriter) *OutboxPoller {
	return &OutboxPoller{
		timeout:   time.Second,
		eventTick: 10 * time.Millisecond,
		repo:      repo,
		writer:    w,
	}
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	repo := &MockOutbox{OutboxEvents: []*r.OutboxEvent{event(1, "checkout-1"), event(2, "checkout-2")}}
	w := &fakeWriter{}

	newTestPoller(repo, w).processUnpublishedEvents(context.Background())

	require.Len(t, w.messages, 2)
	assert.Equal(t, "checkout-1", string(w.messages[0].Key))
	assert.Equal(t, "event_type", w.messages[0].Headers[0].Key)
	assert.Equal(t, domain.EventCheckoutCompleted, string(w.messages[0].Headers[0].Value))
	assert.Equal(t, []int{1, 2}, repo.processed())
}

func TestProcessUnpublishedEvents_PublishFailureLeavesEventUnprocessed(t *testing.T) {
	repo := &MockOutbox{OutboxEvents: []*r.OutboxEvent{event(1, "checkout-1"), event(2, "checkout-2")}}
	w := &fakeWriter{failKey: "checkout-1"}

	newTestPoller(repo, w).processUnpublishedEvents(context.Background())

	assert.Equal(t, []int{2}, repo.processed())
}

func TestProcessUnpublishedEvents_RepositoryError(t *testing.T) {
	repo := &MockOutbox{GetErr: errors.New("database connection error")}
	w := &fakeWriter{}

	newTestPoller(repo, w).processUnpublishedEvents(context.Background())

	assert.Empty(t, w.messages)
	assert.Empty(t, repo.processed())
}

func TestProcessUnpublishedEvents_MarkErrorContinues(t *testing.T) {
	repo := &MockOutbox{
		OutboxEvents: []*r.OutboxEvent{event(1, "checkout-1"), event(2, "checkout-2")},
		MarkErr:      errors.New("deadlock"),
	}
	w := &fakeWriter{}

	newTestPoller(repo, w).processUnpublishedEvents(context.Background())

	assert.Len(t, w.messages, 2)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	repo := &MockOutbox{OutboxEvents: []*r.OutboxEvent{event(7, "checkout-7")}}
	poller := newTestPoller(repo, &fakeWriter{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(repo.processed()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()

	createTopic(t, brokerAddr, Topic)
	time.Sleep(5 * time.Second)

	repo := &MockOutbox{OutboxEvents: []*r.OutboxEvent{event(1, "checkout-123")}}
	poller := NewOutboxPoller(repo, brokerAddr)
	defer poller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    Topic,
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)

	assert.Equal(t, "checkout-123", string(msg.Key))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "checkout-123", payload["checkout_id"])

	assert.Eventually(t, func() bool { return len(repo.processed()) == 1 }, 5*time.Second, 50*time.Millisecond)
}
