package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	keys   []string
	envs   []Envelope
}

func (r *recordingPublisher) Publish(_ context.Context, topic, key string, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.keys = append(r.keys, key)
	r.envs = append(r.envs, env)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func TestNewEnvelopeRoundTripsPayload(t *testing.T) {
	env, err := NewEnvelope("storefront-api", TopicOrderCreated, "order-1", OrderCreatedPayload{
		OrderID: "order-1",
		Total:   149.5,
		Items:   []OrderItem{{ProductID: "p1", Quantity: 2, Price: 50}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, EnvelopeVersion, env.EventVersion)
	assert.Equal(t, "order-1", env.CorrelationID)

	payload, err := UnwrapPayload[OrderCreatedPayload](env)
	require.NoError(t, err)
	assert.Equal(t, 149.5, payload.Total)
	assert.Len(t, payload.Items, 1)
}

func TestEmitterPublishesWithProducer(t *testing.T) {
	rec := &recordingPublisher{}
	em := NewEmitter(rec, "storefront-api")

	em.Emit(context.Background(), TopicPaymentCaptured, "order-9", PaymentCapturedPayload{OrderID: "order-9"})

	require.Len(t, rec.envs, 1)
	assert.Equal(t, TopicPaymentCaptured, rec.topics[0])
	assert.Equal(t, "order-9", rec.keys[0])
	assert.Equal(t, "storefront-api", rec.envs[0].Producer)
}

func TestNilPublisherFallsBackToNop(t *testing.T) {
	em := NewEmitter(nil, "svc")
	assert.NotPanics(t, func() {
		em.Emit(context.Background(), TopicOrderStatusChanged, "o", OrderStatusChangedPayload{})
	})
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic, key string, env Envelope) error {
	args := m.Called(ctx, topic, key, env)
	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

func TestEmitterSwallowsPublishErrors(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, TopicOrderStatusChanged, "order-3", mock.MatchedBy(func(env Envelope) bool {
		return env.EventType == TopicOrderStatusChanged && env.Producer == "storefront-api"
	})).Return(errors.New("broker down")).Once()

	em := NewEmitter(pub, "storefront-api")
	assert.NotPanics(t, func() {
		em.Emit(context.Background(), TopicOrderStatusChanged, "order-3", OrderStatusChangedPayload{OrderID: "order-3", From: "pending", To: "confirmed"})
	})
	pub.AssertExpectations(t)
}
