package events

import (
	"context"
	"log"
)

// Emitter builds envelopes for this service and hands them to a
// Publisher. Failures are logged; they never fail the request that
// produced the event.
type Emitter struct {
	pub      Publisher
	producer string
}

func NewEmitter(pub Publisher, producer string) *Emitter {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Emitter{pub: pub, producer: producer}
}

func (e *Emitter) Emit(ctx context.Context, topic, key string, payload any) {
	env, err := NewEnvelope(e.producer, topic, key, payload)
	if err != nil {
		log.Printf("[EVENTS] [ERROR] %s: %v", topic, err)
		return
	}
	if err := e.pub.Publish(ctx, topic, key, env); err != nil {
		log.Printf("[EVENTS] [ERROR] publish %s key=%s: %v", topic, key, err)
	}
}
