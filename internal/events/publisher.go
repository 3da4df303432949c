package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher sends one event. Implementations must not block the request
// path on broker I/O.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, env Envelope) error
	Close() error
}

var ErrPublisherClosed = errors.New("publisher closed")

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, Envelope) error { return nil }
func (NopPublisher) Close() error                                           { return nil }

// KafkaPublisher queues messages on a buffered inbox drained by a single
// goroutine. Close stops accepting messages, flushes the inbox and closes
// the writer. A full inbox drops the event and logs it.
type KafkaPublisher struct {
	w     *kafka.Writer
	inbox chan kafka.Message
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewKafkaPublisher(brokers []string, buf int) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}, buf)
}

func newKafkaPublisher(w *kafka.Writer, buf int) *KafkaPublisher {
	if buf <= 0 {
		buf = 256
	}
	p := &KafkaPublisher{
		w:     w,
		inbox: make(chan kafka.Message, buf),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for m := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := p.w.WriteMessages(ctx, m); err != nil {
			log.Printf("[EVENTS] [ERROR] write %s key=%s: %v", m.Topic, m.Key, err)
		}
		cancel()
	}
}

func (p *KafkaPublisher) Publish(_ context.Context, topic, key string, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(env.EventType)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.inbox <- msg:
		return nil
	default:
		log.Printf("[EVENTS] [WARN] inbox full, dropping %s for %s", env.EventType, key)
		return nil
	}
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()

	<-p.done
	return p.w.Close()
}
