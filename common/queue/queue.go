package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mpas/sequencer/common/logger"
)

// ErrQueueFull is returned when a topic buffer cannot accept a message
var ErrQueueFull = errors.New("queue full")

// ErrClosed is returned by Publish/Subscribe after Close
var ErrClosed = errors.New("queue closed")

// Queue interface for in-process message passing
type Queue interface {
	Publish(ctx context.Context, topic string, key string, message []byte) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}

// MessageHandler processes messages
type MessageHandler func(ctx context.Context, key string, value []byte) error

// Message represents a queue message
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// MemoryQueue fans messages out to every subscriber of a topic
type MemoryQueue struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *Message
	bufferSize  int
	closed      bool
	wg          sync.WaitGroup
	log         *logger.Logger
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(log *logger.Logger) *MemoryQueue {
	return &MemoryQueue{
		subscribers: make(map[string][]chan *Message),
		bufferSize:  256,
		log:         log,
	}
}

// Publish delivers a message to every current subscriber of topic.
// A topic nobody listens to drops the message.
func (q *MemoryQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	msg := &Message{Topic: topic, Key: key, Value: message}

	var full int
	for _, ch := range q.subscribers[topic] {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		default:
			full++
		}
	}

	if full > 0 {
		q.log.Warn("queue full", "topic", topic, "dropped_for", full)
		return fmt.Errorf("%w: topic %s", ErrQueueFull, topic)
	}
	return nil
}

// Subscribe registers handler for topic; it runs until ctx is done or the queue closes
func (q *MemoryQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	ch := make(chan *Message, q.bufferSize)
	q.subscribers[topic] = append(q.subscribers[topic], ch)
	q.wg.Add(1)
	q.mu.Unlock()

	q.log.Info("subscribing to topic", "topic", topic)

	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				q.unsubscribe(topic, ch)
				q.log.Info("subscription cancelled", "topic", topic)
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := handler(ctx, msg.Key, msg.Value); err != nil {
					q.log.Warn("message handler error", "topic", topic, "key", msg.Key, "error", err)
				}
			}
		}
	}()

	return nil
}

// unsubscribe detaches ch so publishers stop filling a buffer nobody drains
func (q *MemoryQueue) unsubscribe(topic string, ch chan *Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	chans := q.subscribers[topic]
	for i, c := range chans {
		if c == ch {
			q.subscribers[topic] = append(chans[:i:i], chans[i+1:]...)
			break
		}
	}
	if len(q.subscribers[topic]) == 0 {
		delete(q.subscribers, topic)
	}
}

// Close closes every subscription and waits for handlers to drain
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for topic, chans := range q.subscribers {
		for _, ch := range chans {
			close(ch)
		}
		q.log.Info("closed topic", "topic", topic)
	}
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}
