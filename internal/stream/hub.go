// Package stream carries ordered progress events from one producing request
// to its single consumer.
package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"go.uber.org/zap"
)

// DefaultBuffer is the per-request channel capacity.
const DefaultBuffer = 32

var (
	ErrStreamExists = errors.New("stream already open for request")
	ErrStreamClosed = errors.New("stream is closed")
)

// Publisher mirrors events outside the process. Failures never affect the
// local stream.
type Publisher interface {
	Publish(ctx context.Context, ev domain.StreamEvent) error
}

// Hub tracks open streams by request id.
type Hub struct {
	mu        sync.Mutex
	streams   map[string]*Stream
	buffer    int
	publisher Publisher
	logger    *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		streams: make(map[string]*Stream),
		buffer:  DefaultBuffer,
		logger:  logger,
	}
}

func (h *Hub) SetPublisher(p Publisher) {
	h.publisher = p
}

// Open creates the stream for requestID. Each id may be opened once while
// it is live.
func (h *Hub) Open(requestID string) (*Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.streams[requestID]; exists {
		return nil, ErrStreamExists
	}
	s := &Stream{
		id:  requestID,
		ch:  make(chan domain.StreamEvent, h.buffer),
		hub: h,
	}
	h.streams[requestID] = s
	return s, nil
}

// Active reports the number of open streams.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.streams)
}

func (h *Hub) release(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.streams, id)
}

// Stream is a single-producer, single-consumer event channel. Only the
// producer publishes and closes it.
type Stream struct {
	id  string
	ch  chan domain.StreamEvent
	hub *Hub

	mu     sync.Mutex
	seq    int
	closed bool
	once   sync.Once
}

func (s *Stream) ID() string {
	return s.id
}

// Events is the consumer side. It is closed after the last event.
func (s *Stream) Events() <-chan domain.StreamEvent {
	return s.ch
}

// Publish stamps ev with the request id and the next sequence number and
// delivers it, blocking while the buffer is full until ctx is done.
func (s *Stream) Publish(ctx context.Context, ev domain.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}

	s.seq++
	ev.RequestID = s.id
	ev.Seq = s.seq

	select {
	case s.ch <- ev:
	case <-ctx.Done():
		s.seq--
		return ctx.Err()
	}

	if p := s.hub.publisher; p != nil {
		if err := p.Publish(ctx, ev); err != nil {
			s.hub.logger.Warn("failed to mirror stream event",
				zap.String("request_id", s.id),
				zap.Int("seq", ev.Seq),
				zap.Error(err))
		}
	}
	return nil
}

// Close ends the stream and releases it from the hub. Safe to call more
// than once.
func (s *Stream) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.hub.release(s.id)
	})
}
