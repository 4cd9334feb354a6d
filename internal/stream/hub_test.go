package stream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_OrderedEventsAndClose(t *testing.T) {
	hub := NewHub(zap.NewNop())
	s, err := hub.Open("req-1")
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Active())

	ctx := context.Background()
	require.NoError(t, s.Publish(ctx, domain.StreamEvent{Type: domain.EventThinking, Thinking: &domain.ThinkingStep{Phase: "route", Text: "factual"}}))
	require.NoError(t, s.Publish(ctx, domain.StreamEvent{Type: domain.EventAnswerChunk, AnswerChunk: "hello"}))
	s.Close()
	s.Close()

	var got []domain.StreamEvent
	for ev := range s.Events() {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Seq)
	assert.Equal(t, 2, got[1].Seq)
	assert.Equal(t, "req-1", got[1].RequestID)
	assert.Equal(t, 0, hub.Active())

	assert.ErrorIs(t, s.Publish(ctx, domain.StreamEvent{Type: domain.EventFinal}), ErrStreamClosed)
}

func TestHub_SecondOpenFails(t *testing.T) {
	hub := NewHub(zap.NewNop())
	s, err := hub.Open("dup")
	require.NoError(t, err)

	_, err = hub.Open("dup")
	assert.ErrorIs(t, err, ErrStreamExists)

	s.Close()
	_, err = hub.Open("dup")
	assert.NoError(t, err)
}

func TestStream_PublishHonoursContext(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.buffer = 1
	s, err := hub.Open("slow")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Publish(context.Background(), domain.StreamEvent{Type: domain.EventThinking}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = s.Publish(ctx, domain.StreamEvent{Type: domain.EventThinking})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(ctx context.Context, ev domain.StreamEvent) error {
	p.calls++
	return errors.New("mirror down")
}

func TestStream_MirrorFailureIsNotFatal(t *testing.T) {
	hub := NewHub(zap.NewNop())
	pub := &failingPublisher{}
	hub.SetPublisher(pub)

	s, err := hub.Open("mirror")
	require.NoError(t, err)
	require.NoError(t, s.Publish(context.Background(), domain.StreamEvent{Type: domain.EventFinal}))
	s.Close()

	assert.Equal(t, 1, pub.calls)
	ev := <-s.Events()
	assert.Equal(t, domain.EventFinal, ev.Type)
}

func TestRedisPublisher_MirrorsEvents(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	pub := NewRedisPublisher(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { pub.Close() })

	ctx := context.Background()
	require.NoError(t, pub.Ping(ctx))

	sub := pub.Subscribe(ctx, "req-9")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	hub := NewHub(zap.NewNop())
	hub.SetPublisher(pub)
	s, err := hub.Open("req-9")
	require.NoError(t, err)
	require.NoError(t, s.Publish(ctx, domain.StreamEvent{Type: domain.EventAnswerChunk, AnswerChunk: "chunk"}))
	s.Close()

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "veritas:stream:req-9", msg.Channel)
		var ev domain.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, "chunk", ev.AnswerChunk)
		assert.Equal(t, 1, ev.Seq)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for mirrored event")
	}
}

func TestNewRedisPublisherFromURL_Invalid(t *testing.T) {
	_, err := NewRedisPublisherFromURL("not a url")
	assert.Error(t, err)
}
