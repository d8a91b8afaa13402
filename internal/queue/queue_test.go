package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: "submission", Body: []byte(`{"professorEmail":"ada@u.edu","responses":[]}`)}
	got, err := deserialize(serialize(msg))
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	// A pipe inside the JSON body stays with the body.
	msg = Message{Type: "submission", Body: []byte(`{"answer":"a|b"}`)}
	got, err = deserialize(serialize(msg))
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestInMemoryQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	out, err := q.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, Message{Type: "deadline", Body: []byte("{}")}))

	select {
	case msg := <-out:
		assert.Equal(t, "deadline", msg.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}

	// Cancelling the consumer closes its channel.
	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-out:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestInMemoryPublishRespectsContext(t *testing.T) {
	q := NewInMemory(1)
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, Message{Type: "submission"}))

	// Queue full and nobody consuming: a cancelled context unblocks.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := q.Publish(cancelled, Message{Type: "submission"})
	assert.ErrorIs(t, err, context.Canceled)
}
