package sse

import (
	"context"
	"testing"
	"time"

	"checkin-gate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesSubscribers(t *testing.T) {
	e := NewArrivalEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := e.Subscribe(ctx)
	b := e.Subscribe(ctx)
	assert.Equal(t, 2, e.ClientCount())

	evt := models.GateEvent{EventID: "e1", Type: models.GateEventAdmitted, GuestID: "G1"}
	require.NoError(t, e.Publish(context.Background(), evt))

	assert.Equal(t, evt, <-a)
	assert.Equal(t, evt, <-b)
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	e := NewArrivalEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := e.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*3; i++ {
			_ = e.Publish(context.Background(), models.GateEvent{Count: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full client")
	}
	assert.Len(t, ch, clientBuffer)
}

func TestUnsubscribeOnCancel(t *testing.T) {
	e := NewArrivalEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	ch := e.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	assert.Eventually(t, func() bool { return e.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
