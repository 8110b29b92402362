package sse

import (
	"context"
	"sync"

	"checkin-gate/internal/models"
)

const clientBuffer = 16

// ArrivalEmitter fans gate events out to connected /events clients.
type ArrivalEmitter struct {
	clients     map[chan models.GateEvent]struct{}
	clientMutex sync.RWMutex
}

func NewArrivalEmitter() *ArrivalEmitter {
	return &ArrivalEmitter{
		clients: make(map[chan models.GateEvent]struct{}),
	}
}

// Subscribe registers a client until ctx is done; the channel is closed then.
func (e *ArrivalEmitter) Subscribe(ctx context.Context) <-chan models.GateEvent {
	clientChan := make(chan models.GateEvent, clientBuffer)

	e.clientMutex.Lock()
	e.clients[clientChan] = struct{}{}
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(clientChan)
	}()

	return clientChan
}

// Publish never blocks: a client whose buffer is full misses the event.
func (e *ArrivalEmitter) Publish(_ context.Context, evt models.GateEvent) error {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()

	for clientChan := range e.clients {
		select {
		case clientChan <- evt:
		default:
		}
	}
	return nil
}

func (e *ArrivalEmitter) remove(clientChan chan models.GateEvent) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	if _, ok := e.clients[clientChan]; ok {
		delete(e.clients, clientChan)
		close(clientChan)
	}
}

func (e *ArrivalEmitter) ClientCount() int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients)
}
