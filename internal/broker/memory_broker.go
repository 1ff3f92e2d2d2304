package broker

import (
	"context"
	"sync"

	"github.com/Baaaki/imf-gadgets/pkg/logger"
	"go.uber.org/zap"
)

// MemoryEventBroker fans events out inside one process. It is used when no
// redis is configured.
type MemoryEventBroker struct {
	mu          sync.RWMutex
	subscribers map[chan GadgetEvent]struct{}
	closed      bool
}

func NewMemoryEventBroker() *MemoryEventBroker {
	return &MemoryEventBroker{
		subscribers: make(map[chan GadgetEvent]struct{}),
	}
}

// Publish never blocks: a subscriber with a full buffer misses the event
func (m *MemoryEventBroker) Publish(event GadgetEvent) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- event:
		default:
			logger.Log.Warn("Feed subscriber is lagging, event dropped",
				zap.String("type", string(event.Type)),
				zap.String("gadget_id", event.Gadget.ID),
			)
		}
	}
	return nil
}

func (m *MemoryEventBroker) Subscribe(ctx context.Context) (<-chan GadgetEvent, error) {
	ch := make(chan GadgetEvent, subscriberBuffer)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch, nil
	}
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.remove(ch)
	}()

	return ch, nil
}

func (m *MemoryEventBroker) remove(ch chan GadgetEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subscribers[ch]; ok {
		delete(m.subscribers, ch)
		close(ch)
	}
}

// Close ends every subscription
func (m *MemoryEventBroker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for ch := range m.subscribers {
		delete(m.subscribers, ch)
		close(ch)
	}
	m.closed = true
	return nil
}
