package nats

import (
	"context"
	"sync"

	"github.com/stackfolio/basketd/service/basket"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*basket.RunEvent
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*basket.RunEvent, 0),
	}
}

// PublishRunEvent records the event and returns any configured error.
func (m *MockPublisher) PublishRunEvent(ctx context.Context, ev *basket.RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, ev)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns all published events (for testing).
func (m *MockPublisher) GetPublishedEvents() []*basket.RunEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*basket.RunEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// GetPublishedEventsForWallet returns events published for a specific wallet.
func (m *MockPublisher) GetPublishedEventsForWallet(address string) []*basket.RunEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*basket.RunEvent, 0)
	for _, ev := range m.publishedEvents {
		if ev.Wallet == address {
			events = append(events, ev)
		}
	}
	return events
}

// SetPublishError configures the mock to return an error on PublishRunEvent.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// Reset clears all published events and errors.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishedEvents = make([]*basket.RunEvent, 0)
	m.publishError = nil
	m.closed = false
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
