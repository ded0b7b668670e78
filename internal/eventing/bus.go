package eventing

import (
	"context"
	"reflect"
	"sync"
)

// EventHandler consumes one event payload.
type EventHandler func(ctx context.Context, event any) error

// EventBus is the minimal publish/subscribe contract.
type EventBus interface {
	Publish(ctx context.Context, event any) error
	Subscribe(eventType string, handler EventHandler)
}

// InMemoryBus delivers events synchronously to subscribed handlers.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

// NewInMemoryBus constructs an empty bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for an event type.
func (b *InMemoryBus) Subscribe(eventType string, handler EventHandler) {
	if b == nil || eventType == "" || handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish delivers the event to every handler registered for its type. The
// first handler error stops delivery and is returned.
func (b *InMemoryBus) Publish(ctx context.Context, event any) error {
	if b == nil || event == nil {
		return nil
	}
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers[EventTypeName(event)]...)
	b.mu.RUnlock()
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// EventTypeName returns the registry key for an event value.
func EventTypeName(event any) string {
	eventType := reflect.TypeOf(event)
	for eventType != nil && eventType.Kind() == reflect.Ptr {
		eventType = eventType.Elem()
	}
	if eventType == nil {
		return ""
	}
	return eventType.String()
}
