package eventing

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// Registry maps envelope event types back to Go payload types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]reflect.Type)}
}

// Register records a sample payload so envelopes of its type can be decoded.
func (r *Registry) Register(sample any) {
	if r == nil || sample == nil {
		return
	}
	sampleType := reflect.TypeOf(sample)
	for sampleType.Kind() == reflect.Ptr {
		sampleType = sampleType.Elem()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[sampleType.String()] = sampleType
}

// DecodePayload unmarshals an envelope payload into its registered type.
func (r *Registry) DecodePayload(env Envelope) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("eventing: nil registry")
	}
	r.mu.RLock()
	payloadType, ok := r.types[env.EventType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("eventing: unregistered event type %q", env.EventType)
	}
	value := reflect.New(payloadType)
	if err := json.Unmarshal(env.Payload, value.Interface()); err != nil {
		return nil, err
	}
	return value.Elem().Interface(), nil
}
