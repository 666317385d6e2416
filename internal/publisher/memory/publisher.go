// Package memory records published run notifications in process memory for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Notification captures one publish call.
type Notification struct {
	Topic   string
	Payload any
}

// Publisher implements crawler.Publisher over a slice.
type Publisher struct {
	mu   sync.RWMutex
	sent []Notification
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the notification and returns a sequential pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, Notification{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.sent)), nil
}

// Notifications returns a copy of everything published so far.
func (p *Publisher) Notifications() []Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Notification, len(p.sent))
	copy(out, p.sent)
	return out
}
