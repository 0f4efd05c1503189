// Package memory keeps published run summaries in process.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
)

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Summaries returns the payloads that were run summaries, in publish order.
func (p *Publisher) Summaries() []jobs.RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []jobs.RunSummary
	for _, msg := range p.messages {
		switch v := msg.Payload.(type) {
		case jobs.RunSummary:
			out = append(out, v)
		case *jobs.RunSummary:
			if v != nil {
				out = append(out, *v)
			}
		}
	}
	return out
}
