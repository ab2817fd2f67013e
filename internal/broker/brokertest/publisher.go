// Package brokertest provides an in-memory Publisher for tests.
package brokertest

import (
	"context"
	"sync"

	"github.com/jobsift/jobsift/internal/broker"
	"github.com/jobsift/jobsift/internal/domain/model"
)

// Published is one captured publish call.
type Published struct {
	Topic string
	Event model.JobEvent
}

// CapturePublisher records every published event and can be primed to fail.
type CapturePublisher struct {
	mu     sync.Mutex
	events []Published

	// PublishErr, when set, is returned by every Publish call.
	PublishErr error
	// PingErr, when set, is returned by Ping.
	PingErr error
}

var _ broker.Publisher = (*CapturePublisher)(nil)

// Publish records the event unless PublishErr is set.
func (c *CapturePublisher) Publish(_ context.Context, topic string, event model.JobEvent) error {
	if c.PublishErr != nil {
		return c.PublishErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, Published{Topic: topic, Event: event})
	return nil
}

// Ping returns the primed error, if any.
func (c *CapturePublisher) Ping(context.Context) error { return c.PingErr }

// Close is a no-op.
func (c *CapturePublisher) Close() {}

// Events returns a copy of all captured publishes in order.
func (c *CapturePublisher) Events() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Published, len(c.events))
	copy(out, c.events)
	return out
}

// EventsOn returns the captured events for one topic, in order.
func (c *CapturePublisher) EventsOn(topic string) []model.JobEvent {
	var out []model.JobEvent
	for _, p := range c.Events() {
		if p.Topic == topic {
			out = append(out, p.Event)
		}
	}
	return out
}

// Reset clears captured events.
func (c *CapturePublisher) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
