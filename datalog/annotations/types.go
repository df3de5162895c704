// Package annotations provides a clean, low-overhead annotation system for
// tracking evaluation progress and debugging information.
package annotations

import (
	"sync"
	"time"
)

// Event name constants following hierarchical naming pattern
const (
	// Run lifecycle
	RunBegin    = "run/begin"
	RunComplete = "run/complete"

	// Stratum evaluation
	StratumBegin    = "stratum/begin"
	StratumComplete = "stratum/complete"
	RoundComplete   = "round/complete"

	// Rule evaluation
	RuleEvaluated = "rule/evaluated"

	// Fact insertion
	FactsAdded = "facts/added"

	// Incremental evaluation falling back to recomputation
	IncrementalFallback = "incremental/fallback"

	// Errors
	ErrorCompile   = "error/compile"
	ErrorEvaluate  = "error/evaluate"
	ErrorFactCheck = "error/fact-check"
)

// Event represents a single annotation event during evaluation.
type Event struct {
	Name    string                 // Event name using hierarchical constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Additional event-specific data with grouped metrics
	Caller  string                 // Optional: file:line where event occurred
}

// Handler processes annotation events as they occur.
type Handler func(event Event)

// Multi fans an event out to several handlers. Nil handlers are skipped.
func Multi(handlers ...Handler) Handler {
	var active []Handler
	for _, h := range handlers {
		if h != nil {
			active = append(active, h)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(event Event) {
		for _, h := range active {
			h(event)
		}
	}
}

// Collector accumulates events during evaluation.
type Collector struct {
	enabled bool
	handler Handler

	mu     sync.Mutex // Protects events; rule events arrive from worker goroutines
	events []Event
}

// NewCollector creates a new annotation collector.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		enabled: handler != nil,
		handler: handler,
		events:  make([]Event, 0, 128), // Pre-size for a typical run
	}
}

// Handler returns the underlying event handler.
func (c *Collector) Handler() Handler {
	return c.handler
}

// Add records a new event.
// Thread-safe for concurrent access.
func (c *Collector) Add(event Event) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call handler outside the lock to avoid deadlocks
	if c.handler != nil {
		c.handler(event)
	}
}

// AddTiming records an event that started at start and ends now.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if !c.enabled {
		return
	}

	end := time.Now()
	c.Add(Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}

// Events returns a copy of all collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	eventsCopy := make([]Event, len(c.events))
	copy(eventsCopy, c.events)
	return eventsCopy
}

// Count returns how many events with the given name were collected.
func (c *Collector) Count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// Reset clears the collected events. The handler is kept.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
