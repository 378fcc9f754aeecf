package events

import (
	"context"
	"sync"
	"time"

	id "fracmarket/pkg/domain"
)

// Recorder is an in-memory Publisher for tests and single-node runs.
type Recorder struct {
	mu     sync.RWMutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// All returns every recorded event in publish order.
func (r *Recorder) All() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByListing returns recorded events for one listing in publish order.
func (r *Recorder) ByListing(listingID id.ListingID) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for _, e := range r.events {
		if e.ListingID == listingID {
			out = append(out, e)
		}
	}
	return out
}
