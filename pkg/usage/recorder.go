// Package usage tracks billed calls asynchronously. Events go onto a
// buffered channel and a background goroutine applies them, so usage
// accounting can never add latency to or fail a request.
package usage

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/crateintel/pkg/auth"
)

// Event is one billed call against an API key.
type Event struct {
	Key   string
	Count int64
}

// Recorder drains usage events into a KeyStore. Record never blocks: if
// the buffer is full the event is dropped and logged, trading perfect
// accounting for request latency.
type Recorder struct {
	events chan Event
	keys   auth.KeyStore
	logger *log.Logger

	closeOnce sync.Once
	done      chan struct{}
}

const defaultBuffer = 1024

// NewRecorder starts the drain goroutine. If buffer is <= 0 a default
// size is used.
func NewRecorder(keys auth.KeyStore, buffer int, logger *log.Logger) *Recorder {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = log.Default()
	}
	r := &Recorder{
		events: make(chan Event, buffer),
		keys:   keys,
		logger: logger,
		done:   make(chan struct{}),
	}
	go r.drain()
	return r
}

// Record queues one billed call. Safe to call from any goroutine.
func (r *Recorder) Record(key string) {
	select {
	case r.events <- Event{Key: key, Count: 1}:
	default:
		r.logger.Debug("usage event dropped, buffer full", "key", key)
	}
}

func (r *Recorder) drain() {
	defer close(r.done)
	for ev := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.keys.IncrementUsage(ctx, ev.Key, ev.Count); err != nil {
			r.logger.Warn("usage increment failed", "key", ev.Key, "err", err)
		}
		cancel()
	}
}

// Close flushes queued events and stops the drain goroutine.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.events)
	})
	<-r.done
	return nil
}
