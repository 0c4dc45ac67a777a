package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stageboard/stageboard/internal/events"
	"github.com/stageboard/stageboard/internal/propagate"
)

// subscriberBuffer is how many unsent results a slow client may lag behind
// before results are dropped for it.
const subscriberBuffer = 16

// Broadcaster fans recompute results out to connected event streams. It
// implements propagate.Listener.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan propagate.Result]struct{}
}

// NewBroadcaster creates a Broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan propagate.Result]struct{})}
}

// ProgressChanged delivers r to every subscriber without blocking.
func (b *Broadcaster) ProgressChanged(r propagate.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- r:
		default:
		}
	}
}

// Subscribe registers a new stream. Call the returned func to unsubscribe.
func (b *Broadcaster) Subscribe() (<-chan propagate.Result, func()) {
	ch := make(chan propagate.Result, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
}

// Subscribers returns the number of connected streams.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// handleSSE streams every recompute as a "progress" event.
func handleSSE(b *Broadcaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		results, unsubscribe := b.Subscribe()
		defer unsubscribe()

		// Send connected event.
		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		ctx := c.Request.Context()
		heartbeat := time.NewTicker(15 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case r := <-results:
				writeSSE(c.Writer, "progress", events.Event(r, time.Now()))
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
