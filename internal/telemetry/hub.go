package telemetry

import (
	"context"
	"sync"

	"github.com/niceyeti/channerics/channels"
)

// Hub fans a single producer's event stream out to N subscribers, grounded
// on niceyeti-tabular/server/fastview's view-model broadcast and this
// module's own requirement (spec.md §5: emissions "may be dropped"). The
// simulator is the sole producer; Publish must not be called concurrently
// from more than one goroutine.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber and returns a read-only channel of
// events scoped to ctx: channels.OrDone closes the returned channel (and
// stops delivery) as soon as ctx is done, without the producer needing to
// know about any one subscriber's lifetime.
func (h *Hub) Subscribe(ctx context.Context) <-chan Event {
	raw := make(chan Event, 64)
	h.mu.Lock()
	h.subs[raw] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, raw)
		h.mu.Unlock()
	}()

	return channels.OrDone(ctx.Done(), raw)
}

// Publish delivers ev to every live subscriber. Delivery is non-blocking: a
// subscriber whose buffer is full has this event dropped for it, per
// spec.md §5's "those emissions... may be dropped."
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// mergeEvents combines several subscriber channels into one. Unexported:
// internal/server wraps exactly one Simulator per connection today, so
// there is no consumer needing a merged multi-source read point. Kept as a
// thin wrapper over channels.Merge for the day a handler needs to fan in
// more than one Hub's subscription.
func mergeEvents(done <-chan struct{}, chs ...<-chan Event) <-chan Event {
	return channels.Merge(done, chs...)
}
