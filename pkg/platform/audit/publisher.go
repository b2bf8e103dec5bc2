package audit

import (
	"context"
	"fmt"
)

// ChannelPublisher hands events to an in-process worker over a buffered
// channel. Emit fails rather than blocks when the buffer is full, so a
// stalled audit store surfaces as an error instead of request latency.
type ChannelPublisher struct {
	ch chan Event
}

func NewChannelPublisher(buffer int) *ChannelPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelPublisher{ch: make(chan Event, buffer)}
}

func (p *ChannelPublisher) Emit(ctx context.Context, event Event) error {
	select {
	case p.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("audit buffer full, event %s dropped", event.Action)
	}
}

// Events exposes the worker side of the channel.
func (p *ChannelPublisher) Events() <-chan Event {
	return p.ch
}

// Close stops accepting events. The worker drains what remains.
func (p *ChannelPublisher) Close() {
	close(p.ch)
}
