// Package bus queues inbound room events between the stream reader and the
// event handler, so slow console or file writes never stall network reads.
package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/tinyland-inc/bilichat/pkg/stream"
)

// ErrBusClosed is returned when publishing to a closed EventBus.
var ErrBusClosed = errors.New("event bus closed")

const defaultCapacity = 100

// InboundEvent is a stream event tagged with its room and arrival time.
type InboundEvent struct {
	RoomID     int64
	ReceivedAt time.Time
	Event      stream.Event
}

type EventBus struct {
	inbound chan InboundEvent
	done    chan struct{}
	closed  atomic.Bool
}

func NewEventBus() *EventBus {
	return NewEventBusWithCapacity(defaultCapacity)
}

func NewEventBusWithCapacity(n int) *EventBus {
	return &EventBus{
		inbound: make(chan InboundEvent, n),
		done:    make(chan struct{}),
	}
}

func (eb *EventBus) PublishInbound(ctx context.Context, ev InboundEvent) error {
	if eb.closed.Load() {
		return ErrBusClosed
	}
	select {
	case eb.inbound <- ev:
		return nil
	case <-eb.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConsumeInbound returns the next event. After Close it keeps returning
// buffered events and reports false only once the buffer is empty.
func (eb *EventBus) ConsumeInbound(ctx context.Context) (InboundEvent, bool) {
	select {
	case ev := <-eb.inbound:
		return ev, true
	case <-eb.done:
		select {
		case ev := <-eb.inbound:
			return ev, true
		default:
			return InboundEvent{}, false
		}
	case <-ctx.Done():
		return InboundEvent{}, false
	}
}

// Pending reports how many events are buffered.
func (eb *EventBus) Pending() int {
	return len(eb.inbound)
}

func (eb *EventBus) Close() {
	if eb.closed.CompareAndSwap(false, true) {
		close(eb.done)
	}
}
