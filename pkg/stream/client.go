// Package stream defines the contract for the inbound room event stream and
// ships a websocket relay implementation of it.
//
// Platform framing, compression, heartbeats and reconnects belong to the
// implementation behind Client, never to its consumers.
package stream

import "context"

// Handler receives events in the order the stream delivers them. It is
// called from the client's read goroutine, one event at a time.
type Handler func(Event)

// Client is an inbound event stream for one room.
type Client interface {
	// Subscribe registers the event callback. It must be called before Start.
	Subscribe(h Handler)
	// Start connects to roomID and begins delivering events.
	Start(ctx context.Context, roomID int64) error
	// Stop asks the read loop to end. It does not wait.
	Stop()
	// Join blocks until the read loop has ended.
	Join()
}
