package danmaku

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tinyland-inc/bilichat/pkg/auth"
	"github.com/tinyland-inc/bilichat/pkg/logger"
)

// Client is the send path: load credential, build, dispatch.
type Client struct {
	store      *auth.Store
	builder    *Builder
	dispatcher *Dispatcher
	now        func() time.Time
}

type ClientOption func(*Client)

// WithClock overrides the time source used for wts.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

func NewClient(store *auth.Store, builder *Builder, dispatcher *Dispatcher, opts ...ClientOption) *Client {
	c := &Client{
		store:      store,
		builder:    builder,
		dispatcher: dispatcher,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts text to roomID. A missing credential fails before any request
// is issued.
func (c *Client) Send(ctx context.Context, roomID int64, text string) error {
	cred, err := c.store.Load()
	if err != nil {
		return err
	}

	req, err := c.builder.Build(ctx, roomID, text, cred, c.now())
	if err != nil {
		return err
	}

	requestID := uuid.NewString()
	logger.DebugCF("danmaku", "Dispatching message",
		map[string]any{
			"request_id": requestID,
			"room":       roomID,
			"length":     len([]rune(text)),
		})

	start := time.Now()
	if err := c.dispatcher.Send(ctx, req); err != nil {
		logger.WarnCF("danmaku", "Send failed",
			map[string]any{
				"request_id": requestID,
				"room":       roomID,
				"error":      err.Error(),
			})
		return err
	}

	logger.InfoCF("danmaku", "Message sent",
		map[string]any{
			"request_id":  requestID,
			"room":        roomID,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	return nil
}
