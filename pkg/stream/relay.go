package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tinyland-inc/bilichat/pkg/logger"
)

// Relay frame commands, named after the platform's own cmd values.
const (
	CmdDanmaku   = "DANMU_MSG"
	CmdGift      = "SEND_GIFT"
	CmdSuperChat = "SUPER_CHAT_MESSAGE"
)

const closeTimeout = time.Second

// RelayConfig configures a RelayClient.
type RelayConfig struct {
	// URL of the relay; "{room}" is replaced with the room id.
	URL string
	// Jar is the shared session's cookie jar.
	Jar              http.CookieJar
	Origin           string
	UserAgent        string
	HandshakeTimeout time.Duration
}

// RelayClient reads already-decoded room events from a websocket relay.
// Each text frame is a JSON envelope {"cmd": ..., "data": {...}}.
type RelayClient struct {
	config   RelayConfig
	handler  Handler
	conn     *websocket.Conn
	mu       sync.Mutex
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

func NewRelayClient(cfg RelayConfig) *RelayClient {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &RelayClient{
		config: cfg,
		done:   make(chan struct{}),
	}
}

func (c *RelayClient) Subscribe(h Handler) {
	c.handler = h
}

func (c *RelayClient) Start(ctx context.Context, roomID int64) error {
	if c.handler == nil {
		return errors.New("stream: no handler subscribed")
	}

	target := strings.ReplaceAll(c.config.URL, "{room}", strconv.FormatInt(roomID, 10))
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.config.HandshakeTimeout,
		Jar:              c.config.Jar,
	}
	header := http.Header{}
	if c.config.Origin != "" {
		header.Set("Origin", c.config.Origin)
	}
	if c.config.UserAgent != "" {
		header.Set("User-Agent", c.config.UserAgent)
	}

	conn, _, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	subscriptionID := uuid.New().String()
	logger.InfoCF("stream", "Relay connected", map[string]any{
		"room_id":         roomID,
		"url":             target,
		"subscription_id": subscriptionID,
	})

	c.wg.Add(2)
	go c.readLoop(conn, subscriptionID)
	go func() {
		defer c.wg.Done()
		select {
		case <-ctx.Done():
			c.Stop()
		case <-c.done:
		}
	}()

	return nil
}

// Stop closes the connection, which unblocks the read loop.
func (c *RelayClient) Stop() {
	c.doneOnce.Do(func() {
		close(c.done)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
	c.conn.Close()
	c.conn = nil
}

func (c *RelayClient) Join() {
	c.wg.Wait()
}

func (c *RelayClient) readLoop(conn *websocket.Conn, subscriptionID string) {
	defer c.wg.Done()
	// the relay going away on its own also ends the subscription
	defer c.doneOnce.Do(func() { close(c.done) })

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.ErrorCF("stream", "Relay read failed", map[string]any{
						"subscription_id": subscriptionID,
						"error":           err.Error(),
					})
				}
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			logger.WarnCF("stream", "Failed to decode relay frame", map[string]any{
				"subscription_id": subscriptionID,
				"error":           err.Error(),
			})
			continue
		}
		c.handler(ev)
	}
}

type envelope struct {
	Cmd  string          `json:"cmd"`
	Data json.RawMessage `json:"data"`
}

// DecodeEvent maps one relay frame onto an Event. Unrecognized commands
// become UnknownCommand carrying the whole frame.
func DecodeEvent(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("invalid relay frame: %w", err)
	}

	var (
		ev  Event
		err error
	)
	switch env.Cmd {
	case CmdDanmaku:
		var m ChatMessage
		err = json.Unmarshal(env.Data, &m)
		ev = m
	case CmdGift:
		var m GiftMessage
		err = json.Unmarshal(env.Data, &m)
		ev = m
	case CmdSuperChat:
		var m SuperChatMessage
		err = json.Unmarshal(env.Data, &m)
		ev = m
	default:
		return UnknownCommand{Cmd: env.Cmd, Raw: json.RawMessage(frame)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", env.Cmd, err)
	}
	return ev, nil
}
