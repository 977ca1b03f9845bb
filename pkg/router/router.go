// Package router renders inbound room events to the console and records
// them in the event log.
package router

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tinyland-inc/bilichat/pkg/logger"
	"github.com/tinyland-inc/bilichat/pkg/stream"
)

const clockLayout = "15:04:05"

// one event is one line, on the console and in the log
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Console serializes whole-line writes from several goroutines onto one
// writer. Share a single Console between every component printing to the
// terminal.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	if c, ok := w.(*Console); ok {
		return c
	}
	return &Console{w: w}
}

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.Write(p)
}

// Appender persists one rendered line. *eventlog.Store satisfies it.
type Appender interface {
	Append(roomID int64, line string) error
}

type Option func(*Router)

func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// Router handles the events of one room.
type Router struct {
	roomID  int64
	console *Console
	log     Appender
	now     func() time.Time
}

func New(roomID int64, console io.Writer, log Appender, opts ...Option) *Router {
	r := &Router{
		roomID:  roomID,
		console: NewConsole(console),
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle prints ev and then appends it to the event log. Unknown commands
// are dropped silently.
func (r *Router) Handle(ev stream.Event) {
	line, ok := r.Format(ev)
	if !ok {
		if u, isUnknown := ev.(stream.UnknownCommand); isUnknown {
			logger.DebugCF("router", "Ignoring unknown command", map[string]any{"cmd": u.Cmd})
		}
		return
	}

	r.print(line)

	if r.log == nil {
		return
	}
	if err := r.log.Append(r.roomID, line); err != nil {
		logger.ErrorCF("router", "Failed to append event",
			map[string]any{
				"room":  r.roomID,
				"error": err.Error(),
			})
		r.print(fmt.Sprintf("❌ 写入日志失败：%v", err))
	}
}

// Format renders ev as a single line. It reports false for events that are
// not shown.
func (r *Router) Format(ev stream.Event) (string, bool) {
	stamp := r.now().Format(clockLayout)

	var line string
	switch e := ev.(type) {
	case stream.ChatMessage:
		line = fmt.Sprintf("[%s] %s：%s", stamp, e.User, e.Text)
	case stream.GiftMessage:
		line = fmt.Sprintf("[%s] %s 赠送 %s x%d", stamp, e.User, e.GiftName, e.Count)
	case stream.SuperChatMessage:
		price := strconv.FormatFloat(e.Price, 'f', -1, 64)
		line = fmt.Sprintf("[%s] 💰 %s（¥%s）：%s", stamp, e.User, price, e.Text)
	default:
		return "", false
	}
	return lineBreaks.Replace(line), true
}

func (r *Router) print(line string) {
	_, _ = fmt.Fprintln(r.console, line)
}
