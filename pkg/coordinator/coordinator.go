// Package coordinator runs one live-room session: it keeps the inbound event
// stream and the outbound send loop alive over a shared HTTP session, and
// tears both down in order when either side asks to stop.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"

	"github.com/tinyland-inc/bilichat/pkg/bus"
	"github.com/tinyland-inc/bilichat/pkg/danmaku"
	"github.com/tinyland-inc/bilichat/pkg/logger"
	"github.com/tinyland-inc/bilichat/pkg/router"
	"github.com/tinyland-inc/bilichat/pkg/stream"
)

// ErrAlreadyStarted is returned by Run on a coordinator that has run before.
var ErrAlreadyStarted = errors.New("coordinator already started")

const (
	DefaultSendDelay    = 1500 * time.Millisecond
	DefaultErrorBackoff = time.Second
	DefaultGraceDelay   = 200 * time.Millisecond
	DefaultWarmup       = 2 * time.Second

	exitCommand = "exit"
)

// Sender posts one message to a room. *danmaku.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, roomID int64, text string) error
}

// EventHandler consumes inbound events in arrival order. *router.Router
// satisfies it.
type EventHandler interface {
	Handle(ev stream.Event)
}

// LineReader yields one line of user input per call. io.EOF and
// readline.ErrInterrupt end the outbound loop.
type LineReader interface {
	ReadLine() (string, error)
}

// LineReaderFunc adapts a function to LineReader.
type LineReaderFunc func() (string, error)

func (f LineReaderFunc) ReadLine() (string, error) { return f() }

type Config struct {
	RoomID int64

	SendDelay    time.Duration
	ErrorBackoff time.Duration
	GraceDelay   time.Duration

	// ListenDuration ends the session after this long. Zero means no limit.
	ListenDuration time.Duration
	// WarmupMessage is sent once, Warmup after the stream starts, when no
	// Input is attached.
	WarmupMessage string
	Warmup        time.Duration

	BusCapacity int
}

// Deps are the collaborators a Coordinator drives. Session is closed exactly
// once when the coordinator finishes.
type Deps struct {
	Session io.Closer
	Stream  stream.Client
	Sender  Sender
	Router  EventHandler
	Input   LineReader
	// Console receives notices. Pass the same *router.Console given to the
	// router so their lines never interleave.
	Console io.Writer
}

type Coordinator struct {
	cfg  Config
	deps Deps

	state     atomic.Int32
	stop      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

func New(cfg Config, deps Deps) *Coordinator {
	if deps.Console == nil {
		deps.Console = io.Discard
	}
	deps.Console = router.NewConsole(deps.Console)
	if cfg.BusCapacity <= 0 {
		cfg.BusCapacity = 100
	}
	return &Coordinator{
		cfg:  cfg,
		deps: deps,
		stop: make(chan struct{}),
	}
}

func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Shutdown asks a running coordinator to drain. It returns immediately and
// is safe to call any number of times, before or after Run.
func (c *Coordinator) Shutdown() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Run blocks until the session ends: the user types exit or closes input,
// ctx is cancelled, ListenDuration elapses, Shutdown is called, or the
// stream ends by itself. Every path drains and closes the session once.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(Idle), int32(SessionOpen)) {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	eventBus := bus.NewEventBusWithCapacity(c.cfg.BusCapacity)
	consumerDone := make(chan struct{})
	go c.consume(eventBus, consumerDone)

	c.deps.Stream.Subscribe(func(ev stream.Event) {
		// Not tied to runCtx: events that arrive while the stream is being
		// stopped are still queued and drained.
		err := eventBus.PublishInbound(context.Background(), bus.InboundEvent{
			RoomID:     c.cfg.RoomID,
			ReceivedAt: time.Now(),
			Event:      ev,
		})
		if err != nil {
			logger.DebugCF("coordinator", "Dropped event after bus close",
				map[string]any{"room": c.cfg.RoomID})
		}
	})

	c.state.Store(int32(Listening))
	logger.InfoCF("coordinator", "Listening",
		map[string]any{
			"room":        c.cfg.RoomID,
			"interactive": c.deps.Input != nil,
		})

	if err := c.deps.Stream.Start(runCtx, c.cfg.RoomID); err != nil {
		startErr := fmt.Errorf("starting stream for room %d: %w", c.cfg.RoomID, err)
		c.drain(cancel, eventBus, consumerDone, nil, nil)
		return startErr
	}

	streamDone := make(chan struct{})
	go func() {
		c.deps.Stream.Join()
		close(streamDone)
	}()

	var loopDone chan struct{}
	if c.deps.Input != nil {
		loopDone = make(chan struct{})
		go func() {
			defer close(loopDone)
			c.outboundLoop(runCtx)
		}()
	}

	var warmup sync.WaitGroup
	if c.deps.Input == nil && c.cfg.WarmupMessage != "" {
		warmup.Add(1)
		go func() {
			defer warmup.Done()
			c.sendWarmup(runCtx)
		}()
	}

	var deadline <-chan time.Time
	if c.cfg.ListenDuration > 0 {
		timer := time.NewTimer(c.cfg.ListenDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	reason := ""
	select {
	case <-ctx.Done():
		reason = "cancelled"
	case <-c.stop:
		reason = "shutdown"
	case <-loopDone:
		reason = "input closed"
	case <-deadline:
		reason = "listen duration elapsed"
	case <-streamDone:
		reason = "stream ended"
		logger.WarnCF("coordinator", "Event stream ended", map[string]any{"room": c.cfg.RoomID})
	}
	logger.InfoCF("coordinator", "Draining", map[string]any{"room": c.cfg.RoomID, "reason": reason})

	c.drain(cancel, eventBus, consumerDone, loopDone, &warmup)
	return nil
}

func (c *Coordinator) drain(
	cancel context.CancelFunc,
	eventBus *bus.EventBus,
	consumerDone <-chan struct{},
	loopDone <-chan struct{},
	warmup *sync.WaitGroup,
) {
	c.state.Store(int32(Draining))
	cancel()

	c.deps.Stream.Stop()
	c.deps.Stream.Join()

	if loopDone != nil {
		<-loopDone
	}
	if warmup != nil {
		warmup.Wait()
	}

	eventBus.Close()
	<-consumerDone

	if err := c.closeSession(); err != nil {
		logger.WarnCF("coordinator", "Closing session failed", map[string]any{"error": err.Error()})
	}
	c.state.Store(int32(Closed))
	logger.InfoCF("coordinator", "Session closed", map[string]any{"room": c.cfg.RoomID})

	// let in-flight connection teardown settle before the process exits
	if c.cfg.GraceDelay > 0 {
		time.Sleep(c.cfg.GraceDelay)
	}
}

func (c *Coordinator) closeSession() error {
	c.closeOnce.Do(func() {
		if c.deps.Session != nil {
			c.closeErr = c.deps.Session.Close()
		}
	})
	return c.closeErr
}

func (c *Coordinator) consume(eventBus *bus.EventBus, done chan<- struct{}) {
	defer close(done)
	for {
		ev, ok := eventBus.ConsumeInbound(context.Background())
		if !ok {
			return
		}
		c.handle(ev)
	}
}

func (c *Coordinator) handle(ev bus.InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("coordinator", "Event handler panicked",
				map[string]any{
					"room":  ev.RoomID,
					"panic": fmt.Sprint(r),
				})
		}
	}()
	if c.deps.Router != nil {
		c.deps.Router.Handle(ev.Event)
	}
}

type readResult struct {
	line string
	err  error
}

func (c *Coordinator) outboundLoop(ctx context.Context) {
	for {
		res, ok := c.readLine(ctx)
		if !ok || ctx.Err() != nil {
			return
		}

		if res.err != nil {
			if errors.Is(res.err, io.EOF) || errors.Is(res.err, readline.ErrInterrupt) {
				logger.DebugCF("coordinator", "Input closed", map[string]any{"error": res.err.Error()})
				return
			}
			c.printf("输入/发送出错：%v", res.err)
			if !sleep(ctx, c.cfg.ErrorBackoff) {
				return
			}
			continue
		}

		text := strings.TrimSpace(res.line)
		switch {
		case strings.EqualFold(text, exitCommand):
			c.printf("准备退出程序...")
			return
		case text == "":
			c.printf("弹幕内容不能为空，跳过发送")
			continue
		}

		if err := c.send(ctx, text); err != nil {
			var p *panicError
			if errors.As(err, &p) {
				c.printf("输入/发送出错：%v", err)
				if !sleep(ctx, c.cfg.ErrorBackoff) {
					return
				}
				continue
			}
			if ctx.Err() == nil {
				c.printf("%s", danmaku.Describe(err))
			}
		}
		if !sleep(ctx, c.cfg.SendDelay) {
			return
		}
	}
}

// readLine runs one blocking read in its own goroutine so that cancellation
// is observed while the user is idle.
func (c *Coordinator) readLine(ctx context.Context) (readResult, bool) {
	ch := make(chan readResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- readResult{err: &panicError{value: r}}
			}
		}()
		line, err := c.deps.Input.ReadLine()
		ch <- readResult{line: line, err: err}
	}()

	select {
	case res := <-ch:
		return res, true
	case <-ctx.Done():
		return readResult{}, false
	}
}

func (c *Coordinator) send(ctx context.Context, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return c.deps.Sender.Send(ctx, c.cfg.RoomID, text)
}

func (c *Coordinator) sendWarmup(ctx context.Context) {
	if !sleep(ctx, c.cfg.Warmup) {
		return
	}
	if err := c.send(ctx, c.cfg.WarmupMessage); err != nil {
		if ctx.Err() == nil {
			c.printf("%s", danmaku.Describe(err))
		}
		return
	}
	c.printf("✅ 弹幕发送成功：%s", c.cfg.WarmupMessage)
}

func (c *Coordinator) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.deps.Console, format+"\n", args...)
}

type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("recovered panic: %v", p.value)
}

// sleep waits for d or ctx, reporting false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
