package chat

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/tinyland-inc/bilichat/cmd/bilichat/internal"
	"github.com/tinyland-inc/bilichat/pkg/coordinator"
	"github.com/tinyland-inc/bilichat/pkg/router"
)

func chatCmd(cmd *cobra.Command, roomOverride int64, debug bool) error {
	internal.SetupDebug(debug)

	cfg, err := internal.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	roomID, err := internal.ResolveRoom(cfg, roomOverride)
	if err != nil {
		return err
	}

	rt, err := internal.NewRuntime(cfg)
	if err != nil {
		return err
	}
	if err := rt.EventLog.EnsureStorage(); err != nil {
		rt.Session.Close()
		return err
	}

	input, out, closeInput := newInput()
	defer closeInput()
	console := router.NewConsole(out)

	c := coordinator.New(coordinator.Config{
		RoomID:       roomID,
		SendDelay:    cfg.SendDelay(),
		ErrorBackoff: cfg.ErrorBackoff(),
		GraceDelay:   cfg.GraceDelay(),
	}, coordinator.Deps{
		Session: rt.Session,
		Stream:  rt.NewStream(),
		Sender:  rt.Sender,
		Router:  router.New(roomID, console, rt.EventLog),
		Input:   input,
		Console: console,
	})

	fmt.Fprintf(console, "%s 已连接直播间 %d，开始持续监听弹幕...\n", internal.Logo, roomID)
	fmt.Fprintln(console, "提示：输入弹幕内容并回车发送，输入 'exit' 退出程序")
	fmt.Fprintln(console)

	ctx, stop := internal.SignalContext()
	defer stop()

	err = c.Run(ctx)
	fmt.Fprintln(console, "程序已退出")
	return err
}

// newInput prefers readline, which keeps the prompt intact while inbound
// lines print, and falls back to plain stdin.
func newInput() (coordinator.LineReader, io.Writer, func()) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".bilichat_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		return simpleInput(os.Stdin), os.Stdout, func() {}
	}

	return coordinator.LineReaderFunc(rl.Readline), rl.Stdout(), func() { rl.Close() }
}

func simpleInput(r io.Reader) coordinator.LineReader {
	reader := bufio.NewReader(r)
	return coordinator.LineReaderFunc(func() (string, error) {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			// deliver a final unterminated line before reporting EOF
			return line, nil
		}
		return line, err
	})
}
