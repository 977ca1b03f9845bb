package send

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/bilichat/cmd/bilichat/internal"
	"github.com/tinyland-inc/bilichat/pkg/danmaku"
)

func NewSendCommand() *cobra.Command {
	var (
		debug bool
		room  int64
	)

	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "Send one message to a live room",
		Args:  cobra.MinimumNArgs(1),
		Example: `  bilichat send 你好
  bilichat send --room 6 "hello everyone"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCmd(cmd, room, strings.Join(args, " "), debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().Int64VarP(&room, "room", "r", 0, "Room id (default: first configured room)")

	return cmd
}

func sendCmd(cmd *cobra.Command, roomOverride int64, text string, debug bool) error {
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
	defer rt.Session.Close()

	ctx, stop := internal.SignalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.SendTimeout())
	defer cancel()

	if err := rt.Sender.Send(ctx, roomID, text); err != nil {
		fmt.Println(danmaku.Describe(err))
		return err
	}

	fmt.Printf("✅ 弹幕发送成功：%s\n", strings.TrimSpace(text))
	return nil
}
