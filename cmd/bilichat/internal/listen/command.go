package listen

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/bilichat/cmd/bilichat/internal"
	"github.com/tinyland-inc/bilichat/pkg/coordinator"
	"github.com/tinyland-inc/bilichat/pkg/router"
)

type options struct {
	debug    bool
	room     int64
	duration time.Duration
	message  string
	warmup   time.Duration
}

func NewListenCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Listen to a live room without interactive input",
		Args:  cobra.NoArgs,
		Example: `  bilichat listen
  bilichat listen --duration 10m
  bilichat listen --message "大家好" --warmup 5s`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listenCmd(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().Int64VarP(&opts.room, "room", "r", 0, "Room id (default: first configured room)")
	cmd.Flags().DurationVar(&opts.duration, "duration", 120*time.Second,
		"Stop listening after this long (0 = until interrupted)")
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "Send this message once after the warmup")
	cmd.Flags().DurationVar(&opts.warmup, "warmup", coordinator.DefaultWarmup,
		"Delay before sending --message")

	return cmd
}

func listenCmd(cmd *cobra.Command, opts options) error {
	internal.SetupDebug(opts.debug)

	cfg, err := internal.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	roomID, err := internal.ResolveRoom(cfg, opts.room)
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

	console := router.NewConsole(os.Stdout)
	c := coordinator.New(coordinator.Config{
		RoomID:         roomID,
		GraceDelay:     cfg.GraceDelay(),
		ListenDuration: opts.duration,
		WarmupMessage:  opts.message,
		Warmup:         opts.warmup,
	}, coordinator.Deps{
		Session: rt.Session,
		Stream:  rt.NewStream(),
		Sender:  rt.Sender,
		Router:  router.New(roomID, console, rt.EventLog),
		Console: console,
	})

	fmt.Fprintf(console, "%s 已连接直播间 %d，开始监听弹幕...\n", internal.Logo, roomID)

	ctx, stop := internal.SignalContext()
	defer stop()

	err = c.Run(ctx)
	fmt.Fprintln(console, "已停止监听")
	return err
}
