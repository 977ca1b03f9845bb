package internal

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/bilichat/pkg/auth"
	"github.com/tinyland-inc/bilichat/pkg/config"
	"github.com/tinyland-inc/bilichat/pkg/danmaku"
	"github.com/tinyland-inc/bilichat/pkg/eventlog"
	"github.com/tinyland-inc/bilichat/pkg/logger"
	"github.com/tinyland-inc/bilichat/pkg/session"
	"github.com/tinyland-inc/bilichat/pkg/stream"
)

const Logo = "📺"

// ConfigFlag is the persistent flag overriding the config path.
const ConfigFlag = "config"

const liveOrigin = "https://live.bilibili.com"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".bilichat", "config.json")
}

// ConfigPath returns the --config value if set on cmd or a parent.
func ConfigPath(cmd *cobra.Command) string {
	if cmd != nil {
		if f := cmd.Flag(ConfigFlag); f != nil && f.Value.String() != "" {
			return f.Value.String()
		}
	}
	return GetConfigPath()
}

func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.LoadConfig(ConfigPath(cmd))
}

// SetupDebug raises the log level when debug is set.
func SetupDebug(debug bool) {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}
}

// ResolveRoom prefers an explicit --room over the configured rooms.
func ResolveRoom(cfg *config.Config, override int64) (int64, error) {
	if override != 0 {
		if override < 0 {
			return 0, fmt.Errorf("invalid room id %d", override)
		}
		return override, nil
	}
	return cfg.PrimaryRoom()
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Runtime is the wired send path and shared session for one process.
type Runtime struct {
	Config   *config.Config
	Session  *session.Session
	Sender   *danmaku.Client
	EventLog *eventlog.Store
}

func NewRuntime(cfg *config.Config) (*Runtime, error) {
	cred := cfg.ResolveCredential()

	sess, err := session.New(cred, session.Config{
		CookieDomain: cfg.Session.CookieDomain,
		Timeout:      cfg.SendTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	signer, err := NewSigner(cfg)
	if err != nil {
		sess.Close()
		return nil, err
	}

	builder := danmaku.NewBuilder(signer,
		danmaku.WithEndpoint(cfg.Send.Endpoint),
		danmaku.WithWebLocation(cfg.Send.WebLocation),
		danmaku.WithUserAgent(cfg.Send.UserAgent),
	)
	sender := danmaku.NewClient(auth.NewStore(cred), builder, danmaku.NewDispatcher(sess))

	return &Runtime{
		Config:   cfg,
		Session:  sess,
		Sender:   sender,
		EventLog: eventlog.New(cfg.LogDir()),
	}, nil
}

// NewSigner picks the external signer command when configured, otherwise
// the captured w_rid.
func NewSigner(cfg *config.Config) (danmaku.Signer, error) {
	if cfg.Send.SignerCommand != "" {
		s, err := danmaku.NewCommandSigner(cfg.Send.SignerCommand)
		if err != nil {
			return nil, fmt.Errorf("error creating signer: %w", err)
		}
		return s, nil
	}
	if cfg.Send.WRID == "" {
		logger.WarnC("cli", "No w_rid or signer command configured; sends will fail")
	}
	return danmaku.StaticSigner(cfg.Send.WRID), nil
}

// NewStream returns the relay client sharing the session's cookies.
func (r *Runtime) NewStream() stream.Client {
	return stream.NewRelayClient(stream.RelayConfig{
		URL:       r.Config.Stream.URL,
		Jar:       r.Session.Jar(),
		Origin:    liveOrigin,
		UserAgent: r.Config.Send.UserAgent,
	})
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

// GetVersion returns the version string
func GetVersion() string {
	return version
}
