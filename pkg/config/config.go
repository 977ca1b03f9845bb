package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/tinyland-inc/bilichat/pkg/auth"
	"github.com/tinyland-inc/bilichat/pkg/logger"
)

// ErrNoRoom is returned when no usable room id is configured.
var ErrNoRoom = errors.New("no room configured")

const (
	DefaultSendEndpoint = "https://api.live.bilibili.com/msg/send"
	DefaultWebLocation  = "444.8"
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36"
	DefaultLogDir       = "massage"
	DefaultCookieDomain = ".bilibili.com"
)

type Config struct {
	Rooms      []int64          `env:"BILICHAT_ROOMS"       json:"rooms"`
	Credential CredentialConfig `json:"credential"`
	Send       SendConfig       `json:"send"`
	Stream     StreamConfig     `json:"stream"`
	Storage    StorageConfig    `json:"storage"`
	Session    SessionConfig    `json:"session"`
}

type CredentialConfig struct {
	SessData string `env:"BILICHAT_CREDENTIAL_SESSDATA" json:"sessdata,omitempty"`
	BiliJct  string `env:"BILICHAT_CREDENTIAL_BILI_JCT" json:"bili_jct,omitempty"`
	// Cookie is a raw browser Cookie header; it fills whichever of the two
	// fields above is empty.
	Cookie string `env:"BILICHAT_CREDENTIAL_COOKIE" json:"cookie,omitempty"`
}

type SendConfig struct {
	Endpoint       string `env:"BILICHAT_SEND_ENDPOINT"         json:"endpoint"`
	WebLocation    string `env:"BILICHAT_SEND_WEB_LOCATION"     json:"web_location"`
	WRID           string `env:"BILICHAT_SEND_W_RID"            json:"w_rid"`
	SignerCommand  string `env:"BILICHAT_SEND_SIGNER_COMMAND"   json:"signer_command,omitempty"`
	UserAgent      string `env:"BILICHAT_SEND_USER_AGENT"       json:"user_agent"`
	DelayMillis    int    `env:"BILICHAT_SEND_DELAY_MS"         json:"delay_ms"`
	ErrorBackoffMs int    `env:"BILICHAT_SEND_ERROR_BACKOFF_MS" json:"error_backoff_ms"`
	TimeoutSeconds int    `env:"BILICHAT_SEND_TIMEOUT_SECONDS"  json:"timeout_seconds"`
}

type StreamConfig struct {
	// URL of the event relay; "{room}" is replaced with the room id.
	URL string `env:"BILICHAT_STREAM_URL" json:"url"`
}

type StorageConfig struct {
	LogDir string `env:"BILICHAT_STORAGE_LOG_DIR" json:"log_dir"`
}

type SessionConfig struct {
	CookieDomain string `env:"BILICHAT_SESSION_COOKIE_DOMAIN" json:"cookie_domain"`
	GraceMillis  int    `env:"BILICHAT_SESSION_GRACE_MS"      json:"grace_ms"`
}

func DefaultConfig() *Config {
	return &Config{
		Rooms: []int64{},
		Send: SendConfig{
			Endpoint:       DefaultSendEndpoint,
			WebLocation:    DefaultWebLocation,
			UserAgent:      DefaultUserAgent,
			DelayMillis:    1500,
			ErrorBackoffMs: 1000,
			TimeoutSeconds: 10,
		},
		Stream: StreamConfig{
			URL: "ws://127.0.0.1:8765/rooms/{room}",
		},
		Storage: StorageConfig{
			LogDir: DefaultLogDir,
		},
		Session: SessionConfig{
			CookieDomain: DefaultCookieDomain,
			GraceMillis:  200,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks values that would otherwise fail deep inside a session.
// Credentials are not checked here; a missing credential only blocks sends.
func (c *Config) Validate() error {
	for _, id := range c.Rooms {
		if id <= 0 {
			return fmt.Errorf("invalid room id %d: must be positive", id)
		}
	}
	if c.Send.Endpoint == "" {
		return errors.New("send.endpoint is required")
	}
	if c.Send.DelayMillis < 0 || c.Send.ErrorBackoffMs < 0 || c.Session.GraceMillis < 0 {
		return errors.New("delays must not be negative")
	}
	if c.Storage.LogDir == "" {
		return errors.New("storage.log_dir is required")
	}
	return nil
}

// PrimaryRoom returns the first configured room.
func (c *Config) PrimaryRoom() (int64, error) {
	if len(c.Rooms) == 0 {
		return 0, ErrNoRoom
	}
	return c.Rooms[0], nil
}

// ResolveCredential resolves the configured credential. Explicit fields win over
// values parsed from the raw cookie string.
func (c *Config) ResolveCredential() auth.Credential {
	cred := auth.Credential{
		SessData: strings.TrimSpace(c.Credential.SessData),
		CSRF:     strings.TrimSpace(c.Credential.BiliJct),
	}
	if c.Credential.Cookie != "" && (cred.SessData == "" || cred.CSRF == "") {
		parsed, err := auth.ParseCookie(c.Credential.Cookie)
		if err != nil {
			logger.WarnCF("config", "Ignoring unparsable credential.cookie",
				map[string]any{"error": err.Error()})
		}
		if cred.SessData == "" {
			cred.SessData = parsed.SessData
		}
		if cred.CSRF == "" {
			cred.CSRF = parsed.CSRF
		}
	}
	return cred
}

func (c *Config) SendDelay() time.Duration {
	return time.Duration(c.Send.DelayMillis) * time.Millisecond
}

func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Send.ErrorBackoffMs) * time.Millisecond
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Send.TimeoutSeconds) * time.Second
}

func (c *Config) GraceDelay() time.Duration {
	return time.Duration(c.Session.GraceMillis) * time.Millisecond
}

func (c *Config) LogDir() string {
	return expandHome(c.Storage.LogDir)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
