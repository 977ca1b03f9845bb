package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/bilichat/pkg/config"
	"github.com/tinyland-inc/bilichat/pkg/danmaku"
)

func TestConfigPath(t *testing.T) {
	assert.Equal(t, GetConfigPath(), ConfigPath(nil))

	root := &cobra.Command{Use: "root"}
	root.PersistentFlags().String(ConfigFlag, "", "")
	child := &cobra.Command{Use: "child"}
	root.AddCommand(child)

	assert.Equal(t, GetConfigPath(), ConfigPath(child))

	require.NoError(t, root.PersistentFlags().Set(ConfigFlag, "/tmp/x.json"))
	assert.Equal(t, "/tmp/x.json", ConfigPath(child))
}

func TestResolveRoom(t *testing.T) {
	cfg := config.DefaultConfig()

	_, err := ResolveRoom(cfg, 0)
	assert.ErrorIs(t, err, config.ErrNoRoom)

	cfg.Rooms = []int64{32362442}
	room, err := ResolveRoom(cfg, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(32362442), room)

	room, err = ResolveRoom(cfg, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(6), room)

	_, err = ResolveRoom(cfg, -1)
	assert.Error(t, err)
}

func TestNewSigner(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Send.WRID = "abc"

	s, err := NewSigner(cfg)
	require.NoError(t, err)
	assert.Equal(t, danmaku.StaticSigner("abc"), s)

	cfg.Send.SignerCommand = "wbi-sign --room 6"
	s, err = NewSigner(cfg)
	require.NoError(t, err)
	cs, ok := s.(*danmaku.CommandSigner)
	require.True(t, ok)
	assert.Equal(t, "wbi-sign", cs.Path)
}

func TestNewRuntime(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Credential.SessData = "s"
	cfg.Credential.BiliJct = "j"
	cfg.Storage.LogDir = filepath.Join(t.TempDir(), "logs")

	rt, err := NewRuntime(cfg)
	require.NoError(t, err)
	defer rt.Session.Close()

	require.NoError(t, rt.EventLog.EnsureStorage())
	_, err = os.Stat(cfg.Storage.LogDir)
	assert.NoError(t, err)
	assert.NotNil(t, rt.NewStream())
}
