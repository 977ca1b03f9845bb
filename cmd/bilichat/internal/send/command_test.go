package send

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/bilichat/cmd/bilichat/internal"
	"github.com/tinyland-inc/bilichat/pkg/auth"
	"github.com/tinyland-inc/bilichat/pkg/config"
)

func TestNewSendCommand(t *testing.T) {
	cmd := NewSendCommand()
	require.NotNil(t, cmd)

	assert.Equal(t, "send <text>", cmd.Use)
	assert.True(t, cmd.HasExample())
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("room"))
	assert.NotNil(t, cmd.Flags().Lookup("debug"))

	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"hi"}))
}

func newRoot(t *testing.T, cfg *config.Config) *cobra.Command {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, config.SaveConfig(path, cfg))

	root := &cobra.Command{Use: "bilichat", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().String(internal.ConfigFlag, path, "")
	root.AddCommand(NewSendCommand())
	root.SetOut(io.Discard)
	return root
}

func TestSendCommand_PostsMessage(t *testing.T) {
	var hits atomic.Int32
	gotMsg := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = r.ParseForm()
		gotMsg <- r.PostForm.Get("msg")
		_, _ = io.WriteString(w, `{"code":0}`)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Rooms = []int64{6}
	cfg.Credential.SessData = "s"
	cfg.Credential.BiliJct = "j"
	cfg.Send.Endpoint = srv.URL
	cfg.Send.WRID = "sig"

	root := newRoot(t, cfg)
	root.SetArgs([]string{"send", "hello", "world"})
	require.NoError(t, root.Execute())

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "hello world", <-gotMsg)
}

func TestSendCommand_MissingCredential(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Rooms = []int64{6}
	cfg.Send.Endpoint = srv.URL

	// env must not leak a real credential into the test
	for _, k := range []string{"BILICHAT_CREDENTIAL_SESSDATA", "BILICHAT_CREDENTIAL_BILI_JCT", "BILICHAT_CREDENTIAL_COOKIE"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	root := newRoot(t, cfg)
	root.SetArgs([]string{"send", "hello"})
	err := root.Execute()

	assert.ErrorIs(t, err, auth.ErrMissingCredential)
	assert.Zero(t, hits.Load())
}
