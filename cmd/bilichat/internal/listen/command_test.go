package listen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewListenCommand(t *testing.T) {
	cmd := NewListenCommand()
	require.NotNil(t, cmd)

	assert.Equal(t, "listen", cmd.Use)
	assert.Empty(t, cmd.Aliases)
	assert.True(t, cmd.HasExample())
	assert.NotNil(t, cmd.RunE)

	for _, name := range []string{"debug", "room", "duration", "message", "warmup"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}

	d, err := cmd.Flags().GetDuration("duration")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	w, err := cmd.Flags().GetDuration("warmup")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, w)
}
