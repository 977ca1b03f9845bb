package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBilichatCommand(t *testing.T) {
	cmd := NewBilichatCommand()
	require.NotNil(t, cmd)

	assert.Equal(t, "bilichat", cmd.Use)
	assert.True(t, cmd.HasSubCommands())
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))

	for _, name := range []string{"chat", "c", "listen", "send", "auth", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.NotEqual(t, cmd, sub, name)
	}
}
