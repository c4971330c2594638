package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"verify-chain", "register", "register-pending", "cancel", "logs", "receipt", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	verify, _, err := root.Find([]string{"verify-chain"})
	require.NoError(t, err)
	assert.NotNil(t, verify.Flags().Lookup("strict"))
	assert.NotNil(t, verify.Flags().Lookup("push"))
}

func TestParseUUIDFlag(t *testing.T) {
	_, err := parseUUIDFlag("user", "")
	assert.EqualError(t, err, "--user is required")

	_, err = parseUUIDFlag("user", "abc")
	assert.EqualError(t, err, "--user must be a UUID")

	_, err = parseUUIDFlag("user", uuid.Nil.String())
	assert.Error(t, err)

	id := uuid.New()
	parsed, err := parseUUIDFlag("user", id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}
