package cmd

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceIDFor(t *testing.T) {
	id := deviceIDFor("vrbox", "http://jellyfin:8096")

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())

	assert.Equal(t, id, deviceIDFor("vrbox", "http://jellyfin:8096"), "same host and server keep their id across restarts")
	assert.NotEqual(t, id, deviceIDFor("other-host", "http://jellyfin:8096"))
	assert.NotEqual(t, id, deviceIDFor("vrbox", "http://media:8096"))
}
