package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerVerbosity(t *testing.T) {
	logger, err := NewLogger(false, VERBOSE)
	require.NoError(t, err)

	assert.True(t, logger.V(DEFAULT).Enabled())
	assert.True(t, logger.V(VERBOSE).Enabled())
	assert.False(t, logger.V(DEBUG).Enabled())
	assert.False(t, logger.V(TRACE).Enabled())
}

func TestNewTestLoggerEnablesTrace(t *testing.T) {
	assert.True(t, NewTestLogger().V(TRACE).Enabled())
}
