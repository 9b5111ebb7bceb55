package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEndpoints(t *testing.T) {
	got := endpoints([]string{"http://a:26657, http://b:26657", "", "http://c:26657"})
	require.Equal(t, []string{"http://a:26657", "http://b:26657", "http://c:26657"}, got)
	require.Empty(t, endpoints(nil))
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := newLogger("loud")
	require.Error(t, err)

	logger, err := newLogger("debug")
	require.NoError(t, err)
	require.NotNil(t, logger)
}
