package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	cfg := &Configuration{ServerUrl: "http://localhost:3001/"}
	require.NoError(t, cfg.Sanitize())
	assert.Equal(t, "http://localhost:3001", cfg.ServerUrl)
	assert.Equal(t, ModeDeferred, cfg.Mode)
	assert.Equal(t, "gpa_verifier", cfg.Circuit.Name)
}

func TestSanitizeRejectsUnknownMode(t *testing.T) {
	cfg := &Configuration{ServerUrl: "http://localhost:3001", Mode: "lazy"}
	require.Error(t, cfg.Sanitize())
}

func TestSanitizeRejectsRelativeServerUrl(t *testing.T) {
	cfg := &Configuration{ServerUrl: "localhost:3001"}
	require.Error(t, cfg.Sanitize())
}
