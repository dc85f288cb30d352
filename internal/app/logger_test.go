package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/zipkiosk/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(func() { logger.Replace(nil) })

	require.NoError(t, ConfigureLogging(ServerConfig{LogLevel: "debug"}))
	require.NoError(t, ConfigureLogging(ServerConfig{LogFormat: "console"}))
}
