package testlog

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"haptics-go/internal/logging"
)

// Start configures test logging and returns a logger tagged with the test name.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	l := log.Logger.With().Str("test", t.Name()).Logger()
	l.Info().Msg("start")
	return l
}
