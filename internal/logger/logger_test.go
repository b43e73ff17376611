package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestInit_ValidLevel(t *testing.T) {
	Init("debug", false)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestInit_InvalidLevelDefaultsToInfo(t *testing.T) {
	Init("not-a-level", false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestInit_Pretty(t *testing.T) {
	Init("info", true)
	assert.NotNil(t, Get())
}

func TestWithHelpers(t *testing.T) {
	Init("info", false)

	// Helpers return derived loggers; just exercise them.
	componentLog := WithComponent("api")
	componentLog.Info().Msg("component logger")

	consumerLog := WithConsumer("worker-1")
	consumerLog.Info().Msg("consumer logger")

	taskLog := WithTask(42)
	taskLog.Info().Msg("task logger")
}
