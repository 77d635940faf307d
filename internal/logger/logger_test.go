package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestInit_Levels(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	Init("debug", "json")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	Init("warn", "console")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	Init("chatty", "console")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	Init("", "json")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
