package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	t.Cleanup(func() { Init(Config{Level: "info"}) })

	t.Run("debug level", func(t *testing.T) {
		log := Init(Config{Level: "debug", Format: "console"})
		require.NotNil(t, log)
		assert.True(t, IsDebug())
		assert.Same(t, log, Log)
	})

	t.Run("unknown level keeps previous setting", func(t *testing.T) {
		Init(Config{Level: "info"})
		Init(Config{Level: "loud", Format: "json"})
		assert.False(t, IsDebug())
	})
}

func TestSpanFields(t *testing.T) {
	fields := SpanFields("p", "t", "s")
	require.Len(t, fields, 3)
	assert.Equal(t, "project_id", fields[0].Key)
	assert.Equal(t, "s", fields[2].String)
}
