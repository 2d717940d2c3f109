package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json")
	l.Info().Str("path", "a.txt").Msg("appending")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "appending", line["message"])
	assert.Equal(t, "a.txt", line["path"])
	assert.Equal(t, "info", line["level"])
	assert.Contains(t, line, "time")
	assert.Contains(t, line, "caller")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "console")
	l.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.Error(t, json.Unmarshal(buf.Bytes(), &map[string]interface{}{}))
}

func TestSetLevel(t *testing.T) {
	prev, prevGlobal := Log, zerolog.GlobalLevel()
	t.Cleanup(func() {
		Log = prev
		zerolog.SetGlobalLevel(prevGlobal)
	})

	Log = New(&bytes.Buffer{}, "json")
	SetLevel("warn")
	assert.Equal(t, zerolog.WarnLevel, Log.GetLevel())

	SetLevel("nonsense")
	assert.Equal(t, zerolog.InfoLevel, Log.GetLevel())

	SetLevel("")
	assert.Equal(t, zerolog.InfoLevel, Log.GetLevel())
}

func TestComponent(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	var buf bytes.Buffer
	Log = New(&buf, "json")
	l := Component("segment")
	l.Info().Msg("next segment")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "segment", line["component"])
}
