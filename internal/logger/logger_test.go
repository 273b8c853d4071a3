package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	require.NoError(t, SetLevel("DEBUG"))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	assert.Error(t, SetLevel("loud"))
}

func TestWithFile(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).With().Str("component", "pipeline").Logger()

	fl := WithFile(l, "in/a.json")
	fl.Info().Msg("Loaded")

	assert.Contains(t, buf.String(), `"file":"in/a.json"`)
	assert.Contains(t, buf.String(), `"component":"pipeline"`)
}
