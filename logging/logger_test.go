package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/config"
)

func TestNew_JSONCarriesServiceAndConversionID(t *testing.T) {
	var buf bytes.Buffer
	l := ForConversion(New(config.LogConfig{Level: "debug", Format: "json"}, &buf), "c-42")
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "mdconvert", entry["service"])
	assert.Equal(t, "c-42", entry["conversion_id"])
	assert.Equal(t, "hello", entry["message"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.LogConfig{Level: "error", Format: "json"}, &buf)
	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}
