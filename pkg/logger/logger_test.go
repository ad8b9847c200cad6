package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ValidLevelsAndFormats(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"debug json", "debug", "json"},
		{"info json", "info", "json"},
		{"warn console", "warn", "console"},
		{"error console", "error", "console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.level, tt.format)

			require.NoError(t, err)
			require.NotNil(t, log)

			log.Info("test log message")
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	log, err := New("loud", "json")

	assert.Error(t, err)
	assert.Nil(t, log)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNew_InvalidFormat(t *testing.T) {
	log, err := New("info", "xml")

	assert.Error(t, err)
	assert.Nil(t, log)
	assert.Contains(t, err.Error(), "invalid log format")
}
