package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/folio/pkg/types"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("debug", "json", &buf)
	require.NoError(t, err)

	log.Debug().Str("job_id", "j1").Msg("Job claimed")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "j1", entry["job_id"])
	assert.Equal(t, "Job claimed", entry["message"])
}

func TestNewTextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", "", &buf)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("worker_id", "w1").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "worker_id=w1")
}

func TestNewRejectsUnknown(t *testing.T) {
	tests := []struct{ level, format string }{
		{"loud", "text"},
		{"info", "xml"},
	}
	for _, tt := range tests {
		_, err := New(tt.level, tt.format, &bytes.Buffer{})
		assert.True(t, errors.Is(err, types.ErrValidation), "%s/%s", tt.level, tt.format)
	}
}
