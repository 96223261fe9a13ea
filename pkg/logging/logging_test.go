package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerHidesKeys(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, nil))
	log.Info("3 pulses", "module", "analysis", "file", "a.npz")

	line := buf.String()
	assert.Regexp(t, regexp.MustCompile(`^\[\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}\] \[analysis\] \[a\.npz\] 3 pulses\n$`), line)
	assert.NotContains(t, line, "module=")
}

func TestHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	log.Info("dropped")
	assert.Empty(t, buf.String())
	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, nil)).With("worker", 2)
	log.Info("done")
	assert.Contains(t, buf.String(), "done")
}

func TestLoggerStreams(t *testing.T) {
	var info, errs bytes.Buffer
	logger := New(&info, &errs, slog.LevelDebug)

	logger.Info("limits computed", "limits")
	logger.Error("cannot open file")

	assert.Contains(t, info.String(), "[limits] limits computed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(errs.Bytes(), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "cannot open file", record["msg"])
}
