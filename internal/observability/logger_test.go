package observability_test

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lensvault/lensvault/internal/observability"
)

type recordingLogger struct {
	debugs int
	infos  int
	errors int
}

func (r *recordingLogger) Debug(string, ...observability.Field) { r.debugs++ }
func (r *recordingLogger) Info(string, ...observability.Field)  { r.infos++ }
func (r *recordingLogger) Error(string, ...observability.Field) { r.errors++ }

func TestSetLoggerOverridesGlobal(t *testing.T) {
	recorder := new(recordingLogger)
	observability.SetLogger(recorder)
	defer observability.SetLogger(nil)

	observability.Log().Debug("test")
	require.Equal(t, 1, recorder.debugs)

	observability.SetLogger(nil)
	observability.Log().Info("noop")
	require.Equal(t, 0, recorder.infos)
}

func TestStdLoggerRendersFields(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewStdLogger(log.New(&buf, "", 0), false)

	logger.Info("record resolved",
		observability.Field{Key: "uuid", Value: "ab12"},
		observability.Field{Key: "sources", Value: 2})
	require.Contains(t, buf.String(), "INFO record resolved uuid=ab12 sources=2")

	buf.Reset()
	logger.Debug("hidden")
	require.Empty(t, buf.String())

	buf.Reset()
	debugLogger := observability.NewStdLogger(log.New(&buf, "", 0), true)
	debugLogger.Debug("shown")
	require.Contains(t, buf.String(), "DEBUG shown")

	buf.Reset()
	logger.Error("lookup failed")
	require.Contains(t, buf.String(), "ERROR lookup failed")
}
