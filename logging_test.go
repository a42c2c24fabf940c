package scenegeom

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestZapLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := newZapLogger(LoggingSettings{Level: "info"}, zapcore.AddSync(&buf))

	l.Debugf("hidden %d", 1)
	l.Infof("uploaded %d models", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "INFO")
	assert.Contains(t, buf.String(), "uploaded 2 models")
	assert.False(t, l.DebugEnabled())

	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
	l.Debugf("visible %d", 3)
	assert.Contains(t, buf.String(), "visible 3")

	l.SetDebug(false)
	assert.False(t, l.DebugEnabled())
}

func TestZapLoggerWarnLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newZapLogger(LoggingSettings{Level: "warn"}, zapcore.AddSync(&buf))
	l.Infof("quiet")
	l.Warnf("loud")
	l.Errorf("louder")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "ERROR")
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.SetDebug(true)
	assert.False(t, l.DebugEnabled())
	l.Errorf("dropped")
}
