package logx

import (
	"testing"

	logging "github.com/ipfs/go-log/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"go.uber.org/zap"
)

var _ logger.Logger = (*WailsLogger)(nil)

func TestSetup(t *testing.T) {
	require.NoError(t, Setup("debug", "plain"))
	require.NoError(t, Setup("INFO", "json"))
	assert.Error(t, Setup("chatty", "plain"))
}

func TestSetupAppliesLevelToSubsystems(t *testing.T) {
	require.NoError(t, Setup("debug", "plain"))
	for _, sub := range Subsystems {
		core := logging.Logger(sub).Desugar().Core()
		assert.True(t, core.Enabled(zap.DebugLevel), sub)
	}

	require.NoError(t, Setup(" Warn ", "plain"))
	for _, sub := range Subsystems {
		core := logging.Logger(sub).Desugar().Core()
		assert.False(t, core.Enabled(zap.InfoLevel), sub)
		assert.True(t, core.Enabled(zap.WarnLevel), sub)
	}
}

func TestWailsLoggerDoesNotPanic(t *testing.T) {
	require.NoError(t, Setup("error", "plain"))
	l := NewWailsLogger()
	l.Print("print")
	l.Trace("trace")
	l.Debug("debug")
	l.Info("info")
	l.Warning("warning")
	l.Error("error")
	l.Fatal("fatal")
}
