package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_Debug(t *testing.T) {
	logger, err := New("debug")
	if err != nil {
		t.Fatalf("New(debug): %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level not enabled")
	}
}

func TestNew_Warn(t *testing.T) {
	logger, err := New("warn")
	if err != nil {
		t.Fatalf("New(warn): %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info enabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn not enabled at warn level")
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := New("chatty")
	if err != nil {
		t.Fatalf("New(chatty): %v", err)
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info not enabled")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug enabled for unknown level")
	}
}

func TestInstall_ReplacesGlobal(t *testing.T) {
	before := zap.L()
	restore, err := Install("error")
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if zap.L() == before {
		t.Error("global logger was not replaced")
	}
	restore()
	if zap.L() != before {
		t.Error("global logger was not restored")
	}
}
