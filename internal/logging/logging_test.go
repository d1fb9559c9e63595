package logging

import (
	"testing"

	"github.com/veldt-engine/veldt/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("Console", func(t *testing.T) {
		log, err := New(config.LoggingConfig{Level: "debug", Format: "console"})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer log.Sync()
		if !log.Core().Enabled(-1) { // zapcore.DebugLevel
			t.Error("debug level should be enabled")
		}
	})

	t.Run("JSON", func(t *testing.T) {
		log, err := New(config.LoggingConfig{Level: "warn", Format: "json"})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer log.Sync()
		if log.Core().Enabled(0) { // zapcore.InfoLevel
			t.Error("info should be disabled at warn level")
		}
	})

	t.Run("InvalidLevelFallsBackToInfo", func(t *testing.T) {
		log, err := New(config.LoggingConfig{Level: "loud", Format: "console"})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer log.Sync()
		if log.Core().Enabled(-1) {
			t.Error("debug should be disabled at the info fallback")
		}
		if !log.Core().Enabled(0) {
			t.Error("info should be enabled at the info fallback")
		}
	})
}
