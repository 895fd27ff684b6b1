package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		verbose bool
		debugOn bool
		warnOn  bool
	}{
		{verbose: true, debugOn: true, warnOn: true},
		{verbose: false, debugOn: false, warnOn: true},
	}

	for _, tt := range tests {
		log, err := New(tt.verbose)
		if err != nil {
			t.Fatalf("New(%v) error: %v", tt.verbose, err)
		}
		if got := log.Core().Enabled(zapcore.DebugLevel); got != tt.debugOn {
			t.Errorf("New(%v): debug enabled = %v, want %v", tt.verbose, got, tt.debugOn)
		}
		if got := log.Core().Enabled(zapcore.WarnLevel); got != tt.warnOn {
			t.Errorf("New(%v): warn enabled = %v, want %v", tt.verbose, got, tt.warnOn)
		}
	}
}

func TestNop(t *testing.T) {
	if Nop().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("Nop logger should not enable any level")
	}
}
