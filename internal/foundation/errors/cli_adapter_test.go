package errors

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"unclassified", errors.New("boom"), 1},
		{"validation", ValidationError("bad flag").Build(), 2},
		{"config", ConfigError("missing site name").Build(), 7},
		{"datasource", DataSourceError("clone failed").Build(), 8},
		{"git", GitError("pull failed").Build(), 8},
		{"network", NewError(CategoryNetwork, "dial").Build(), 8},
		{"enumeration", EnumerationError("collision").Build(), 9},
		{"content", ContentError("render").Build(), 11},
		{"filesystem", FileSystemError("write").Build(), 11},
		{"daemon", DaemonError("scheduler").Build(), 12},
		{"internal", InternalError("bug").Build(), 10},
		{"wrapped classified", fmt.Errorf("run: %w", EnumerationError("collision").Build()), 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)
	verbose := NewCLIErrorAdapter(true, nil)

	cause := errors.New("no such file")
	err := WrapError(cause, CategoryConfig, "load config").Build()

	assert.Equal(t, "", quiet.FormatError(nil))
	assert.Equal(t, "Error: load config: no such file", quiet.FormatError(err))
	assert.Equal(t, err.Error(), verbose.FormatError(err))
	assert.Equal(t, "Error: site name required", quiet.FormatError(ConfigError("site name required").Build()))
	assert.Equal(t, "Internal error occurred (use -v for details)", quiet.FormatError(InternalError("bug").Build()))
	assert.Equal(t, "Error: plain", quiet.FormatError(errors.New("plain")))
}

func TestCLIErrorAdapter_ShouldLog(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)

	assert.True(t, quiet.shouldLog(ConfigError("x").Build()))
	assert.False(t, quiet.shouldLog(ContentError("x").Build()))
	assert.True(t, quiet.shouldLog(errors.New("plain")))
	assert.True(t, NewCLIErrorAdapter(true, nil).shouldLog(ContentError("x").Build()))
}
