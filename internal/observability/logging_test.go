package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       LogConfig
		expectErr bool
	}{
		{
			name:      "default config",
			cfg:       DefaultLogConfig(),
			expectErr: false,
		},
		{
			name:      "console format",
			cfg:       LogConfig{Level: "debug", Format: "console", Output: "stderr"},
			expectErr: false,
		},
		{
			name:      "invalid level",
			cfg:       LogConfig{Level: "shouting"},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestLoggerWith(t *testing.T) {
	logger := NopLogger()

	child := logger.With(String("component", "auth"))
	assert.NotNil(t, child)

	// Logging on the child must not panic.
	child.Info("test message", Int("count", 1))
	child.Warn("warn message")
	child.Error("error message", Error(assert.AnError))
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = ContextWithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))

	logger := NopLogger().WithContext(ctx)
	assert.NotNil(t, logger)
}

func TestNopLoggerSync(t *testing.T) {
	assert.NoError(t, NopLogger().Sync())
}
