package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name   string
		msg    string
		fields []zapcore.Field
		want   []string
	}{
		{
			name:   "token created",
			msg:    "Token created",
			fields: []zapcore.Field{zap.String("symbol", "DOGE2"), zap.String("address", "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")},
			want:   []string{"DOGE2", "9xQe...VFin"},
		},
		{
			name:   "buy",
			msg:    "Buy executed",
			fields: []zapcore.Field{zap.Uint64("settlement_in", 1000), zap.Uint64("tokens_out", 497487), zap.Uint64("token", 3)},
			want:   []string{"1000 in", "497487 tokens out", "#3"},
		},
		{
			name:   "migration blocked",
			msg:    "Migration blocked, pool address not configured",
			fields: []zapcore.Field{zap.Uint64("token", 5)},
			want:   []string{"#5", "pool address not configured"},
		},
		{
			name:   "listening",
			msg:    "HTTP server listening",
			fields: []zapcore.Field{zap.String("addr", ":8080")},
			want:   []string{":8080"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatMessage(tt.msg, tt.fields)
			assert.NotEqual(t, tt.msg, got)
			for _, part := range tt.want {
				assert.Contains(t, got, part)
			}
		})
	}

	assert.Equal(t, "Something else", FormatMessage("Something else", nil))
}

func TestPrettyCoreDropsFieldsOfRewrittenMessages(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(&PrettyCore{core: inner})

	log.Info("Buy executed", zap.Uint64("settlement_in", 10), zap.Uint64("tokens_out", 20), zap.Uint64("token", 0))
	log.Info("Plain message", zap.String("k", "v"))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].Message, "20 tokens out")
	assert.Empty(t, entries[0].Context)
	assert.Equal(t, "Plain message", entries[1].Message)
	assert.Len(t, entries[1].Context, 1)
}

func TestNewWritesRotatedJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launchpad.log")
	log, err := New(Options{Format: FormatJSON, File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Info("Protocol state initialized", zap.String("admin", "x"))
	log.Debug("hidden")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Protocol state initialized"`)
	assert.Contains(t, string(data), `"admin":"x"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	assert.Error(t, err)
}
