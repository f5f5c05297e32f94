// internal/logger/logger.go
package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Colors for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// Format selects the log encoding.
type Format string

const (
	FormatPretty Format = "pretty"
	FormatJSON   Format = "json"
)

func prettyEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "",
		StacktraceKey:  "",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    customLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// customLevelEncoder formats log levels with colors
func customLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString(fmt.Sprintf("%s[DEBUG]%s", ColorCyan, ColorReset))
	case zapcore.InfoLevel:
		enc.AppendString(fmt.Sprintf("%s[INFO]%s", ColorGreen, ColorReset))
	case zapcore.WarnLevel:
		enc.AppendString(fmt.Sprintf("%s[WARN]%s", ColorYellow, ColorReset))
	case zapcore.ErrorLevel:
		enc.AppendString(fmt.Sprintf("%s[ERROR]%s", ColorRed, ColorReset))
	case zapcore.FatalLevel:
		enc.AppendString(fmt.Sprintf("%s[FATAL]%s", ColorRed+ColorBold, ColorReset))
	default:
		enc.AppendString(fmt.Sprintf("[%s]", level.CapitalString()))
	}
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05"))
}

// Options configures the process logger.
type Options struct {
	Format Format
	Debug  bool

	// File, when set, receives JSON logs rotated by size.
	File       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// New builds the process logger. Pretty output is meant for a terminal,
// JSON for anything that ships logs elsewhere.
func New(opts Options) (*zap.Logger, error) {
	level := zap.InfoLevel
	if opts.Debug {
		level = zap.DebugLevel
	}

	var console zapcore.Core
	switch opts.Format {
	case FormatJSON:
		console = zapcore.NewCore(
			zapcore.NewJSONEncoder(jsonEncoderConfig()),
			zapcore.AddSync(zapcore.Lock(os.Stdout)),
			level,
		)
	case FormatPretty, "":
		console = &PrettyCore{core: zapcore.NewCore(
			zapcore.NewConsoleEncoder(prettyEncoderConfig()),
			zapcore.AddSync(zapcore.Lock(os.Stdout)),
			level,
		)}
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	if opts.File == "" {
		return zap.New(console), nil
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	file := zapcore.NewCore(zapcore.NewJSONEncoder(jsonEncoderConfig()), zapcore.AddSync(rotator), level)

	return zap.New(zapcore.NewTee(console, file), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}

// FormatMessage rewrites well-known protocol messages into a short
// human-readable line. Unknown messages are returned unchanged.
func FormatMessage(msg string, fields []zapcore.Field) string {
	switch {
	case strings.Contains(msg, "Token created"):
		symbol := extractField(fields, "symbol")
		mint := extractField(fields, "address")
		return fmt.Sprintf("%s🪙 Token %s created at %s%s", ColorGreen, symbol, shortenAddress(mint), ColorReset)

	case strings.Contains(msg, "Buy executed"):
		return fmt.Sprintf("%s📈 Buy: %s in, %s tokens out (token #%s)%s", ColorCyan,
			extractField(fields, "settlement_in"), extractField(fields, "tokens_out"),
			extractField(fields, "token"), ColorReset)

	case strings.Contains(msg, "Sell executed"):
		return fmt.Sprintf("%s📉 Sell: %s tokens in, %s out (token #%s)%s", ColorCyan,
			extractField(fields, "tokens_in"), extractField(fields, "settlement_out"),
			extractField(fields, "token"), ColorReset)

	case strings.Contains(msg, "Token migrated to pool"):
		pool := extractField(fields, "pool")
		return fmt.Sprintf("%s🚀 Token #%s migrated to pool %s%s", ColorPurple+ColorBold,
			extractField(fields, "token"), shortenAddress(pool), ColorReset)

	case strings.Contains(msg, "Migration blocked"):
		return fmt.Sprintf("%s⛔ Migration of token #%s blocked: pool address not configured%s", ColorRed,
			extractField(fields, "token"), ColorReset)

	case strings.Contains(msg, "Network is stale"), strings.Contains(msg, "Network liveness check failed"):
		return fmt.Sprintf("%s⚠ %s%s", ColorYellow, msg, ColorReset)

	case strings.Contains(msg, "HTTP server listening"):
		return fmt.Sprintf("%s🌐 API listening on %s%s", ColorBlue, extractField(fields, "addr"), ColorReset)

	default:
		return msg
	}
}

func extractField(fields []zapcore.Field, key string) string {
	for _, field := range fields {
		if field.Key != key {
			continue
		}
		switch field.Type {
		case zapcore.StringType:
			return field.String
		case zapcore.Uint64Type, zapcore.Int64Type, zapcore.Uint32Type, zapcore.Int32Type:
			return fmt.Sprintf("%d", field.Integer)
		default:
			return fmt.Sprintf("%v", field.Interface)
		}
	}
	return ""
}

func shortenAddress(addr string) string {
	if len(addr) > 8 {
		return addr[:4] + "..." + addr[len(addr)-4:]
	}
	return addr
}

// PrettyCore wraps a console core: known messages are rewritten with
// FormatMessage and their fields dropped, everything else passes through.
type PrettyCore struct {
	core zapcore.Core
}

func (c *PrettyCore) Enabled(level zapcore.Level) bool {
	return c.core.Enabled(level)
}

func (c *PrettyCore) With(fields []zapcore.Field) zapcore.Core {
	return &PrettyCore{core: c.core.With(fields)}
}

func (c *PrettyCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *PrettyCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	pretty := FormatMessage(entry.Message, fields)
	if pretty == entry.Message {
		return c.core.Write(entry, fields)
	}
	entry.Message = pretty
	return c.core.Write(entry, nil)
}

func (c *PrettyCore) Sync() error {
	return c.core.Sync()
}
