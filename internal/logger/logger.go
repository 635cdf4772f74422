// Package logger はslogのロガーを設定に従って生成する。
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel はログレベルの文字列をslog.Levelに変換する。
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("未知のログレベル: %q", level)
	}
}

// New はformatとlevelに従ってwに書き込むロガーを生成する。
// formatが "json" の場合はJSON形式、それ以外はテキスト形式で出力する。
func New(w io.Writer, format, level string) (*slog.Logger, error) {
	lv, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     lv,
		AddSource: lv == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("未知のログ形式: %q", format)
	}

	return slog.New(handler).With(slog.String("service", "notification")), nil
}

// Setup はロガーを生成し、slogのデフォルトに設定する。
func Setup(w io.Writer, format, level string) (*slog.Logger, error) {
	l, err := New(w, format, level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return l, nil
}
