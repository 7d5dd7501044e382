package log

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var levelNames = map[zapcore.Level]string{
	traceLevel:          "TRACE",
	zapcore.DebugLevel:  "DEBUG",
	zapcore.InfoLevel:   "INFO",
	zapcore.WarnLevel:   "WARN",
	zapcore.ErrorLevel:  "ERROR",
	zapcore.DPanicLevel: "CRIT",
	zapcore.PanicLevel:  "CRIT",
	zapcore.FatalLevel:  "CRIT",
}

var levelColors = map[zapcore.Level]string{
	traceLevel:         "\x1b[34m",
	zapcore.DebugLevel: "\x1b[36m",
	zapcore.InfoLevel:  "\x1b[32m",
	zapcore.WarnLevel:  "\x1b[33m",
	zapcore.ErrorLevel: "\x1b[31m",
	zapcore.FatalLevel: "\x1b[35m",
}

func plainLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	name, ok := levelNames[l]
	if !ok {
		name = l.CapitalString()
	}
	enc.AppendString(name)
}

func colorLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	name, ok := levelNames[l]
	if !ok {
		name = l.CapitalString()
	}
	if c, ok := levelColors[l]; ok {
		name = c + name + "\x1b[0m"
	}
	enc.AppendString(name)
}

// NewTerminalLogger returns a human readable logger writing to w. Level names are
// colored when w is a terminal.
func NewTerminalLogger(w io.Writer, lvl Lvl) Logger {
	return NewLogger(zap.New(terminalCore(w, zap.NewAtomicLevelAt(lvl.zapLevel()))))
}

func terminalCore(w io.Writer, level zap.AtomicLevel) zapcore.Core {
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		if useColor {
			w = colorable.NewColorable(f)
		}
	}
	return newCore(w, level, useColor)
}

// NewJSONLogger returns a logger emitting one JSON object per record.
func NewJSONLogger(w io.Writer, lvl Lvl) Logger {
	cfg := encoderConfig()
	cfg.EncodeLevel = plainLevel
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(w), zap.NewAtomicLevelAt(lvl.zapLevel()))
	return NewLogger(zap.New(core))
}

func newCore(w io.Writer, level zap.AtomicLevel, useColor bool) zapcore.Core {
	cfg := encoderConfig()
	if useColor {
		cfg.EncodeLevel = colorLevel
	}
	return zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(w), level)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "t",
		LevelKey:         "lvl",
		MessageKey:       "msg",
		NameKey:          "logger",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      plainLevel,
		EncodeTime:       zapcore.TimeEncoderOfLayout("01-02|15:04:05.000"),
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}
