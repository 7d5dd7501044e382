// Package log implements leveled key/value logging backed by zap.
package log

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Lvl is a logging verbosity level. Lower values are more severe.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

// traceLevel sits one step below zap's debug level.
const traceLevel = zapcore.DebugLevel - 1

// String returns the short upper case name of the level.
func (l Lvl) String() string {
	switch l {
	case LvlTrace:
		return "TRACE"
	case LvlDebug:
		return "DEBUG"
	case LvlInfo:
		return "INFO"
	case LvlWarn:
		return "WARN"
	case LvlError:
		return "ERROR"
	case LvlCrit:
		return "CRIT"
	default:
		return fmt.Sprintf("LVL(%d)", int(l))
	}
}

// LvlFromString returns the level matching a name such as "info" or "dbug".
func LvlFromString(s string) (Lvl, error) {
	switch strings.ToLower(s) {
	case "trace", "trce":
		return LvlTrace, nil
	case "debug", "dbug":
		return LvlDebug, nil
	case "info":
		return LvlInfo, nil
	case "warn":
		return LvlWarn, nil
	case "error", "eror":
		return LvlError, nil
	case "crit":
		return LvlCrit, nil
	default:
		return LvlDebug, fmt.Errorf("unknown level: %v", s)
	}
}

func (l Lvl) zapLevel() zapcore.Level {
	switch l {
	case LvlTrace:
		return traceLevel
	case LvlDebug:
		return zapcore.DebugLevel
	case LvlInfo:
		return zapcore.InfoLevel
	case LvlWarn:
		return zapcore.WarnLevel
	case LvlError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

// A Logger writes key/value pairs to a Handler
type Logger interface {
	// New returns a new Logger that has this logger's context plus the given context
	New(ctx ...interface{}) Logger

	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})

	// Enabled reports whether records of the given level are emitted.
	Enabled(lvl Lvl) bool
}

type logger struct {
	s *zap.SugaredLogger
}

// NewLogger wraps a zap logger into the key/value Logger interface.
func NewLogger(z *zap.Logger) Logger {
	return &logger{s: z.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// NewNop returns a Logger that discards everything.
func NewNop() Logger {
	return &logger{s: zap.NewNop().Sugar()}
}

func (l *logger) New(ctx ...interface{}) Logger {
	return &logger{s: l.s.With(normalize(ctx)...)}
}

func (l *logger) Trace(msg string, ctx ...interface{}) {
	l.s.Logw(traceLevel, msg, normalize(ctx)...)
}

func (l *logger) Debug(msg string, ctx ...interface{}) {
	l.s.Debugw(msg, normalize(ctx)...)
}

func (l *logger) Info(msg string, ctx ...interface{}) {
	l.s.Infow(msg, normalize(ctx)...)
}

func (l *logger) Warn(msg string, ctx ...interface{}) {
	l.s.Warnw(msg, normalize(ctx)...)
}

func (l *logger) Error(msg string, ctx ...interface{}) {
	l.s.Errorw(msg, normalize(ctx)...)
}

// Crit logs and terminates the process.
func (l *logger) Crit(msg string, ctx ...interface{}) {
	l.s.Fatalw(msg, normalize(ctx)...)
}

func (l *logger) Enabled(lvl Lvl) bool {
	return l.s.Desugar().Core().Enabled(lvl.zapLevel())
}

// normalize returns a copy of ctx with an odd context padded by a nil value
// and non-string keys stringified, so a sloppy call site never turns into a
// zap "invalid pair" record. The caller's slice is left untouched.
func normalize(ctx []interface{}) []interface{} {
	out := make([]interface{}, len(ctx), len(ctx)+1)
	copy(out, ctx)
	if len(out)%2 != 0 {
		out = append(out, nil)
	}
	for i := 0; i < len(out); i += 2 {
		if _, ok := out[i].(string); !ok {
			out[i] = fmt.Sprint(out[i])
		}
	}
	return out
}
