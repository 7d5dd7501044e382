package log

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	root      atomic.Value
	rootLevel = zap.NewAtomicLevelAt(LvlInfo.zapLevel())
)

func init() {
	root.Store(NewLogger(zap.New(terminalCore(os.Stderr, rootLevel))))
}

// Root returns the root logger
func Root() Logger {
	return root.Load().(Logger)
}

// SetDefault replaces the root logger.
func SetDefault(l Logger) {
	root.Store(l)
}

// SetLevel changes the verbosity of the built-in stderr logger and of every
// logger derived from it. Loggers installed with SetDefault are not affected.
func SetLevel(lvl Lvl) {
	rootLevel.SetLevel(lvl.zapLevel())
}

// New returns a new logger with the given context.
// New is a convenient alias for Root().New
func New(ctx ...interface{}) Logger {
	return Root().New(ctx...)
}

// Trace is a convenient alias for Root().Trace
func Trace(msg string, ctx ...interface{}) {
	Root().Trace(msg, ctx...)
}

// Debug is a convenient alias for Root().Debug
func Debug(msg string, ctx ...interface{}) {
	Root().Debug(msg, ctx...)
}

// Info is a convenient alias for Root().Info
func Info(msg string, ctx ...interface{}) {
	Root().Info(msg, ctx...)
}

// Warn is a convenient alias for Root().Warn
func Warn(msg string, ctx ...interface{}) {
	Root().Warn(msg, ctx...)
}

// Error is a convenient alias for Root().Error
func Error(msg string, ctx ...interface{}) {
	Root().Error(msg, ctx...)
}

// Crit is a convenient alias for Root().Crit
func Crit(msg string, ctx ...interface{}) {
	Root().Crit(msg, ctx...)
}
