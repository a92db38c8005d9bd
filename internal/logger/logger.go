// Package logger builds the zerolog loggers of the annotab command.
package logger

import (
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	l := New(os.Stdout, Options{})
	zerolog.DefaultContextLogger = &l
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		function := ""
		fun := runtime.FuncForPC(pc)
		if fun != nil {
			funName := fun.Name()
			slash := strings.LastIndex(funName, "/")
			if slash > 0 {
				funName = funName[slash+1:]
			}
			function = " " + funName + "()"
		}
		return file + ":" + strconv.Itoa(line) + function
	}
}

// Options select the level and output format. PRETTY=1 and DEBUG=1 in the
// environment force console output and debug level.
type Options struct {
	Level  string
	Pretty bool
}

// New returns a logger writing JSON lines to w.
func New(w io.Writer, opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "time"

	if opts.Pretty || os.Getenv("PRETTY") == "1" {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	logger := zerolog.New(w).With().Timestamp().Logger()
	logger = logger.Hook(CallerHook{})

	level := ParseLevel(opts.Level)
	if os.Getenv("DEBUG") == "1" {
		level = zerolog.DebugLevel
	}
	return logger.Level(level)
}

// ParseLevel maps a level name to a zerolog level, info when unknown.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

type CallerHook struct{}

func (h CallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Caller(3)
}
