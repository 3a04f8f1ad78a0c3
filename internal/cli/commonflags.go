package cli

import (
	"flag"
	"fmt"
	"log/slog"
	"strings"
)

func addLogLevelFlag(flags *flag.FlagSet) {
	if flags.Lookup("log-level") != nil {
		return
	}

	level := logLevelFlag("INFO")
	flags.Var(&level, "log-level", "set the log level")
}

type logLevelFlag string

func (f *logLevelFlag) Set(s string) error {
	var level slog.Level

	s = strings.ToUpper(s)

	switch s {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		return fmt.Errorf("unsupported log level %q provided. supported log levels are DEBUG, INFO, WARN, ERROR", s)
	}

	slog.SetLogLoggerLevel(level)
	*f = logLevelFlag(s)

	return nil
}

func (f *logLevelFlag) String() string {
	if f == nil {
		return ""
	}

	return string(*f)
}
