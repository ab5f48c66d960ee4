package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxLogSize is the size at which the log file is rotated to <file>.1
const MaxLogSize = 5 << 20

// Options configures Setup
type Options struct {
	Verbosity int
	// File receives JSON lines. Empty disables the file sink.
	File string
	// Console receives human readable lines; nil means os.Stderr.
	Console io.Writer
	NoColor bool
}

// SetupLogger configures the global logger for the CLI: console output on
// stderr plus the log file at logFile.
func SetupLogger(verbosity int, logFile string) {
	Setup(Options{
		Verbosity: verbosity,
		File:      logFile,
		NoColor:   os.Getenv("NO_COLOR") != "",
	})
}

// Setup installs the global logger described by opts
func Setup(opts Options) {
	zerolog.SetGlobalLevel(Level(opts.Verbosity))

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	sinks := []io.Writer{zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.Kitchen,
		NoColor:    opts.NoColor,
	}}

	var fileErr error
	if opts.File != "" {
		var f *os.File
		if f, fileErr = openLogFile(opts.File); fileErr == nil {
			sinks = append(sinks, f)
		}
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(sinks...)).With().Timestamp()
	if opts.Verbosity >= 2 {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()

	if fileErr != nil {
		log.Warn().Err(fileErr).Str("path", opts.File).Msg("Failed to open log file, logging to console only")
	}
	log.Debug().Int("verbosity", opts.Verbosity).Str("logFile", opts.File).Msg("Logger initialized")
}

// Level maps -v counts to zerolog levels. Warnings are always shown.
func Level(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.WarnLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	case verbosity == 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// GetLogger returns a contextualized logger with the given name
func GetLogger(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// openLogFile opens path for appending, rotating it first when it has grown
// past MaxLogSize.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err == nil && info.Size() >= MaxLogSize {
		_ = os.Rename(path, path+".1")
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// LogOperationStart logs the start of an operation and returns a function to log its completion
func LogOperationStart(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().Str("operation", operation).Msg("Operation started")

	return func() {
		logger.Debug().
			Str("operation", operation).
			Dur("duration", time.Since(start)).
			Msg("Operation completed")
	}
}
