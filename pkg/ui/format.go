package ui

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/shaneholloman/dotstate/pkg/errors"
)

// Format represents the output format type
type Format int

const (
	// FormatAuto picks terminal or text output from the capabilities of stdout
	FormatAuto Format = iota
	// FormatTerminal renders styled tables and markdown
	FormatTerminal
	// FormatText renders plain text output without any styling
	FormatText
	// FormatJSON renders machine-readable JSON output
	FormatJSON
	// FormatYAML renders machine-readable YAML output
	FormatYAML
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatTerminal:
		return "term"
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// Structured reports whether the format is meant for machines.
func (f Format) Structured() bool {
	return f == FormatJSON || f == FormatYAML
}

// ParseFormat parses a string into a Format value
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return FormatAuto, nil
	case "term", "terminal":
		return FormatTerminal, nil
	case "text", "plain":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return FormatAuto, errors.Newf(errors.ErrInvalidInput, "unknown output format %q (want auto, term, text, json or yaml)", s)
	}
}

// DetectFormat determines the output format from the environment and the
// terminal behind out. env is usually os.Getenv.
func DetectFormat(out *os.File, env func(string) string) Format {
	if env != nil && env("NO_COLOR") != "" {
		return FormatText
	}
	if out == nil {
		return FormatText
	}

	// Piped or redirected
	if !isatty.IsTerminal(out.Fd()) && !isatty.IsCygwinTerminal(out.Fd()) {
		return FormatText
	}

	if termenv.NewOutput(out).ColorProfile() == termenv.Ascii {
		return FormatText
	}
	return FormatTerminal
}

// NoColor reports whether styling must be disabled for this process.
func NoColor(env func(string) string) bool {
	return env != nil && env("NO_COLOR") != ""
}
