// Package ui renders command results for people and for machines.
//
// Terminal output uses pterm tables, glamour markdown and lipgloss styles from
// the active Theme. Text output carries the same content without styling. JSON
// and YAML output encode result values directly.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/shaneholloman/dotstate/pkg/errors"
)

// Renderer is the common interface for all output renderers.
type Renderer interface {
	// RenderResult renders a command result. Human renderers use Table,
	// Markdown or String when the value provides them.
	RenderResult(result interface{}) error

	// RenderError renders an error with appropriate formatting
	RenderError(err error) error

	// RenderMessage renders a simple message
	RenderMessage(msg string) error

	RenderTable(t Table) error
	RenderMarkdown(md string) error
}

// Table is a titled grid of strings.
type Table struct {
	Title  string     `json:"title,omitempty" yaml:"title,omitempty"`
	Header []string   `json:"header" yaml:"header"`
	Rows   [][]string `json:"rows" yaml:"rows"`
	// Empty is printed instead of the grid when there are no rows.
	Empty string `json:"-" yaml:"-"`
}

// Tabular results render as a table in human formats.
type Tabular interface {
	Table() Table
}

// Markdowner results render as markdown in human formats.
type Markdowner interface {
	Markdown() string
}

// NewRenderer creates a renderer for format writing to output. FormatAuto is
// resolved against output when it is a terminal file.
func NewRenderer(format Format, output io.Writer, theme *Theme) (Renderer, error) {
	if theme == nil {
		theme = PlainTheme()
	}
	switch format {
	case FormatAuto:
		if file, ok := output.(*os.File); ok {
			return NewRenderer(DetectFormat(file, os.Getenv), output, theme)
		}
		return NewRenderer(FormatTerminal, output, theme)
	case FormatTerminal:
		return &humanRenderer{out: output, theme: theme, styled: !theme.NoColor}, nil
	case FormatText:
		return &humanRenderer{out: output, theme: PlainTheme(), styled: false}, nil
	case FormatJSON, FormatYAML:
		return &encodedRenderer{out: output, format: format}, nil
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown format: %v", format)
	}
}

// errorPayload is the structured form of an error.
type errorPayload struct {
	Error   string                 `json:"error" yaml:"error"`
	Code    string                 `json:"code,omitempty" yaml:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
}

func newErrorPayload(err error) errorPayload {
	p := errorPayload{Error: errors.UserMessage(err), Details: errors.GetErrorDetails(err)}
	if code := errors.GetErrorCode(err); code != errors.ErrUnknown {
		p.Code = string(code)
	}
	return p
}

func writeLine(w io.Writer, s string) error {
	_, err := fmt.Fprintln(w, s)
	return err
}
