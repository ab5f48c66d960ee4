package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pterm/pterm"
	"github.com/shaneholloman/dotstate/pkg/errors"
)

const markdownWidth = 80

// humanRenderer writes terminal and plain text output.
type humanRenderer struct {
	out    io.Writer
	theme  *Theme
	styled bool
}

func (r *humanRenderer) RenderResult(result interface{}) error {
	switch v := result.(type) {
	case nil:
		return nil
	case Tabular:
		return r.RenderTable(v.Table())
	case Markdowner:
		return r.RenderMarkdown(v.Markdown())
	case fmt.Stringer:
		return r.RenderMessage(v.String())
	case string:
		return r.RenderMessage(v)
	default:
		return r.RenderMessage(fmt.Sprintf("%+v", v))
	}
}

func (r *humanRenderer) RenderError(err error) error {
	if err == nil {
		return nil
	}
	return writeLine(r.out, r.theme.Error.Render("error:")+" "+errors.UserMessage(err))
}

func (r *humanRenderer) RenderMessage(msg string) error {
	return writeLine(r.out, msg)
}

func (r *humanRenderer) RenderTable(t Table) error {
	if t.Title != "" {
		if err := writeLine(r.out, r.theme.Title.Render(t.Title)); err != nil {
			return err
		}
	}
	if len(t.Rows) == 0 {
		empty := t.Empty
		if empty == "" {
			empty = "(none)"
		}
		return writeLine(r.out, r.theme.Muted.Render(empty))
	}

	data := make(pterm.TableData, 0, len(t.Rows)+1)
	if len(t.Header) > 0 {
		data = append(data, t.Header)
	}
	data = append(data, t.Rows...)

	printer := pterm.DefaultTable.WithHasHeader(len(t.Header) > 0).WithData(data)
	if !r.styled {
		plain := pterm.NewStyle()
		printer = printer.WithStyle(plain).WithHeaderStyle(plain).WithSeparatorStyle(plain)
	}
	rendered, err := printer.Srender()
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to render table")
	}
	return writeLine(r.out, strings.TrimRight(rendered, "\n"))
}

func (r *humanRenderer) RenderMarkdown(md string) error {
	if !r.styled {
		return writeLine(r.out, strings.TrimRight(md, "\n"))
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.theme.Glamour),
		glamour.WithWordWrap(markdownWidth),
	)
	if err != nil {
		// Fall back to plain text
		return writeLine(r.out, strings.TrimRight(md, "\n"))
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return writeLine(r.out, strings.TrimRight(md, "\n"))
	}
	_, err = io.WriteString(r.out, rendered)
	return err
}
