package ui

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// encodedRenderer writes JSON or YAML documents, one per call.
type encodedRenderer struct {
	out    io.Writer
	format Format
}

func (r *encodedRenderer) encode(v interface{}) error {
	if r.format == FormatYAML {
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *encodedRenderer) RenderResult(result interface{}) error {
	return r.encode(result)
}

func (r *encodedRenderer) RenderError(err error) error {
	if err == nil {
		return nil
	}
	return r.encode(newErrorPayload(err))
}

func (r *encodedRenderer) RenderMessage(msg string) error {
	return r.encode(map[string]string{"message": msg})
}

func (r *encodedRenderer) RenderTable(t Table) error {
	if t.Rows == nil {
		t.Rows = [][]string{}
	}
	return r.encode(t)
}

func (r *encodedRenderer) RenderMarkdown(md string) error {
	return r.encode(map[string]string{"markdown": md})
}
