package ui

import (
	"context"
	_ "embed"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	ThemeDark    = "dark"
	ThemeLight   = "light"
	ThemeNoColor = "nocolor"
)

//go:embed embedded/themes.yaml
var themesYAML []byte

type themeFile struct {
	Themes map[string]themeDef `yaml:"themes"`
}

type themeDef struct {
	Glamour string            `yaml:"glamour"`
	Colors  map[string]string `yaml:"colors"`
}

// Theme holds the styles used by the terminal renderer.
type Theme struct {
	Name    string
	NoColor bool
	// Glamour is the glamour standard style name used for markdown.
	Glamour string

	Title   lipgloss.Style
	Primary lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
}

// ThemeNames lists the embedded theme names.
func ThemeNames() ([]string, error) {
	defs, err := loadThemeDefs()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LoadTheme returns the named embedded theme. An empty name selects the dark
// theme and noColor forces the nocolor theme regardless of name.
func LoadTheme(name string, noColor bool) (*Theme, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = ThemeDark
	}
	if noColor {
		name = ThemeNoColor
	}

	defs, err := loadThemeDefs()
	if err != nil {
		return nil, err
	}
	def, ok := defs[name]
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown theme %q", name).
			WithDetail("theme", name)
	}
	return buildTheme(name, def), nil
}

// PlainTheme is the unstyled theme, usable without touching the embedded data.
func PlainTheme() *Theme {
	return buildTheme(ThemeNoColor, themeDef{Glamour: "notty"})
}

func loadThemeDefs() (map[string]themeDef, error) {
	var tf themeFile
	if err := yaml.Unmarshal(themesYAML, &tf); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "embedded themes are invalid")
	}
	return tf.Themes, nil
}

func buildTheme(name string, def themeDef) *Theme {
	t := &Theme{
		Name:    name,
		NoColor: len(def.Colors) == 0,
		Glamour: def.Glamour,
	}
	if t.Glamour == "" {
		t.Glamour = "notty"
	}

	color := func(key string) lipgloss.Style {
		s := lipgloss.NewStyle()
		if c, ok := def.Colors[key]; ok && c != "" {
			s = s.Foreground(lipgloss.Color(c))
		}
		return s
	}

	t.Primary = color("primary")
	t.Success = color("success")
	t.Warning = color("warning")
	t.Error = color("error").Bold(!t.NoColor)
	t.Info = color("info")
	t.Muted = color("muted")
	t.Title = color("heading").Bold(!t.NoColor)
	return t
}

type themeKey struct{}

// WithTheme returns a context carrying theme.
func WithTheme(ctx context.Context, theme *Theme) context.Context {
	return context.WithValue(ctx, themeKey{}, theme)
}

// ThemeFrom returns the theme stored on ctx, or the plain theme.
func ThemeFrom(ctx context.Context) *Theme {
	if ctx != nil {
		if t, ok := ctx.Value(themeKey{}).(*Theme); ok && t != nil {
			return t
		}
	}
	return PlainTheme()
}
