package theme

import "github.com/charmbracelet/lipgloss"

// Palette is a named set of colors. Dark is Catppuccin Mocha, light is Latte.
type Palette struct {
	Name     string
	Base     lipgloss.Color
	Mantle   lipgloss.Color
	Surface0 lipgloss.Color
	Surface1 lipgloss.Color
	Text     lipgloss.Color
	Subtext0 lipgloss.Color
	Lavender lipgloss.Color
	Sapphire lipgloss.Color
	Green    lipgloss.Color
	Peach    lipgloss.Color
}

var (
	Dark = Palette{
		Name:     "dark",
		Base:     "#1e1e2e",
		Mantle:   "#181825",
		Surface0: "#313244",
		Surface1: "#45475a",
		Text:     "#cdd6f4",
		Subtext0: "#a6adc8",
		Lavender: "#b4befe",
		Sapphire: "#74c7ec",
		Green:    "#a6e3a1",
		Peach:    "#fab387",
	}
	Light = Palette{
		Name:     "light",
		Base:     "#eff1f5",
		Mantle:   "#e6e9ef",
		Surface0: "#ccd0da",
		Surface1: "#bcc0cc",
		Text:     "#4c4f69",
		Subtext0: "#6c6f85",
		Lavender: "#7287fd",
		Sapphire: "#209fb5",
		Green:    "#40a02b",
		Peach:    "#fe640b",
	}
)

var (
	Base     lipgloss.Color
	Mantle   lipgloss.Color
	Surface0 lipgloss.Color
	Surface1 lipgloss.Color
	Text     lipgloss.Color
	Subtext0 lipgloss.Color
	Lavender lipgloss.Color
	Sapphire lipgloss.Color
	Green    lipgloss.Color
	Peach    lipgloss.Color

	App        lipgloss.Style
	Pane       lipgloss.Style
	PaneActive lipgloss.Style
	Title      lipgloss.Style
	Muted      lipgloss.Style
	Hot        lipgloss.Style
	Good       lipgloss.Style

	current = Dark
)

func init() {
	apply(Dark)
}

// Lookup returns the palette registered under name.
func Lookup(name string) (Palette, bool) {
	switch name {
	case Dark.Name:
		return Dark, true
	case Light.Name:
		return Light, true
	}
	return Palette{}, false
}

// Use switches the package styles to the named palette. Unknown names are
// ignored and reported as false. Must be called from the UI goroutine.
func Use(name string) bool {
	p, ok := Lookup(name)
	if !ok {
		return false
	}
	apply(p)
	return true
}

// Current is the name of the active palette; it doubles as the glamour style.
func Current() string { return current.Name }

func apply(p Palette) {
	current = p
	Base, Mantle = p.Base, p.Mantle
	Surface0, Surface1 = p.Surface0, p.Surface1
	Text, Subtext0 = p.Text, p.Subtext0
	Lavender, Sapphire = p.Lavender, p.Sapphire
	Green, Peach = p.Green, p.Peach

	App = lipgloss.NewStyle().
		Background(Base).
		Foreground(Text).
		Padding(1, 2)

	Pane = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Background(Mantle).
		Foreground(Text).
		Padding(1)

	PaneActive = Pane.BorderForeground(Lavender)

	Title = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Muted = lipgloss.NewStyle().Foreground(Subtext0)
	Hot = lipgloss.NewStyle().Foreground(Peach).Bold(true)
	Good = lipgloss.NewStyle().Foreground(Green)
}
