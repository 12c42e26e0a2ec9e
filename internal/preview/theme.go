package preview

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

var (
	colorAccent     = color.NRGBA{R: 76, G: 175, B: 80, A: 255} // occupied cell green
	colorBackground = color.NRGBA{R: 12, G: 12, B: 14, A: 255}
	colorWarning    = color.NRGBA{R: 255, G: 152, B: 0, A: 255}
	colorError      = color.NRGBA{R: 229, G: 57, B: 53, A: 255} // player box red
)

// Theme is a dark theme whose accents match the annotation colours
type Theme struct{}

func (t *Theme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary, theme.ColorNameSuccess:
		return colorAccent
	case theme.ColorNameBackground:
		return colorBackground
	case theme.ColorNameWarning:
		return colorWarning
	case theme.ColorNameError:
		return colorError
	default:
		return theme.DefaultTheme().Color(name, theme.VariantDark)
	}
}

func (t *Theme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *Theme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *Theme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		// the grid label is monospace and has to stay square-ish
		return 16
	case theme.SizeNamePadding:
		return 6
	default:
		return theme.DefaultTheme().Size(name)
	}
}
