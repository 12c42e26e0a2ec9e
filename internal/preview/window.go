// Package preview shows the annotated capture and the current grid while a
// session records.
package preview

import (
	"fmt"
	"image"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"jordanella.com/runner-collector/internal/cv"
	"jordanella.com/runner-collector/internal/session"
)

// DefaultWindowSize fits the thumbnail plus the grid panel
var DefaultWindowSize = fyne.NewSize(520, 620)

const thumbnailHeight = 480

// Window is a session.FrameObserver backed by a fyne window
type Window struct {
	app    fyne.App
	win    fyne.Window
	frame  *canvas.Image
	grid   *widget.Label
	status *widget.Label
	alert  *widget.Label
}

// New builds the window. onClose runs when the user closes it.
func New(title string, onClose func()) *Window {
	a := app.NewWithID("com.jordanella.runner-collector")
	a.Settings().SetTheme(&Theme{})
	w := &Window{
		app:    a,
		win:    a.NewWindow(title),
		frame:  canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1))),
		grid:   widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Monospace: true}),
		status: widget.NewLabel("Waiting for calibration clicks"),
		alert:  widget.NewLabel(""),
	}
	w.alert.Importance = widget.DangerImportance
	w.alert.Hide()
	w.frame.FillMode = canvas.ImageFillContain
	w.frame.SetMinSize(fyne.NewSize(280, thumbnailHeight))

	header := widget.NewLabelWithStyle("Runner Collector", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	w.win.SetContent(container.NewBorder(
		header,
		container.NewVBox(w.grid, w.status, w.alert),
		nil, nil,
		w.frame,
	))
	w.win.Resize(DefaultWindowSize)
	w.win.SetOnClosed(func() {
		if onClose != nil {
			onClose()
		}
	})
	return w
}

// ShowFrame implements session.FrameObserver. The UI update is queued on the
// fyne goroutine so the collection loop never waits on rendering.
func (w *Window) ShowFrame(update session.FrameUpdate) {
	var thumb image.Image
	if update.Image != nil {
		thumb = cv.Thumbnail(update.Image, thumbnailHeight)
	}
	gridText := FormatGrid(update.Grid)
	status := StatusLine(update)

	fyne.Do(func() {
		if thumb != nil {
			w.frame.Image = thumb
			w.frame.Refresh()
		}
		w.grid.SetText(gridText)
		w.status.SetText(status)
	})
}

// ShowError puts the latest pipeline error under the status line. Safe from any goroutine.
func (w *Window) ShowError(message string) {
	text := AlertLine(message)
	fyne.Do(func() {
		w.alert.SetText(text)
		w.alert.Show()
	})
}

// Run shows the window and blocks until the app quits. Must be called from main.
func (w *Window) Run() {
	w.win.ShowAndRun()
}

// Quit closes the window from any goroutine
func (w *Window) Quit() {
	fyne.Do(func() {
		w.app.Quit()
	})
}

// FormatGrid renders the grid farthest row first, so it reads like the screen
func FormatGrid(grid cv.OccupancyGrid) string {
	if len(grid) == 0 {
		return ""
	}
	lines := make([]string, 0, len(grid))
	for i := len(grid) - 1; i >= 0; i-- {
		var b strings.Builder
		for _, v := range grid[i] {
			if v != 0 {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

// StatusLine summarizes one update
func StatusLine(update session.FrameUpdate) string {
	player := "player ok"
	if !update.PlayerFound {
		player = "player missing"
	}
	action := "idle"
	if update.Action {
		action = "JUMP"
	}
	line := fmt.Sprintf("frame %d | samples %d | %s | %s", update.Frame, update.Samples, player, action)
	if update.GameOver {
		line += " | game over"
	}
	return line
}

// AlertLine shortens an error message to one line
func AlertLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		message = message[:i]
	}
	const max = 80
	if len(message) > max {
		message = message[:max-3] + "..."
	}
	return "error: " + message
}
