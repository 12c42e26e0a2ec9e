//go:build windows

package input

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/moutend/go-hook/pkg/keyboard"
	"github.com/moutend/go-hook/pkg/mouse"
	"github.com/moutend/go-hook/pkg/types"

	"jordanella.com/runner-collector/internal/logging"
)

// HookSource feeds global mouse clicks and the stop key into a Listener
type HookSource struct {
	listener *Listener
	stopKey  types.VKCode
	logger   *logging.Logger
}

// NewHookSource creates a hook source; stopKey is a single letter or digit
func NewHookSource(l *Listener, stopKey string) (*HookSource, error) {
	if len(stopKey) != 1 {
		return nil, fmt.Errorf("stop key must be one character, got %q", stopKey)
	}
	return &HookSource{
		listener: l,
		stopKey:  types.VKCode(strings.ToUpper(stopKey)[0]),
		logger:   logging.NewLogger("HookSource"),
	}, nil
}

// Run installs the low-level hooks and forwards events until ctx is done
func (h *HookSource) Run(ctx context.Context) error {
	keyboardChan := make(chan types.KeyboardEvent, 100)
	mouseChan := make(chan types.MouseEvent, 100)

	if err := keyboard.Install(nil, keyboardChan); err != nil {
		return fmt.Errorf("failed to install keyboard hook: %w", err)
	}
	defer keyboard.Uninstall()

	if err := mouse.Install(nil, mouseChan); err != nil {
		return fmt.Errorf("failed to install mouse hook: %w", err)
	}
	defer mouse.Uninstall()

	h.logger.InfoWithContext("Input hooks installed", map[string]interface{}{
		"stop_key": string(rune(h.stopKey)),
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.listener.Done():
			return nil
		case k := <-keyboardChan:
			if k.Message == types.WM_KEYDOWN && k.VKCode == h.stopKey {
				h.listener.Stop()
			}
		case m := <-mouseChan:
			if m.Message == types.WM_LBUTTONDOWN {
				h.listener.Click(image.Pt(int(m.X), int(m.Y)))
			}
		}
	}
}
