//go:build !windows

package input

import "context"

// HookSource is unavailable on this platform; use the preview window or SIGINT
type HookSource struct{}

// NewHookSource always fails on this platform
func NewHookSource(l *Listener, stopKey string) (*HookSource, error) {
	return nil, ErrHooksUnsupported
}

// Run always fails on this platform
func (h *HookSource) Run(ctx context.Context) error {
	return ErrHooksUnsupported
}
