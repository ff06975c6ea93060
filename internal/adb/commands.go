package adb

import (
	"context"
	"fmt"
	"strings"
)

// MotionAction is an `input motionevent` action
type MotionAction string

const (
	MotionDown MotionAction = "DOWN"
	MotionMove MotionAction = "MOVE"
	MotionUp   MotionAction = "UP"
)

// Tap performs a tap at the specified device pixel
func (c *Controller) Tap(ctx context.Context, x, y int) error {
	_, err := c.Shell(ctx, fmt.Sprintf("input tap %d %d", x, y))
	return err
}

// Swipe performs a swipe gesture over durationMS milliseconds
func (c *Controller) Swipe(ctx context.Context, x1, y1, x2, y2, durationMS int) error {
	_, err := c.Shell(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, durationMS))
	return err
}

// Motion sends a single touchscreen motion event at the device pixel
func (c *Controller) Motion(ctx context.Context, action MotionAction, x, y int) error {
	_, err := c.Shell(ctx, fmt.Sprintf("input motionevent %s %d %d", action, x, y))
	return err
}

// WindowSize returns the current window/screen size
func (c *Controller) WindowSize(ctx context.Context) (width, height int, err error) {
	output, err := c.Shell(ctx, "wm size")
	if err != nil {
		return 0, 0, err
	}
	return parseWindowSize(output)
}

// parseWindowSize reads "Physical size: 1080x1920", preferring an
// "Override size" line when present
func parseWindowSize(output string) (int, int, error) {
	var w, h int
	found := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		var lw, lh int
		if _, err := fmt.Sscanf(line, "Override size: %dx%d", &lw, &lh); err == nil {
			return lw, lh, nil
		}
		if _, err := fmt.Sscanf(line, "Physical size: %dx%d", &lw, &lh); err == nil {
			w, h, found = lw, lh, true
		}
	}
	if !found {
		return 0, 0, fmt.Errorf("failed to parse window size: %s", output)
	}
	return w, h, nil
}
