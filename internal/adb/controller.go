package adb

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// defaultShellTimeout bounds a single adb invocation
const defaultShellTimeout = 5 * time.Second

// runner executes an external command and returns its combined output
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Controller drives one Android device through adb
type Controller struct {
	path      string
	device    string // adb serial, e.g. "127.0.0.1:5555"
	run       runner
	timeout   time.Duration
	mu        sync.Mutex
	connected bool
	width     int
	height    int
}

// NewController creates a controller for device using the adb binary at adbPath
func NewController(adbPath, device string) *Controller {
	return &Controller{
		path:    adbPath,
		device:  device,
		run:     execRunner,
		timeout: defaultShellTimeout,
	}
}

// Device returns the adb serial
func (c *Controller) Device() string {
	return c.device
}

// Connect establishes the connection and reads the device's screen size.
// Network serials (host:port) are connected first; USB serials are used as is.
func (c *Controller) Connect(ctx context.Context) error {
	if strings.Contains(c.device, ":") {
		output, err := c.exec(ctx, "connect", c.device)
		if err != nil {
			return fmt.Errorf("failed to connect to device %s: %w", c.device, err)
		}
		if !strings.Contains(output, "connected") {
			return fmt.Errorf("unexpected connect output: %s", output)
		}
	}

	w, h, err := c.WindowSize(ctx)
	if err != nil {
		return fmt.Errorf("device %s not responding: %w", c.device, err)
	}

	c.mu.Lock()
	c.connected = true
	c.width, c.height = w, h
	c.mu.Unlock()
	return nil
}

// Disconnect marks the controller as disconnected and drops network serials
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if wasConnected && strings.Contains(c.device, ":") {
		if _, err := c.exec(ctx, "disconnect", c.device); err != nil {
			return err
		}
	}
	return nil
}

// IsConnected returns whether the controller is connected
func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ScreenSize returns the size read at Connect
func (c *Controller) ScreenSize() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// Shell executes a shell command on the device and returns its output
func (c *Controller) Shell(ctx context.Context, command string) (string, error) {
	output, err := c.exec(ctx, "-s", c.device, "shell", command)
	if err != nil {
		return "", fmt.Errorf("shell command failed: %w", err)
	}
	return output, nil
}

// exec runs adb with args under the controller's timeout
func (c *Controller) exec(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.run(ctx, c.path, args...)
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("adb %s timed out after %v", args[0], c.timeout)
	}
	if err != nil {
		return "", fmt.Errorf("%w, output: %s", err, strings.TrimSpace(string(output)))
	}
	return strings.TrimSpace(string(output)), nil
}
