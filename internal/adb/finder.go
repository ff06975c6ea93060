package adb

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// FindADB attempts to locate the adb executable
func FindADB(preferredPath string) (string, error) {
	binary := "adb"
	if runtime.GOOS == "windows" {
		binary = "adb.exe"
	}

	// Try preferred path first
	if preferredPath != "" {
		for _, candidate := range []string{
			filepath.Join(preferredPath, binary),
			filepath.Join(preferredPath, "platform-tools", binary),
		} {
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}

	if path, err := exec.LookPath(binary); err == nil {
		return path, nil
	}

	// Android SDK default locations
	var commonPaths []string
	if home, err := os.UserHomeDir(); err == nil {
		commonPaths = append(commonPaths,
			filepath.Join(home, "Android", "Sdk", "platform-tools", binary),
			filepath.Join(home, "Library", "Android", "sdk", "platform-tools", binary),
			filepath.Join(home, "AppData", "Local", "Android", "Sdk", "platform-tools", binary),
		)
	}
	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("adb not found, please specify adbPath in config")
}

// ListDevices returns the serials adb reports as ready
func ListDevices(ctx context.Context, adbPath string) ([]string, error) {
	return listDevices(ctx, execRunner, adbPath)
}

func listDevices(ctx context.Context, run runner, adbPath string) ([]string, error) {
	output, err := run(ctx, adbPath, "devices")
	if err != nil {
		return nil, fmt.Errorf("adb devices failed: %w", err)
	}
	return parseDevices(string(output)), nil
}

// parseDevices extracts serials in the "device" state from `adb devices` output
func parseDevices(output string) []string {
	var devices []string
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(line)
		if len(parts) >= 2 && parts[1] == "device" {
			devices = append(devices, parts[0])
		}
	}
	return devices
}

// ConnectADB finds adb, picks device (or the first ready one) and connects
func ConnectADB(ctx context.Context, folderPath, device string) (*Controller, error) {
	adbPath, err := FindADB(folderPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find ADB: %w", err)
	}

	if device == "" {
		devices, err := ListDevices(ctx, adbPath)
		if err != nil {
			return nil, err
		}
		if len(devices) == 0 {
			return nil, fmt.Errorf("no adb devices attached")
		}
		device = devices[0]
	}

	ctrl := NewController(adbPath, device)
	if err := ctrl.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to device: %w", err)
	}

	return ctrl, nil
}
