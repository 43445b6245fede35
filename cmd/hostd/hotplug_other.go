//go:build !linux

package main

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/tinyforge/tinyforge/internal/transport"
)

// watchHotplug is a no-op off Linux: udev hotplug detection has no
// equivalent on other platforms, so hostd falls back to plain
// backoff-and-retry there.
func watchHotplug(_ context.Context, _ string, _ *transport.Reconnector, _ *log.Logger) {}
