//go:build linux

package main

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/tinyforge/tinyforge/internal/transport"
)

// watchHotplug calls reconnector.Nudge whenever udev reports the expected
// device node appearing, clearing any backoff delay so the reconnector's
// next Stream call dials immediately. run calls Stream only once, at
// startup.
func watchHotplug(ctx context.Context, device string, reconnector *transport.Reconnector, logger *log.Logger) {
	events, err := transport.WatchUSBSerial(ctx)
	if err != nil {
		logger.Debug("udev hotplug watch unavailable", "err", err)
		return
	}
	for ev := range events {
		if ev.Added && strings.EqualFold(ev.Devnode, device) {
			logger.Info("udev reports MCU device present", "device", ev.Devnode)
			reconnector.Nudge()
		}
	}
}
