//go:build linux

package transport

import (
	"context"
	"fmt"

	"github.com/jochenvg/go-udev"
)

// HotplugEvent reports a USB-serial device appearing or disappearing.
type HotplugEvent struct {
	Devnode string
	Added   bool
}

// WatchUSBSerial streams hotplug events for the "tty" subsystem via the
// kernel's udev netlink socket, so cmd/hostd can notice its configured
// device node appearing and nudge its Reconnector.
func WatchUSBSerial(ctx context.Context) (<-chan HotplugEvent, error) {
	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if err := mon.FilterAddMatchSubsystem("tty"); err != nil {
		return nil, fmt.Errorf("transport: filter udev monitor: %w", err)
	}

	devices, err := mon.DeviceChan(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: start udev monitor: %w", err)
	}

	out := make(chan HotplugEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case dev, ok := <-devices:
				if !ok {
					return
				}
				ev := HotplugEvent{Devnode: dev.Devnode()}
				switch dev.Action() {
				case "add":
					ev.Added = true
				case "remove":
					ev.Added = false
				default:
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
