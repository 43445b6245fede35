//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// CdevPort is a Port backed by a Linux GPIO character device line set, one
// offset per bit position in the mask. It is the real-hardware counterpart
// to SimulatedPort, for driving step/direction/enable pins directly rather
// than through an MCU.
type CdevPort struct {
	mu      sync.Mutex
	lines   *gpiocdev.Lines
	offsets []int
}

// NewCdevPort requests chip's offsets as outputs, each bit position in
// masks corresponding to offsets[i]. consumer is recorded by the kernel for
// `gpioinfo` diagnostics.
func NewCdevPort(chip string, offsets []int, consumer string) (*CdevPort, error) {
	lines, err := gpiocdev.RequestLines(chip, offsets,
		gpiocdev.AsOutput(zeros(len(offsets))...),
		gpiocdev.WithConsumer(consumer),
	)
	if err != nil {
		return nil, fmt.Errorf("gpio: request lines on %s: %w", chip, err)
	}
	return &CdevPort{lines: lines, offsets: offsets}, nil
}

func zeros(n int) []int {
	z := make([]int, n)
	return z
}

// SetAndClearAtomic implements Port. The gpiocdev character device API
// writes every requested line in a single ioctl, which is the kernel's
// atomicity guarantee for this operation.
func (p *CdevPort) SetAndClearAtomic(set, clear uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	values := make([]int, len(p.offsets))
	if err := p.lines.Values(values); err != nil {
		return fmt.Errorf("gpio: read current values: %w", err)
	}

	for i := range p.offsets {
		bit := uint32(1) << uint(i)
		switch {
		case set&bit != 0:
			values[i] = 1
		case clear&bit != 0:
			values[i] = 0
		}
	}
	return p.lines.SetValues(values)
}

// Write implements Port, replacing every line's value from mask.
func (p *CdevPort) Write(mask uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	values := make([]int, len(p.offsets))
	for i := range p.offsets {
		if mask&(uint32(1)<<uint(i)) != 0 {
			values[i] = 1
		}
	}
	return p.lines.SetValues(values)
}

// Close releases the underlying line request.
func (p *CdevPort) Close() error {
	return p.lines.Close()
}
