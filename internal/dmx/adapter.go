package dmx

import (
	"fmt"
	"os"
	"sync"
)

// startCode is the DMX512 null start code prefixed to every frame.
const startCode = 0x00

// Adapter writes raw DMX frames to the transmission hardware.
// WriteFrame receives the 512 channel bytes without the start code.
type Adapter interface {
	WriteFrame(channels []byte) error
	Close() error
}

// SerialAdapter writes frames to a serial-style device file, the common
// shape of USB DMX interfaces exposed by their kernel drivers.
type SerialAdapter struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// OpenSerialAdapter opens the device for writing.
func OpenSerialAdapter(path string) (*SerialAdapter, error) {
	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("dmx: opening adapter %s: %w", path, err)
	}
	return &SerialAdapter{path: path, file: file}, nil
}

// WriteFrame writes one frame: the start code followed by all 512
// channel values, in a single write so the driver sees a whole frame.
func (a *SerialAdapter) WriteFrame(channels []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return fmt.Errorf("dmx: adapter %s is closed", a.path)
	}

	frame := make([]byte, 1+len(channels))
	frame[0] = startCode
	copy(frame[1:], channels)

	if _, err := a.file.Write(frame); err != nil {
		return fmt.Errorf("dmx: writing frame to %s: %w", a.path, err)
	}
	return nil
}

// Close closes the device file.
func (a *SerialAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	if err != nil {
		return fmt.Errorf("dmx: closing adapter %s: %w", a.path, err)
	}
	return nil
}
