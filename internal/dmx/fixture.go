package dmx

import (
	"errors"
	"fmt"
)

// UniverseSize is the number of channels in one DMX512 universe.
const UniverseSize = 512

// Fixture validation errors.
var (
	ErrUnknownFixture  = errors.New("dmx: unknown fixture")
	ErrInvalidChannel  = errors.New("dmx: start channel out of range")
	ErrInvalidOrder    = errors.New("dmx: invalid channel order")
	ErrChannelOverflow = errors.New("dmx: fixture channels exceed universe")
)

// Color is a fixture's stored color. Brightness is applied separately
// at transmit time.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	W uint8 `json:"w"`
}

// Fixture is one light mapped onto a contiguous channel range.
type Fixture struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// StartChannel is 1-based, per DMX convention.
	StartChannel int `json:"start_channel"`

	// ChannelOrder assigns color components to consecutive channels,
	// e.g. "rgbw" or "grb". Its length is the fixture's channel count.
	ChannelOrder string `json:"channel_order"`

	Color Color `json:"color"`

	// Brightness scales the output in [0, 1].
	Brightness float64 `json:"brightness"`
}

// Validate checks the fixture's channel mapping.
func (f Fixture) Validate() error {
	if f.StartChannel < 1 || f.StartChannel > UniverseSize {
		return fmt.Errorf("%w: fixture %s start %d", ErrInvalidChannel, f.ID, f.StartChannel)
	}
	if len(f.ChannelOrder) == 0 {
		return fmt.Errorf("%w: fixture %s has empty order", ErrInvalidOrder, f.ID)
	}
	for _, c := range f.ChannelOrder {
		switch c {
		case 'r', 'g', 'b', 'w':
		default:
			return fmt.Errorf("%w: fixture %s order %q", ErrInvalidOrder, f.ID, f.ChannelOrder)
		}
	}
	if f.StartChannel+len(f.ChannelOrder)-1 > UniverseSize {
		return fmt.Errorf("%w: fixture %s ends at %d",
			ErrChannelOverflow, f.ID, f.StartChannel+len(f.ChannelOrder)-1)
	}
	return nil
}

// channelValues computes the transmitted bytes for the fixture, stored
// color scaled by brightness, laid out in channel order.
func (f Fixture) channelValues() []byte {
	values := make([]byte, len(f.ChannelOrder))
	for i, c := range f.ChannelOrder {
		var v uint8
		switch c {
		case 'r':
			v = f.Color.R
		case 'g':
			v = f.Color.G
		case 'b':
			v = f.Color.B
		case 'w':
			v = f.Color.W
		}
		values[i] = scale(v, f.Brightness)
	}
	return values
}

// scale applies brightness to one channel value, clamped to [0, 1].
func scale(v uint8, brightness float64) uint8 {
	if brightness <= 0 {
		return 0
	}
	if brightness >= 1 {
		return v
	}
	return uint8(float64(v)*brightness + 0.5)
}
