// Package dmx drives a DMX512 lighting universe through a serial-style
// adapter.
//
// The transmitter keeps one 512-channel universe in memory and streams
// it at a fixed frame rate whether or not anything changed, which is
// what keeps DMX fixtures from flickering or timing out. Fixture state
// (color and brightness) is the source of truth; channel values are
// recomputed from it on every mutation, with brightness applied as an
// output scale so dimming never loses the stored color.
//
// Fixture state persists to SQLite on every mutation so a core restart
// resumes the last look instead of blacking out the room.
package dmx
