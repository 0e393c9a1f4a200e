// Package mixer shells out to the system mixer for volume and mute
// control. One Mixer instance serves all audio modules; endpoints are
// addressed by their mixer-side names, with the empty name meaning the
// default sink.
package mixer
