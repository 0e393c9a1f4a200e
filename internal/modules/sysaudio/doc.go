// Package sysaudio controls the room PC's master output through the
// system mixer. It exposes a single device so wall panels can dim the
// room without caring which sink the OS routes to.
package sysaudio
