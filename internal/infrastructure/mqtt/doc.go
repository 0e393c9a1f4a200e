// Package mqtt wraps paho.mqtt.golang for the room's health topics.
//
// The client publishes retained per-module and per-device health state
// plus a stream of transition events, and announces its own liveness on
// the system status topic with a Last Will for crash detection. The
// broker is optional infrastructure: connection failure at startup is
// reported to the caller, who degrades to running without it.
//
// Subscriptions are tracked and restored automatically on reconnect.
// All methods are safe for concurrent use.
package mqtt
