// Package volume implements the volume capability: a raw device level
// clamped to a configured range, a normalized 0..1 position, stepping and
// mute.
//
// A Control carries the volume-raw and volume-level capabilities and, when
// configured with mute support, volume-mute. Hardware writes go through a
// Driver; notifications are raised only after the driver accepted a change.
package volume
