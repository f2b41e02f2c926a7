// Package transport carries command trees between two sessions.
//
// Every transport implements cmdtree.Sender for outbound commands and
// Serve, which feeds inbound frames to a cmdtree.Handler (normally a
// *cmdtree.Session). Inbound commands are answered with their result
// frame when the result is not empty; inbound results are handed over
// as they are.
//
// # Stream
//
// Stream runs over any byte stream (TCP, net.Pipe). Frames are
// length-prefixed:
//
//	┌──────────────────────────────┐
//	│   CBOR frame (pkg/wire)      │
//	├──────────────────────────────┤
//	│ Length prefix (4B, BE)       │
//	├──────────────────────────────┤
//	│           TCP                │
//	└──────────────────────────────┘
//
// Listener accepts TCP connections and hands each Stream to a callback;
// Dial opens one.
//
// Reconnector keeps a client side connected, redialing with exponential
// backoff and jitter after a failed dial or a dropped connection.
//
// # Loopback
//
// NewLoopback returns two in-memory ends with synchronous delivery through
// the wire codec. It is meant for tests and single-process setups.
//
// # MQTT
//
// MQTT publishes frames as retained-off messages on
// <prefix>/<device>/<role>/command and <prefix>/<device>/<role>/result,
// where role names the publishing side ("host" or "mirror"). Each side
// subscribes to the other side's topics.
package transport
