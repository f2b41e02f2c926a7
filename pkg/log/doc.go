// Package log provides the protocol and activity event log.
//
// It is separate from operational logging (slog): every command tree,
// result tree, binding change, power transition and control action can be
// captured as a machine-readable Event.
//
//	// Console, during development
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Capture file
//	fl, _ := log.NewFileLogger("/var/log/devices/host.dlog")
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// Layers:
//   - Transport: raw frames (FrameEvent)
//   - Wire/Tree: commands and results with a path summary (MessageEvent)
//   - Control: state transitions (StateChangeEvent) and actions (ActivityEvent)
//
// Files are a stream of CBOR-encoded events; Reader iterates them with an
// optional Filter.
package log
