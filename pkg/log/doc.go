// Package log captures a machine-readable protocol trace of the hub client.
//
// It is separate from operational logging (slog). Operational logs say what
// the client decided; the protocol trace records every record, message,
// state change and error so a session can be replayed offline.
//
// # Usage
//
//	// Console, during development
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary trace file
//	fl, _ := log.NewFileLogger("/var/log/queuesync/watch.qlog")
//	cfg.ProtocolLogger = fl
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Layers
//
//   - Transport: raw websocket records (FrameEvent)
//   - Wire: decoded hub messages (MessageEvent, ControlMsgEvent)
//   - Hub: channel state and subscription replay (StateChangeEvent)
//
// # File Format
//
// Trace files are a stream of CBOR-encoded events with integer keys and the
// .qlog extension. The queue-log command views and summarizes them.
package log
