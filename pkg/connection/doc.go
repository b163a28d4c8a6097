// Package connection tracks the lifecycle of the hub connection.
//
// A Manager owns the state machine:
//
//	Disconnected ──Connect──▶ Connecting ──ok──▶ Connected
//	     ▲                        │                  │ lost
//	     └────────fail────────────┘                  ▼
//	                                           Reconnecting ──ok+replay──▶ Connected
//
// Close moves any state to Closed, which is terminal.
//
// # Single Flight
//
// Concurrent Connect calls share one attempt. Callers arriving while an
// attempt is in flight wait for it, bounded by the connect timeout.
//
// # Reconnection Strategy
//
// After an unexpected loss the manager retries forever with exponential
// backoff: 1s, 2s, 4s, 8s, 16s, then 30s, plus up to 25% jitter. The
// backoff resets after a successful reconnection.
//
// # Replay Before Connected
//
// The OnReconnected hook runs after the transport is up but before the
// state becomes Connected, so a caller blocked in Connect only proceeds
// once the hook (subscription replay) has finished.
package connection
