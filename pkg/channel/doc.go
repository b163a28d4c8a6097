// Package channel implements the hub notification channel: one persistent
// websocket speaking the JSON hub protocol.
//
// A Channel dials lazily on the first Connect, performs the protocol
// handshake, then runs a single read loop that
//
//   - delivers QueueUpdated notifications to the registered callback,
//   - resolves pending invocations from completion messages,
//   - feeds the keep-alive monitor, and
//   - reacts to server close messages.
//
// Lifecycle and reconnection are delegated to a connection.Manager.
// Malformed or unknown records are dropped and logged at debug level.
package channel
