// Package transport carries hub records over a websocket.
//
// The transport layer handles:
//   - Negotiation (POST {endpoint}/negotiate) to obtain a connection token
//   - The websocket dial against the negotiated URL
//   - Record framing: each record is terminated by 0x1E
//   - Keep-alive pings and server-timeout detection
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      Hub JSON messages         │
//	├────────────────────────────────┤
//	│   Record separator (0x1E)      │
//	├────────────────────────────────┤
//	│      WebSocket (text)          │
//	├────────────────────────────────┤
//	│        HTTP(S) / TCP           │
//	└────────────────────────────────┘
//
// A single websocket message may carry several records, and the transport
// never assumes one message per record.
//
// # Keep-Alive
//
// The client sends a ping every 15 seconds. If nothing at all is received
// from the server for 30 seconds, the connection is considered lost.
package transport
