// Package wire defines the JSON hub protocol spoken with the queue hub.
//
// The hub uses the JSON flavour of the ASP.NET Core SignalR hub protocol.
// Every message is a JSON object terminated by the record separator 0x1E;
// framing is handled by the transport package, this package only deals with
// single records.
//
// # Handshake
//
// The first record sent by the client is a HandshakeRequest. The server
// answers with a HandshakeResponse; a non-empty Error rejects the connection.
//
// # Message Types
//
//   - Invocation (1): a method call. Client to server for JoinRoom/JoinSite,
//     server to client for QueueUpdated.
//   - Completion (3): the result of a client invocation.
//   - Ping (6): keep-alive, no payload.
//   - Close (7): the server is closing the connection.
//
// Stream messages (2, 4, 5) are recognized but not used by the queue hub.
package wire
