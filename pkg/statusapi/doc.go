// Package statusapi is a small client for the queue server's read-only
// status endpoints. Views call it from their refresh functions after a hub
// notification or a failsafe tick.
//
// Endpoints:
//
//	GET {base}/api/public/sites
//	GET {base}/api/public/sites/{site}/rooms/{room}/status[?ticketId=...]
//	GET {base}/api/tv/sites/{site}/status
//
// Non-2xx responses are returned as *HTTPError.
package statusapi
