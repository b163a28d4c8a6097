// Package discovery finds queue hubs on the local network via mDNS.
//
// A hub advertises itself as a DNS-SD service:
//
//	Service type: _queuehub._tcp
//	Domain:       local
//
// TXT records:
//
//	scheme  "http" or "https" (default: http)
//	path    hub route (default: /hubs/queue)
//	name    human-readable server name (optional)
//
// Entries with the same instance name seen on several interfaces are merged
// into one Service with the union of their addresses.
package discovery
