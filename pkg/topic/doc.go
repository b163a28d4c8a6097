// Package topic defines the addressable scopes of the queue hub and the
// change notifications pushed for them.
//
// # Topics
//
// A topic is either a room within a site or a whole site:
//
//	topic.Room("site-1", "room-1") // key "site-1|room-1"
//	topic.Site("site-1")           // key "site-1"
//
// Topics are compared by their composite key.
//
// # Notifications
//
// A Notification names the scope that changed. It carries no state; receivers
// treat it as a cache-invalidation signal and re-fetch from the server.
//
// # Scope Matching
//
// A room topic matches only notifications for the same site and room. A site
// topic matches every notification for its site, regardless of room.
package topic
