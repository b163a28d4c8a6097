// Package hub provides the queue hub client used by every view.
//
// A Client owns one notification channel, the registry of joined topics and
// the listener fanout:
//
//	c, err := hub.New(hub.Config{BaseURL: "https://queue.example.com"})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	unsubscribe := c.OnUpdate(func(n topic.Notification) { ... })
//	defer unsubscribe()
//
//	if err := c.JoinRoom(ctx, "site-1", "room-1"); err != nil {
//		return err
//	}
//
// Joins establish the connection on demand and are recorded. After every
// reconnect the recorded topics are joined again before the connection is
// reported as usable.
package hub
