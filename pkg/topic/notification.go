package topic

// Notification is a change hint for a site or one of its rooms.
// It uses the JSON field names of the hub's QueueUpdated payload.
type Notification struct {
	SiteKey string `json:"siteSlug"`
	RoomKey string `json:"roomSlug,omitempty"`
}

// Topic returns the narrowest topic the notification refers to.
func (n Notification) Topic() Topic {
	return Topic{SiteKey: n.SiteKey, RoomKey: n.RoomKey}
}

// Valid reports whether the notification names a site.
func (n Notification) Valid() bool {
	return n.SiteKey != ""
}
