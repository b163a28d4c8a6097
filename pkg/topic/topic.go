package topic

import (
	"errors"
	"fmt"
	"strings"
)

// KeySeparator separates site and room in a composite topic key.
const KeySeparator = "|"

// ErrInvalidTopic indicates a topic without a site key or with a key
// containing the separator.
var ErrInvalidTopic = errors.New("invalid topic")

// Kind distinguishes room topics from site topics.
type Kind uint8

const (
	// KindSite is a topic covering every room of a site.
	KindSite Kind = iota

	// KindRoom is a topic covering a single room.
	KindRoom
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSite:
		return "SITE"
	case KindRoom:
		return "ROOM"
	default:
		return "UNKNOWN"
	}
}

// Topic is a joinable scope. An empty RoomKey denotes a site topic.
type Topic struct {
	SiteKey string
	RoomKey string
}

// Room returns the topic for a single room.
func Room(siteKey, roomKey string) Topic {
	return Topic{SiteKey: siteKey, RoomKey: roomKey}
}

// Site returns the topic for a whole site.
func Site(siteKey string) Topic {
	return Topic{SiteKey: siteKey}
}

// Kind returns whether t is a room or a site topic.
func (t Topic) Kind() Kind {
	if t.RoomKey == "" {
		return KindSite
	}
	return KindRoom
}

// Key returns the composite deduplication key.
func (t Topic) Key() string {
	if t.RoomKey == "" {
		return t.SiteKey
	}
	return t.SiteKey + KeySeparator + t.RoomKey
}

// String returns a human-readable form ("site-1/room-1" or "site-1").
func (t Topic) String() string {
	if t.RoomKey == "" {
		return t.SiteKey
	}
	return t.SiteKey + "/" + t.RoomKey
}

// Validate reports whether t can be joined.
func (t Topic) Validate() error {
	if t.SiteKey == "" {
		return fmt.Errorf("%w: empty site key", ErrInvalidTopic)
	}
	if strings.Contains(t.SiteKey, KeySeparator) || strings.Contains(t.RoomKey, KeySeparator) {
		return fmt.Errorf("%w: key contains %q", ErrInvalidTopic, KeySeparator)
	}
	return nil
}

// Matches reports whether n concerns the scope of t.
func (t Topic) Matches(n Notification) bool {
	if n.SiteKey != t.SiteKey {
		return false
	}
	if t.RoomKey == "" {
		return true
	}
	return n.RoomKey == t.RoomKey
}

// Parse parses "site" or "site/room" into a Topic.
func Parse(s string) (Topic, error) {
	site, room, _ := strings.Cut(strings.TrimSpace(s), "/")
	t := Topic{SiteKey: site, RoomKey: room}
	if err := t.Validate(); err != nil {
		return Topic{}, err
	}
	return t, nil
}

// Matcher decides whether a notification is relevant to a view.
type Matcher interface {
	Matches(n Notification) bool
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(n Notification) bool

// Matches calls f(n).
func (f MatcherFunc) Matches(n Notification) bool {
	return f(n)
}

// Compile-time interface satisfaction checks.
var (
	_ Matcher = Topic{}
	_ Matcher = MatcherFunc(nil)
)
