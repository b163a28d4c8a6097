// Package watch manages the views queue-watch keeps open. Each view pairs a
// failsafe coordinator with a status API refresh that prints the current
// queue state.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/queuesync/queuesync-go/pkg/failsafe"
	"github.com/queuesync/queuesync-go/pkg/statusapi"
	"github.com/queuesync/queuesync-go/pkg/topic"
)

// Errors returned by the Watcher.
var (
	ErrAlreadyWatching = errors.New("already watching")
	ErrNotWatching     = errors.New("not watching")
	ErrClosed          = errors.New("watcher closed")
)

// Hub is the part of the hub client a Watcher needs.
type Hub interface {
	failsafe.Source
	Join(ctx context.Context, t topic.Topic) error
}

// StatusAPI is the part of the status API client a Watcher needs.
type StatusAPI interface {
	ListSites(ctx context.Context) ([]statusapi.SiteCatalog, error)
	GetRoomStatus(ctx context.Context, siteSlug, roomSlug, ticketID string) (*statusapi.RoomStatusResponse, error)
	GetSiteStatus(ctx context.Context, siteSlug string) (*statusapi.SiteStatus, error)
}

// Config configures a Watcher.
type Config struct {
	// Coordinator is the template for every view's coordinator.
	Coordinator failsafe.Config

	// Output receives rendered status lines (default: io.Discard).
	Output io.Writer

	// Logger for operational output (optional).
	Logger *slog.Logger
}

// ViewInfo summarizes one open view.
type ViewInfo struct {
	Topic       topic.Topic
	TicketID    string
	State       failsafe.State
	Refreshes   uint64
	Failures    uint64
	LastRefresh time.Time
}

type view struct {
	topic    topic.Topic
	ticketID string
	coord    *failsafe.Coordinator
}

// Watcher owns the open views.
type Watcher struct {
	hub    Hub
	api    StatusAPI
	config Config

	outMu sync.Mutex

	mu     sync.Mutex
	views  map[string]*view
	closed bool
}

// New creates a Watcher.
func New(hub Hub, api StatusAPI, config Config) *Watcher {
	if config.Output == nil {
		config.Output = io.Discard
	}
	return &Watcher{
		hub:    hub,
		api:    api,
		config: config,
		views:  make(map[string]*view),
	}
}

// Watch opens a view on t. The view starts polling immediately; a join
// failure is returned but the view stays open and keeps polling on the
// failsafe timer.
func (w *Watcher) Watch(ctx context.Context, t topic.Topic, ticketID string) error {
	if err := t.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if _, ok := w.views[t.Key()]; ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyWatching, t)
	}

	cfg := w.config.Coordinator
	cfg.Name = t.String()
	if cfg.Logger == nil {
		cfg.Logger = w.config.Logger
	}
	v := &view{topic: t, ticketID: ticketID}
	v.coord = failsafe.NewCoordinator(t, w.refresher(t, ticketID), cfg)
	w.views[t.Key()] = v
	w.mu.Unlock()

	if err := v.coord.Start(w.hub); err != nil {
		w.mu.Lock()
		delete(w.views, t.Key())
		w.mu.Unlock()
		return err
	}

	if err := w.hub.Join(ctx, t); err != nil {
		w.warnLog("join failed, polling only", "topic", t.String(), "error", err)
		return err
	}
	w.debugLog("watching", "topic", t.String())
	return nil
}

// Unwatch stops the view for t. The hub membership stays in place.
func (w *Watcher) Unwatch(t topic.Topic) error {
	w.mu.Lock()
	v, ok := w.views[t.Key()]
	delete(w.views, t.Key())
	w.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotWatching, t)
	}
	v.coord.Stop()
	return nil
}

// Refresh triggers an immediate refresh of the view for t.
func (w *Watcher) Refresh(t topic.Topic) error {
	w.mu.Lock()
	v, ok := w.views[t.Key()]
	w.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotWatching, t)
	}
	v.coord.Signal()
	return nil
}

// Views returns the open views ordered by topic.
func (w *Watcher) Views() []ViewInfo {
	w.mu.Lock()
	views := make([]*view, 0, len(w.views))
	for _, v := range w.views {
		views = append(views, v)
	}
	w.mu.Unlock()

	infos := make([]ViewInfo, 0, len(views))
	for _, v := range views {
		infos = append(infos, ViewInfo{
			Topic:       v.topic,
			TicketID:    v.ticketID,
			State:       v.coord.State(),
			Refreshes:   v.coord.Refreshes(),
			Failures:    v.coord.Failures(),
			LastRefresh: v.coord.LastRefresh(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Topic.String() < infos[j].Topic.String()
	})
	return infos
}

// Sites lists the sites known to the status API.
func (w *Watcher) Sites(ctx context.Context) ([]statusapi.SiteCatalog, error) {
	return w.api.ListSites(ctx)
}

// Close stops every view. Further calls to Watch fail with ErrClosed.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	views := w.views
	w.views = make(map[string]*view)
	w.mu.Unlock()

	for _, v := range views {
		v.coord.Stop()
	}
}

func (w *Watcher) refresher(t topic.Topic, ticketID string) failsafe.RefreshFunc {
	if t.Kind() == topic.KindSite {
		return func(ctx context.Context) error {
			status, err := w.api.GetSiteStatus(ctx, t.SiteKey)
			if err != nil {
				return err
			}
			w.print(FormatSiteStatus(status))
			return nil
		}
	}
	return func(ctx context.Context) error {
		resp, err := w.api.GetRoomStatus(ctx, t.SiteKey, t.RoomKey, ticketID)
		if err != nil {
			return err
		}
		w.print(FormatRoomStatus(t.SiteKey, resp))
		return nil
	}
}

func (w *Watcher) print(s string) {
	w.outMu.Lock()
	defer w.outMu.Unlock()
	_, _ = io.WriteString(w.config.Output, s)
}

func (w *Watcher) debugLog(msg string, args ...any) {
	if w.config.Logger != nil {
		w.config.Logger.Debug(msg, args...)
	}
}

func (w *Watcher) warnLog(msg string, args ...any) {
	if w.config.Logger != nil {
		w.config.Logger.Warn(msg, args...)
	}
}
