// Package interactive provides the interactive command-line interface
// for queue-watch.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/queuesync/queuesync-go/cmd/queue-watch/watch"
	"github.com/queuesync/queuesync-go/pkg/connection"
	"github.com/queuesync/queuesync-go/pkg/statusapi"
	"github.com/queuesync/queuesync-go/pkg/topic"
)

// Watcher is the view manager driven by the command loop.
type Watcher interface {
	Watch(ctx context.Context, t topic.Topic, ticketID string) error
	Unwatch(t topic.Topic) error
	Refresh(t topic.Topic) error
	Views() []watch.ViewInfo
	Sites(ctx context.Context) ([]statusapi.SiteCatalog, error)
}

// HubStatus reports the hub connection.
type HubStatus interface {
	State() connection.State
	Topics() []topic.Topic
}

// Controller handles interactive mode for queue-watch.
type Controller struct {
	watcher  Watcher
	hub      HubStatus
	endpoint string
	rl       *readline.Instance
	out      io.Writer
}

// New creates a new interactive controller reading from the terminal.
func New(watcher Watcher, hub HubStatus, endpoint string) (*Controller, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "queue> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("room"),
			readline.PcItem("site"),
			readline.PcItem("sites"),
			readline.PcItem("list"),
			readline.PcItem("refresh"),
			readline.PcItem("stop"),
			readline.PcItem("status"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := newController(watcher, hub, endpoint, rl.Stdout())
	c.rl = rl
	return c, nil
}

func newController(watcher Watcher, hub HubStatus, endpoint string, out io.Writer) *Controller {
	return &Controller{
		watcher:  watcher,
		hub:      hub,
		endpoint: endpoint,
		out:      out,
	}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log and status output to avoid interfering with the prompt.
func (c *Controller) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (c *Controller) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run starts the interactive command loop.
func (c *Controller) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if !c.Execute(ctx, line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line. It returns false when the user asked to
// quit.
func (c *Controller) Execute(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "room":
		c.cmdRoom(ctx, args)

	case "site":
		c.cmdSite(ctx, args)

	case "sites":
		c.cmdSites(ctx)

	case "list", "ls":
		c.cmdList()

	case "refresh", "r":
		c.cmdRefresh(args)

	case "stop":
		c.cmdStop(args)

	case "status":
		c.cmdStatus()

	case "quit", "exit", "q":
		return false

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Controller) printHelp() {
	fmt.Fprintln(c.out, `
Queue Watch Commands:
  Views:
    room <site>/<room> [ticket-id]  - Watch a room, optionally tracking a ticket
    site <site>                     - Watch every room of a site
    sites                           - List sites known to the server
    list                            - List open views
    refresh <topic>                 - Refresh a view now
    stop <topic>                    - Close a view

  General:
    status                          - Show hub connection status
    help                            - Show this help
    quit                            - Exit

  Topic Format:
    site-1 or site-1/room-1`)
}

func (c *Controller) cmdRoom(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: room <site>/<room> [ticket-id]")
		return
	}
	t, err := topic.Parse(args[0])
	if err != nil || t.Kind() != topic.KindRoom {
		fmt.Fprintf(c.out, "Invalid room: %s (expected <site>/<room>)\n", args[0])
		return
	}
	ticketID := ""
	if len(args) > 1 {
		ticketID = args[1]
	}
	c.watch(ctx, t, ticketID)
}

func (c *Controller) cmdSite(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: site <site>")
		return
	}
	t, err := topic.Parse(args[0])
	if err != nil || t.Kind() != topic.KindSite {
		fmt.Fprintf(c.out, "Invalid site: %s\n", args[0])
		return
	}
	c.watch(ctx, t, "")
}

func (c *Controller) watch(ctx context.Context, t topic.Topic, ticketID string) {
	err := c.watcher.Watch(ctx, t, ticketID)
	switch {
	case err == nil:
		fmt.Fprintf(c.out, "Watching %s\n", t)
	case errors.Is(err, watch.ErrAlreadyWatching):
		fmt.Fprintf(c.out, "Already watching %s\n", t)
	case errors.Is(err, topic.ErrInvalidTopic), errors.Is(err, watch.ErrClosed):
		fmt.Fprintf(c.out, "Error: %v\n", err)
	default:
		fmt.Fprintf(c.out, "Watching %s (polling only, join failed: %v)\n", t, err)
	}
}

func (c *Controller) cmdSites(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	sites, err := c.watcher.Sites(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if len(sites) == 0 {
		fmt.Fprintln(c.out, "No sites")
		return
	}

	fmt.Fprintf(c.out, "\nSites (%d):\n", len(sites))
	for _, s := range sites {
		fmt.Fprintf(c.out, "  %s  %s\n", s.SiteSlug, s.SiteName)
		for _, r := range s.Rooms {
			fmt.Fprintf(c.out, "      %s/%s  %s (%d min)\n", s.SiteSlug, r.RoomSlug, r.RoomName, r.ServiceMinutes)
		}
	}
}

func (c *Controller) cmdList() {
	views := c.watcher.Views()
	if len(views) == 0 {
		fmt.Fprintln(c.out, "No open views")
		return
	}

	fmt.Fprintf(c.out, "\nOpen Views (%d):\n", len(views))
	fmt.Fprintln(c.out, "-------------------------------------------")
	for _, v := range views {
		fmt.Fprintf(c.out, "  %s\n", v.Topic)
		if v.TicketID != "" {
			fmt.Fprintf(c.out, "      Ticket: %s\n", v.TicketID)
		}
		fmt.Fprintf(c.out, "      State: %s\n", v.State)
		fmt.Fprintf(c.out, "      Refreshes: %d (failed: %d)\n", v.Refreshes, v.Failures)
		if !v.LastRefresh.IsZero() {
			fmt.Fprintf(c.out, "      Last refresh: %s\n", v.LastRefresh.Format("15:04:05"))
		}
	}
}

func (c *Controller) cmdRefresh(args []string) {
	t, ok := c.topicArg("refresh", args)
	if !ok {
		return
	}
	if err := c.watcher.Refresh(t); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}

func (c *Controller) cmdStop(args []string) {
	t, ok := c.topicArg("stop", args)
	if !ok {
		return
	}
	if err := c.watcher.Unwatch(t); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Stopped %s\n", t)
}

func (c *Controller) topicArg(cmd string, args []string) (topic.Topic, bool) {
	if len(args) != 1 {
		fmt.Fprintf(c.out, "Usage: %s <topic>\n", cmd)
		return topic.Topic{}, false
	}
	t, err := topic.Parse(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid topic: %v\n", err)
		return topic.Topic{}, false
	}
	return t, true
}

func (c *Controller) cmdStatus() {
	fmt.Fprintln(c.out, "\nHub Status:")
	fmt.Fprintln(c.out, "-------------------------------------------")
	fmt.Fprintf(c.out, "  Endpoint: %s\n", c.endpoint)
	fmt.Fprintf(c.out, "  State: %s\n", c.hub.State())

	topics := c.hub.Topics()
	fmt.Fprintf(c.out, "  Joined topics: %d\n", len(topics))
	for _, t := range topics {
		fmt.Fprintf(c.out, "    %s\n", t)
	}
	fmt.Fprintf(c.out, "  Open views: %d\n", len(c.watcher.Views()))
}
