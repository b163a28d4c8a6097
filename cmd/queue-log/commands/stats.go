package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/queuesync/queuesync-go/pkg/connection"
	"github.com/queuesync/queuesync-go/pkg/log"
	"github.com/queuesync/queuesync-go/pkg/wire"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Connections       map[string]*ConnectionStats
	Notifications     map[string]int
	Invocations       map[string]int
	FailedCompletions int
	Reconnects        int
	PartialReplays    int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}

	latencyTotal time.Duration
	latencyCount int
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Endpoint  string
}

// AverageLatency returns the mean invocation latency, or 0.
func (s *Stats) AverageLatency() time.Duration {
	if s.latencyCount == 0 {
		return 0
	}
	return s.latencyTotal / time.Duration(s.latencyCount)
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Connections:       make(map[string]*ConnectionStats),
		Notifications:     make(map[string]int),
		Invocations:       make(map[string]int),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.ConnectionID != "" {
		conn, ok := s.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
			s.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if conn.Endpoint == "" {
			conn.Endpoint = event.Endpoint
		}
	}

	if msg := event.Message; msg != nil {
		switch wire.MessageType(msg.Type) {
		case wire.TypeInvocation:
			if msg.Target == wire.TargetQueueUpdated && event.Direction == log.DirectionIn {
				s.Notifications[event.Topic]++
			} else if event.Direction == log.DirectionOut {
				s.Invocations[msg.Target]++
			}
		case wire.TypeCompletion:
			if msg.Error != "" {
				s.FailedCompletions++
			}
			if msg.Latency != nil {
				s.latencyTotal += *msg.Latency
				s.latencyCount++
			}
		}
	}

	if sc := event.StateChange; sc != nil {
		switch {
		case sc.Entity == log.StateEntityChannel && sc.NewState == connection.StateReconnecting.String():
			s.Reconnects++
		case sc.Entity == log.StateEntityReplay && sc.NewState == "PARTIAL":
			s.PartialReplays++
		}
	}

	if event.Error != nil {
		s.Errors++
	}
}

// RunStats analyzes the trace at path and prints statistics to w.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Queue Hub Trace Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerHub} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Invocations) > 0 {
		fmt.Fprintln(w, "Invocations:")
		printCounts(w, stats.Invocations)
		if avg := stats.AverageLatency(); avg > 0 {
			fmt.Fprintf(w, "  Average latency: %s\n", formatDuration(avg))
		}
		if stats.FailedCompletions > 0 {
			fmt.Fprintf(w, "  Failed: %d\n", stats.FailedCompletions)
		}
		fmt.Fprintln(w)
	}

	if len(stats.Notifications) > 0 {
		fmt.Fprintln(w, "Notifications by Topic:")
		printCounts(w, stats.Notifications)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(c.id), c.stats.Events, duration)
			if c.stats.Endpoint != "" {
				fmt.Fprintf(w, "           Endpoint: %s\n", c.stats.Endpoint)
			}
		}
	}

	if stats.Reconnects > 0 || stats.PartialReplays > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Reconnects: %d\n", stats.Reconnects)
		fmt.Fprintf(w, "Partial replays: %d\n", stats.PartialReplays)
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}

func printCounts(w io.Writer, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		label := k
		if label == "" {
			label = "(none)"
		}
		fmt.Fprintf(w, "  %-24s %d\n", label+":", counts[k])
	}
}
