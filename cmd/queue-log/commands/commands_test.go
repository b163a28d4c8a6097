package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/queuesync/queuesync-go/pkg/log"
	"github.com/queuesync/queuesync-go/pkg/wire"
)

const connID = "abc12345-6789-0123-4567-890abcdef012"

func writeTrace(t *testing.T, events ...log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watch"+log.FileExtension)
	fl, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	for _, ev := range events {
		fl.Log(ev)
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return path
}

func sampleEvents() []log.Event {
	ts := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	latency := 3 * time.Millisecond
	return []log.Event{
		{
			Timestamp: ts, ConnectionID: connID, Direction: log.DirectionOut,
			Layer: log.LayerWire, Category: log.CategoryMessage, Endpoint: "http://hub/hubs/queue",
			Message: &log.MessageEvent{Type: uint8(wire.TypeInvocation), InvocationID: "1",
				Target: wire.MethodJoinRoom, Arguments: []string{`"site-1"`, `"room-1"`}},
		},
		{
			Timestamp: ts.Add(3 * time.Millisecond), ConnectionID: connID, Direction: log.DirectionIn,
			Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Type: uint8(wire.TypeCompletion), InvocationID: "1", Latency: &latency},
		},
		{
			Timestamp: ts.Add(time.Second), ConnectionID: connID, Direction: log.DirectionIn,
			Layer: log.LayerWire, Category: log.CategoryMessage, Topic: "site-1|room-1",
			Message: &log.MessageEvent{Type: uint8(wire.TypeInvocation), Target: wire.TargetQueueUpdated,
				Arguments: []string{`{"siteSlug":"site-1","roomSlug":"room-1"}`}},
		},
		{
			Timestamp: ts.Add(2 * time.Second), ConnectionID: connID, Direction: log.DirectionIn,
			Layer: log.LayerWire, Category: log.CategoryControl,
			ControlMsg: &log.ControlMsgEvent{Type: log.ControlMsgClose, Reason: "restart", AllowReconnect: true},
		},
		{
			Timestamp: ts.Add(2 * time.Second), Layer: log.LayerHub, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityChannel, OldState: "CONNECTED", NewState: "RECONNECTING"},
		},
		{
			Timestamp: ts.Add(3 * time.Second), Layer: log.LayerHub, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityReplay, NewState: "PARTIAL", Reason: "site-2: boom"},
		},
		{
			Timestamp: ts.Add(4 * time.Second), ConnectionID: connID, Direction: log.DirectionIn,
			Layer: log.LayerWire, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerWire, Message: "malformed message", Context: "decode"},
		},
	}
}

func TestFormatMessageEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[0])
	output := buf.String()

	for _, want := range []string{
		"2026-10-18T09:30:00.000000Z",
		"[conn:abc12345]",
		"OUT",
		"WIRE INVOCATION",
		"Target: JoinRoom",
		`Arguments: ["site-1", "room-1"]`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestFormatControlEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[3])
	output := buf.String()

	if !strings.Contains(output, "CTRL CLOSE") {
		t.Errorf("expected CTRL CLOSE header, got: %s", output)
	}
	if !strings.Contains(output, "AllowReconnect: true") {
		t.Errorf("expected reconnect flag, got: %s", output)
	}
}

func TestFormatStateEventWithoutConnection(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[4])
	output := buf.String()

	if !strings.Contains(output, "[conn:-]") {
		t.Errorf("expected placeholder connection id, got: %s", output)
	}
	if !strings.Contains(output, "CONNECTED -> RECONNECTING") {
		t.Errorf("expected transition, got: %s", output)
	}
}

func TestRunView(t *testing.T) {
	path := writeTrace(t, sampleEvents()...)

	tests := []struct {
		name     string
		opts     ViewOptions
		contains []string
		excludes []string
	}{
		{
			name:     "All",
			contains: []string{"Target: JoinRoom", "Latency: 3.000ms", "Topic: site-1|room-1", "Message: malformed message"},
		},
		{
			name:     "ByTarget",
			opts:     ViewOptions{Target: wire.TargetQueueUpdated},
			contains: []string{"Topic: site-1|room-1"},
			excludes: []string{"JoinRoom", "CLOSE"},
		},
		{
			name:     "ByCategory",
			opts:     ViewOptions{Category: "state"},
			contains: []string{"Entity: CHANNEL", "Reason: site-2: boom"},
			excludes: []string{"INVOCATION"},
		},
		{
			name:     "ByDirection",
			opts:     ViewOptions{Direction: "out"},
			contains: []string{"JoinRoom"},
			excludes: []string{"COMPLETION"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RunView(path, tt.opts, &buf); err != nil {
				t.Fatalf("RunView() error = %v", err)
			}
			output := buf.String()
			for _, want := range tt.contains {
				if !strings.Contains(output, want) {
					t.Errorf("output missing %q", want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(output, unwanted) {
					t.Errorf("output should not contain %q", unwanted)
				}
			}
		})
	}
}

func TestRunViewInvalidFlag(t *testing.T) {
	path := writeTrace(t)
	var buf bytes.Buffer
	if err := RunView(path, ViewOptions{Layer: "service"}, &buf); err == nil {
		t.Error("RunView() error = nil, want invalid layer error")
	}
}

func TestRunViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := RunView(filepath.Join(t.TempDir(), "missing.qlog"), ViewOptions{}, &buf); err == nil {
		t.Error("RunView() error = nil, want open error")
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("HUB"); err != nil || l != log.LayerHub {
		t.Errorf("ParseLayerFlag(HUB) = %v, %v", l, err)
	}
	if d, err := ParseDirectionFlag("In"); err != nil || d != log.DirectionIn {
		t.Errorf("ParseDirectionFlag(In) = %v, %v", d, err)
	}
	if c, err := ParseCategoryFlag("control"); err != nil || c != log.CategoryControl {
		t.Errorf("ParseCategoryFlag(control) = %v, %v", c, err)
	}
	if _, err := ParseDirectionFlag("sideways"); err == nil {
		t.Error("ParseDirectionFlag(sideways) error = nil")
	}
	if _, err := ParseCategoryFlag("snapshot"); err == nil {
		t.Error("ParseCategoryFlag(snapshot) error = nil")
	}
}

func TestStats(t *testing.T) {
	stats := newStats()
	for _, ev := range sampleEvents() {
		stats.add(ev)
	}

	if stats.TotalEvents != 7 {
		t.Errorf("TotalEvents = %d, want 7", stats.TotalEvents)
	}
	if stats.Invocations[wire.MethodJoinRoom] != 1 {
		t.Errorf("Invocations[JoinRoom] = %d, want 1", stats.Invocations[wire.MethodJoinRoom])
	}
	if stats.Notifications["site-1|room-1"] != 1 {
		t.Errorf("Notifications = %v", stats.Notifications)
	}
	if stats.Reconnects != 1 {
		t.Errorf("Reconnects = %d, want 1", stats.Reconnects)
	}
	if stats.PartialReplays != 1 {
		t.Errorf("PartialReplays = %d, want 1", stats.PartialReplays)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if got := stats.AverageLatency(); got != 3*time.Millisecond {
		t.Errorf("AverageLatency() = %v, want 3ms", got)
	}
	if len(stats.Connections) != 1 {
		t.Errorf("Connections = %d, want 1", len(stats.Connections))
	}
}

func TestRunStats(t *testing.T) {
	path := writeTrace(t, sampleEvents()...)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats() error = %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 7",
		"JoinRoom:",
		"site-1|room-1:",
		"Connections: 1",
		"Endpoint: http://hub/hubs/queue",
		"Reconnects: 1",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}
