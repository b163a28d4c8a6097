package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

type recordingLogger struct {
	events []Event
}

func (r *recordingLogger) Log(e Event) { r.events = append(r.events, e) }

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	r := &recordingLogger{}
	if OrNoop(r) != Logger(r) {
		t.Error("OrNoop should return a non-nil logger unchanged")
	}
}

func TestMultiLogger(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	m := NewMultiLogger(a, nil, b)

	m.Log(Event{ConnectionID: "c1"})
	m.Log(Event{ConnectionID: "c2"})

	for i, r := range []*recordingLogger{a, b} {
		if len(r.events) != 2 {
			t.Errorf("logger %d: got %d events, want 2", i, len(r.events))
			continue
		}
		if r.events[1].ConnectionID != "c2" {
			t.Errorf("logger %d: order not preserved", i)
		}
	}

	// Empty MultiLogger must not panic.
	NewMultiLogger().Log(Event{})
}

func TestSlogAdapter(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		key   string
		want  any
	}{
		{
			name:  "Frame",
			event: Event{Layer: LayerTransport, Frame: &FrameEvent{Size: 42}},
			key:   "frame_size",
			want:  float64(42),
		},
		{
			name:  "Message",
			event: Event{Layer: LayerWire, Message: &MessageEvent{Type: 1, Target: "JoinRoom"}},
			key:   "target",
			want:  "JoinRoom",
		},
		{
			name:  "State",
			event: Event{StateChange: &StateChangeEvent{Entity: StateEntityChannel, NewState: "CONNECTED"}},
			key:   "new_state",
			want:  "CONNECTED",
		},
		{
			name:  "Control",
			event: Event{ControlMsg: &ControlMsgEvent{Type: ControlMsgPing}},
			key:   "ctrl_type",
			want:  "PING",
		},
		{
			name:  "Error",
			event: Event{Error: &ErrorEventData{Layer: LayerHub, Message: "boom"}},
			key:   "error_msg",
			want:  "boom",
		},
		{
			name:  "Topic",
			event: Event{Topic: "s|r"},
			key:   "topic",
			want:  "s|r",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			NewSlogAdapter(l).Log(tt.event)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("unmarshal log output: %v", err)
			}
			if entry["msg"] != "protocol" {
				t.Errorf("msg = %v, want protocol", entry["msg"])
			}
			if entry[tt.key] != tt.want {
				t.Errorf("%s = %v, want %v", tt.key, entry[tt.key], tt.want)
			}
		})
	}
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	NewSlogAdapter(l).Log(Event{ConnectionID: "c"})
	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %s", buf.String())
	}
}
