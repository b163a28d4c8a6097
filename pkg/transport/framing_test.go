package transport

import (
	"bytes"
	"errors"
	"testing"
)

func TestFramerFeed(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
		rest   int
	}{
		{"Single", []string{"{}\x1e"}, []string{"{}"}, 0},
		{"Multiple", []string{"{\"type\":6}\x1e{}\x1e"}, []string{`{"type":6}`, "{}"}, 0},
		{"Split", []string{"{\"ty", "pe\":6}\x1e"}, []string{`{"type":6}`}, 0},
		{"Trailing", []string{"{}\x1e{\"a\""}, []string{"{}"}, 4},
		{"EmptyRecords", []string{"\x1e\x1e{}\x1e"}, []string{"{}"}, 0},
		{"NoSeparator", []string{"{}"}, nil, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(0)
			var got []string
			for _, c := range tt.chunks {
				recs, err := f.Feed([]byte(c))
				if err != nil {
					t.Fatalf("Feed() error = %v", err)
				}
				for _, r := range recs {
					got = append(got, string(r))
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("records = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("record %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
			if f.Pending() != tt.rest {
				t.Errorf("Pending() = %d, want %d", f.Pending(), tt.rest)
			}
		})
	}
}

func TestFramerRecordsDoNotAlias(t *testing.T) {
	f := NewFramer(0)
	buf := []byte("{\"a\":1}\x1e")
	recs, _ := f.Feed(buf)
	buf[2] = 'X'
	if string(recs[0]) != `{"a":1}` {
		t.Errorf("record changed with input buffer: %q", recs[0])
	}
}

func TestFramerMaxSize(t *testing.T) {
	f := NewFramer(8)

	_, err := f.Feed(append(bytes.Repeat([]byte("x"), 9), RecordSeparator))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("Feed() error = %v, want ErrMessageTooLarge", err)
	}

	// Oversized partial data is rejected as well.
	_, err = f.Feed(bytes.Repeat([]byte("y"), 9))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("Feed() error = %v, want ErrMessageTooLarge", err)
	}
	if f.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after overflow", f.Pending())
	}

	recs, err := f.Feed([]byte("ok\x1e"))
	if err != nil || len(recs) != 1 {
		t.Errorf("Feed() after overflow = %q, %v", recs, err)
	}
}

func TestAppendRecord(t *testing.T) {
	got := AppendRecord(nil, []byte("{}"))
	if !bytes.Equal(got, []byte{'{', '}', RecordSeparator}) {
		t.Errorf("AppendRecord() = %v", got)
	}
}
