package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/queuesync/queuesync-go/pkg/log"
)

type hubStub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	ids      []string
	onConn   func(ws *websocket.Conn)
}

func (h *hubStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/negotiate") {
		w.Write([]byte(`{"connectionToken":"tok-42","negotiateVersion":1}`))
		return
	}
	h.mu.Lock()
	h.ids = append(h.ids, r.URL.Query().Get("id"))
	h.mu.Unlock()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()
	h.onConn(ws)
}

func echoRecords(ws *websocket.Conn) {
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if err := ws.WriteMessage(mt, data); err != nil {
			return
		}
	}
}

type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureLogger) Log(e log.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *captureLogger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestDialNegotiatesAndEchoes(t *testing.T) {
	stub := &hubStub{onConn: echoRecords}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	logger := &captureLogger{}
	d := NewDialer(DialConfig{HTTPClient: srv.Client(), ProtocolLogger: logger})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx, srv.URL+"/hubs/queue")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if conn.ID() == "" {
		t.Error("ID() is empty")
	}

	if err := conn.Send([]byte(`{"type":6}`)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	rec, err := conn.Receive()
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if string(rec) != `{"type":6}` {
		t.Errorf("Receive() = %q", rec)
	}

	stub.mu.Lock()
	ids := append([]string(nil), stub.ids...)
	stub.mu.Unlock()
	if len(ids) != 1 || ids[0] != "tok-42" {
		t.Errorf("id query = %v, want [tok-42]", ids)
	}
	if logger.count() != 2 {
		t.Errorf("logged frames = %d, want 2", logger.count())
	}
}

func TestReceiveSplitsBatchedRecords(t *testing.T) {
	stub := &hubStub{onConn: func(ws *websocket.Conn) {
		ws.WriteMessage(websocket.TextMessage, []byte("{}\x1e{\"type\":6}\x1e{\"ty"))
		ws.WriteMessage(websocket.TextMessage, []byte("pe\":7}\x1e"))
		ws.ReadMessage()
	}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	d := NewDialer(DialConfig{SkipNegotiation: true})
	conn, err := d.Dial(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	want := []string{`{}`, `{"type":6}`, `{"type":7}`}
	for i, w := range want {
		rec, err := conn.Receive()
		if err != nil {
			t.Fatalf("Receive(%d) error = %v", i, err)
		}
		if string(rec) != w {
			t.Errorf("Receive(%d) = %q, want %q", i, rec, w)
		}
	}
}

func TestCloseUnblocksReceive(t *testing.T) {
	stub := &hubStub{onConn: func(ws *websocket.Conn) { ws.ReadMessage() }}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	conn, err := NewDialer(DialConfig{SkipNegotiation: true}).Dial(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Receive()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	conn.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("Receive() error = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Receive() did not return after Close")
	}

	if err := conn.Send([]byte("{}")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Send() after Close error = %v, want ErrConnectionClosed", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestDialFailsOnNegotiate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewDialer(DialConfig{}).Dial(context.Background(), srv.URL)
	if !errors.Is(err, ErrNegotiateFailed) {
		t.Errorf("Dial() error = %v, want ErrNegotiateFailed", err)
	}
}

func TestDialRejectsUpgradeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewDialer(DialConfig{SkipNegotiation: true}).Dial(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("Dial() error = %v, want status 403", err)
	}
}
