// Package hubtest provides an in-process queue hub for tests.
//
// The server speaks enough of the hub protocol for the client: negotiate,
// the JSON handshake, JoinRoom and JoinSite invocations with completions,
// pings and server-pushed QueueUpdated notifications. Tests can drop
// connections, fail joins and send close messages.
package hubtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/queuesync/queuesync-go/pkg/topic"
	"github.com/queuesync/queuesync-go/pkg/transport"
	"github.com/queuesync/queuesync-go/pkg/wire"
)

// HubPath is the path the hub is served on.
const HubPath = "/hubs/queue"

// Join is a join invocation received by the server.
type Join struct {
	Method string
	Topic  topic.Topic
}

// Server is a fake hub backed by httptest.
type Server struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu           sync.Mutex
	cond         *sync.Cond
	peers        map[*peer]struct{}
	joins        []Join
	failJoins    map[string]string
	handshakeErr string
	refuse       bool
	negotiations int
	accepted     int
	silent       bool
}

type peer struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (p *peer) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.ws.WriteMessage(websocket.TextMessage, transport.AppendRecord(nil, data))
}

// NewServer starts a fake hub.
func NewServer() *Server {
	s := &Server{
		peers:     make(map[*peer]struct{}),
		failJoins: make(map[string]string),
	}
	s.cond = sync.NewCond(&s.mu)
	mux := http.NewServeMux()
	mux.HandleFunc(HubPath+"/negotiate", s.handleNegotiate)
	mux.HandleFunc(HubPath, s.handleConnect)
	s.srv = httptest.NewServer(mux)
	return s
}

// URL returns the server base URL.
func (s *Server) URL() string {
	return s.srv.URL
}

// Endpoint returns the full hub endpoint URL.
func (s *Server) Endpoint() string {
	return s.srv.URL + HubPath
}

// Close disconnects all peers and stops the server.
func (s *Server) Close() {
	s.DropAll()
	s.srv.Close()
}

// Joins returns all joins received so far, in arrival order.
func (s *Server) Joins() []Join {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Join(nil), s.joins...)
}

// JoinCount returns how many joins were received for t.
func (s *Server) JoinCount(t topic.Topic) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.joins {
		if j.Topic == t {
			n++
		}
	}
	return n
}

// WaitForJoins blocks until at least n joins were received or the timeout
// expires. It reports whether n was reached.
func (s *Server) WaitForJoins(n int, timeout time.Duration) bool {
	return s.waitFor(timeout, func() bool { return len(s.joins) >= n })
}

// WaitForPeers blocks until exactly n peers are connected.
func (s *Server) WaitForPeers(n int, timeout time.Duration) bool {
	return s.waitFor(timeout, func() bool { return len(s.peers) == n })
}

func (s *Server) waitFor(timeout time.Duration, cond func() bool) bool {
	timer := time.AfterFunc(timeout, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()

	deadline := time.Now().Add(timeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	for !cond() {
		if !time.Now().Before(deadline) {
			return false
		}
		s.cond.Wait()
	}
	return true
}

// FailJoins makes joins for t complete with errMsg. An empty errMsg
// restores success.
func (s *Server) FailJoins(t topic.Topic, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errMsg == "" {
		delete(s.failJoins, t.Key())
		return
	}
	s.failJoins[t.Key()] = errMsg
}

// RejectHandshake makes subsequent handshakes fail with errMsg.
func (s *Server) RejectHandshake(errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshakeErr = errMsg
}

// Refuse makes negotiate answer 503 while set.
func (s *Server) Refuse(refuse bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refuse = refuse
}

// Silence stops completing invocations while set.
func (s *Server) Silence(silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent = silent
}

// Negotiations returns the number of negotiate requests served.
func (s *Server) Negotiations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negotiations
}

// Accepted returns the number of websocket connections accepted.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Peers returns the number of live connections.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Publish pushes a QueueUpdated notification to every peer.
func (s *Server) Publish(n topic.Notification) {
	msg, err := wire.NewInvocation("", wire.TargetQueueUpdated, n)
	if err != nil {
		return
	}
	for _, p := range s.snapshot() {
		p.send(msg)
	}
}

// SendRaw writes a raw record to every peer.
func (s *Server) SendRaw(record string) {
	for _, p := range s.snapshot() {
		p.writeMu.Lock()
		p.ws.WriteMessage(websocket.TextMessage, transport.AppendRecord(nil, []byte(record)))
		p.writeMu.Unlock()
	}
}

// SendClose sends a close message to every peer.
func (s *Server) SendClose(errMsg string, allowReconnect bool) {
	for _, p := range s.snapshot() {
		p.send(wire.NewClose(errMsg, allowReconnect))
	}
}

// DropAll closes every peer socket without a close message.
func (s *Server) DropAll() {
	for _, p := range s.snapshot() {
		p.ws.Close()
	}
}

func (s *Server) snapshot() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	return peers
}

func (s *Server) handleNegotiate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.negotiations++
	refuse := s.refuse
	s.mu.Unlock()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if refuse {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transport.NegotiateResponse{
		ConnectionID:     "conn",
		ConnectionToken:  "token",
		NegotiateVersion: 1,
		AvailableTransports: []transport.AvailableTransport{
			{Transport: transport.TransportWebSockets, TransferFormats: []string{"Text"}},
		},
	})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{ws: ws}

	s.mu.Lock()
	s.accepted++
	s.peers[p] = struct{}{}
	s.cond.Broadcast()
	s.mu.Unlock()

	defer func() {
		ws.Close()
		s.mu.Lock()
		delete(s.peers, p)
		s.cond.Broadcast()
		s.mu.Unlock()
	}()

	framer := transport.NewFramer(0)
	handshaken := false
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		records, err := framer.Feed(data)
		if err != nil {
			return
		}
		for _, rec := range records {
			if !handshaken {
				if !s.handshake(p, rec) {
					return
				}
				handshaken = true
				continue
			}
			s.handleRecord(p, rec)
		}
	}
}

func (s *Server) handshake(p *peer, rec []byte) bool {
	var req wire.HandshakeRequest
	if err := json.Unmarshal(rec, &req); err != nil || req.Protocol != wire.ProtocolName {
		p.send(wire.HandshakeResponse{Error: "unsupported protocol"})
		return false
	}
	s.mu.Lock()
	reject := s.handshakeErr
	s.mu.Unlock()
	p.send(wire.HandshakeResponse{Error: reject})
	return reject == ""
}

func (s *Server) handleRecord(p *peer, rec []byte) {
	msg, err := wire.DecodeMessage(rec)
	if err != nil || msg.Type != wire.TypeInvocation {
		return
	}

	var args []string
	for _, a := range msg.Arguments {
		var v string
		json.Unmarshal(a, &v)
		args = append(args, v)
	}

	var t topic.Topic
	switch {
	case msg.Target == wire.MethodJoinRoom && len(args) == 2:
		t = topic.Room(args[0], args[1])
	case msg.Target == wire.MethodJoinSite && len(args) == 1:
		t = topic.Site(args[0])
	default:
		if msg.InvocationID != "" {
			p.send(wire.NewCompletion(msg.InvocationID, "unknown method "+strings.TrimSpace(msg.Target)))
		}
		return
	}

	s.mu.Lock()
	s.joins = append(s.joins, Join{Method: msg.Target, Topic: t})
	failure := s.failJoins[t.Key()]
	silent := s.silent
	s.cond.Broadcast()
	s.mu.Unlock()

	if msg.InvocationID != "" && !silent {
		p.send(wire.NewCompletion(msg.InvocationID, failure))
	}
}
