package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTXT(t *testing.T) {
	txt := ParseTXT([]string{"scheme=https", "Path=/hubs/queue", "flag", "=orphan", "name=Main=Hall"})

	want := TXTRecordMap{
		"scheme": "https",
		"path":   "/hubs/queue",
		"flag":   "",
		"name":   "Main=Hall",
	}
	assert.Equal(t, want, txt)
}

func TestNewService(t *testing.T) {
	v4 := net.ParseIP("192.168.1.20")
	v6 := net.ParseIP("fe80::1")

	tests := []struct {
		name    string
		host    string
		port    int
		text    []string
		addrs   []net.IP
		wantURL string
		wantErr error
	}{
		{"Defaults", "hub.local.", 5000, nil, []net.IP{v4}, "http://192.168.1.20:5000", nil},
		{"HTTPS", "hub.local.", 443, []string{"scheme=https"}, []net.IP{v6, v4}, "https://192.168.1.20:443", nil},
		{"IPv6Only", "", 5000, nil, []net.IP{v6}, "http://[fe80::1]:5000", nil},
		{"HostOnly", "hub.local.", 5000, nil, nil, "http://hub.local:5000", nil},
		{"BadScheme", "hub.local.", 5000, []string{"scheme=ftp"}, nil, "", ErrInvalidScheme},
		{"BadPort", "hub.local.", 0, nil, []net.IP{v4}, "", ErrInvalidPort},
		{"NoAddress", "", 5000, nil, nil, "", ErrNoAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := newService("Queue Hub", tt.host, tt.port, tt.text, tt.addrs)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("newService() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("newService() error = %v", err)
			}
			if got := svc.BaseURL(); got != tt.wantURL {
				t.Errorf("BaseURL() = %q, want %q", got, tt.wantURL)
			}
		})
	}
}

func TestServiceFields(t *testing.T) {
	svc, err := newService("Queue Hub", "hub.local.", 5000,
		[]string{"path=realtime/queue", "name=Main Hall"}, []net.IP{net.ParseIP("10.0.0.2")})
	require.NoError(t, err)

	assert.Equal(t, "/realtime/queue", svc.HubPath)
	assert.Equal(t, "Main Hall", svc.DisplayName())
	assert.Equal(t, "hub.local", svc.Host)

	svc.Name = ""
	assert.Equal(t, "Queue Hub", svc.DisplayName())
}

func entry(instance string, port int, addrs ...string) *zeroconf.ServiceEntry {
	e := &zeroconf.ServiceEntry{}
	e.Instance = instance
	e.HostName = "hub.local."
	e.Port = port
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip.To4() != nil {
			e.AddrIPv4 = append(e.AddrIPv4, ip)
		} else {
			e.AddrIPv6 = append(e.AddrIPv6, ip)
		}
	}
	return e
}

func TestAggregate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	out := make(chan *Service, 8)
	done := make(chan struct{})

	b := NewBrowser(BrowserConfig{})
	go func() {
		b.aggregate(ctx, entries, removed, out)
		close(done)
	}()

	entries <- entry("hub-a", 5000, "10.0.0.1")
	first := <-out
	assert.Equal(t, "hub-a", first.Instance)

	// Same instance on another interface: merged, not emitted again.
	entries <- entry("hub-a", 5000, "fe80::1")
	// Invalid entry: ignored.
	entries <- entry("broken", 0, "10.0.0.9")
	entries <- entry("hub-b", 5001, "10.0.0.2")

	second := <-out
	assert.Equal(t, "hub-b", second.Instance)
	assert.Empty(t, out)

	// Removing every address forgets the instance; it is emitted again
	// when it reappears.
	removed <- entry("hub-a", 5000, "10.0.0.1", "fe80::1")
	entries <- entry("hub-a", 5000, "10.0.0.3")
	again := <-out
	assert.Equal(t, []string{"10.0.0.3"}, again.Addresses)

	close(entries)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("aggregate did not return after entries closed")
	}
}

func TestAggregateMergesAddresses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	out := make(chan *Service, 1)
	done := make(chan struct{})

	b := NewBrowser(BrowserConfig{})
	go func() {
		b.aggregate(ctx, entries, removed, out)
		close(done)
	}()

	entries <- entry("hub-a", 5000, "10.0.0.1")
	svc := <-out
	entries <- entry("hub-a", 5000, "10.0.0.1", "10.0.0.5")
	removed <- entry("hub-a", 5000, "10.0.0.1")

	cancel()
	<-done
	assert.Equal(t, []string{"10.0.0.5"}, svc.Addresses)
}

func TestFirst(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		found := make(chan *Service, 1)
		found <- &Service{Instance: "hub-a"}
		svc, err := first(context.Background(), found)
		require.NoError(t, err)
		assert.Equal(t, "hub-a", svc.Instance)
	})

	t.Run("Closed", func(t *testing.T) {
		found := make(chan *Service)
		close(found)
		_, err := first(context.Background(), found)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := first(ctx, make(chan *Service))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
