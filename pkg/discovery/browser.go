package discovery

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// DefaultBrowseTimeout bounds FindFirst when the context has no deadline.
const DefaultBrowseTimeout = 5 * time.Second

// ErrNotFound indicates that no hub answered before the timeout.
var ErrNotFound = errors.New("no queue hub found")

// BrowserConfig configures a Browser.
type BrowserConfig struct {
	// Timeout bounds FindFirst (default: 5s).
	Timeout time.Duration

	// Interface restricts browsing to one network interface. Empty means
	// all interfaces.
	Interface string

	// Logger for operational output (optional).
	Logger *slog.Logger
}

// Browser discovers queue hubs.
type Browser struct {
	config BrowserConfig
}

// NewBrowser creates a Browser.
func NewBrowser(config BrowserConfig) *Browser {
	if config.Timeout <= 0 {
		config.Timeout = DefaultBrowseTimeout
	}
	return &Browser{config: config}
}

// Browse streams discovered hubs until ctx ends. Each instance is emitted
// once, when first seen. The returned channel is closed when ctx ends.
func (b *Browser) Browse(ctx context.Context) (<-chan *Service, error) {
	out := make(chan *Service)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)
		b.aggregate(ctx, entries, removed, out)
	}()

	go func() {
		if err := zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.options()...); err != nil {
			b.debugLog("discovery: browse ended", "error", err)
		}
	}()

	return out, nil
}

// FindFirst returns the first hub that answers, or ErrNotFound after the
// configured timeout.
func (b *Browser) FindFirst(ctx context.Context) (*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	found, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	return first(ctx, found)
}

func first(ctx context.Context, found <-chan *Service) (*Service, error) {
	select {
	case svc, ok := <-found:
		if ok {
			return svc, nil
		}
	case <-ctx.Done():
	}
	return nil, ErrNotFound
}

// aggregate merges entries by instance name and emits new instances on out.
func (b *Browser) aggregate(ctx context.Context, entries, removed <-chan *zeroconf.ServiceEntry, out chan<- *Service) {
	services := make(map[string]*Service)

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			svc, err := serviceFromEntry(entry)
			if err != nil {
				b.debugLog("discovery: ignoring entry", "instance", entry.Instance, "error", err)
				continue
			}

			if existing, found := services[svc.Instance]; found {
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			services[svc.Instance] = svc
			b.debugLog("discovery: hub found", "instance", svc.Instance, "url", svc.BaseURL())
			select {
			case out <- svc:
			case <-ctx.Done():
				return
			}

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			existing, found := services[entry.Instance]
			if !found {
				continue
			}
			existing.Addresses = removeAddresses(existing.Addresses, entryAddresses(entry))
			if len(existing.Addresses) == 0 {
				delete(services, entry.Instance)
			}

		case <-ctx.Done():
			return
		}
	}
}

func serviceFromEntry(entry *zeroconf.ServiceEntry) (*Service, error) {
	addrs := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	addrs = append(addrs, entry.AddrIPv4...)
	addrs = append(addrs, entry.AddrIPv6...)
	return newService(entry.Instance, entry.HostName, entry.Port, entry.Text, addrs)
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

func (b *Browser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		} else {
			b.debugLog("discovery: unknown interface", "name", b.config.Interface, "error", err)
		}
	}
	return opts
}

func (b *Browser) debugLog(msg string, args ...any) {
	if b.config.Logger != nil {
		b.config.Logger.Debug(msg, args...)
	}
}
