package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DNS-SD parameters.
const (
	// ServiceType is the service type advertised by queue hubs.
	ServiceType = "_queuehub._tcp"

	// Domain is the mDNS domain.
	Domain = "local"
)

// TXT record keys.
const (
	TXTKeyScheme = "scheme"
	TXTKeyPath   = "path"
	TXTKeyName   = "name"
)

// Service errors.
var (
	ErrInvalidScheme = errors.New("invalid scheme")
	ErrInvalidPort   = errors.New("invalid port")
	ErrNoAddress     = errors.New("no address")
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// ParseTXT splits "key=value" strings. A key without "=" maps to "".
func ParseTXT(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(strs))
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k == "" {
			continue
		}
		txt[strings.ToLower(k)] = v
	}
	return txt
}

// Service is a discovered queue hub.
type Service struct {
	Instance  string
	Host      string
	Port      int
	Addresses []string
	Scheme    string
	HubPath   string
	Name      string
}

// newService builds a Service from the fields of a DNS-SD entry.
func newService(instance, host string, port int, text []string, addrs []net.IP) (*Service, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	txt := ParseTXT(text)
	scheme := strings.ToLower(txt[TXTKeyScheme])
	switch scheme {
	case "":
		scheme = "http"
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidScheme, scheme)
	}

	path := txt[TXTKeyPath]
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	svc := &Service{
		Instance: instance,
		Host:     strings.TrimSuffix(host, "."),
		Port:     port,
		Scheme:   scheme,
		HubPath:  path,
		Name:     txt[TXTKeyName],
	}
	for _, ip := range addrs {
		svc.Addresses = mergeAddresses(svc.Addresses, []string{ip.String()})
	}
	if svc.Host == "" && len(svc.Addresses) == 0 {
		return nil, ErrNoAddress
	}
	return svc, nil
}

// BaseURL returns the server address, preferring an IPv4 address over the
// host name. The hub path is not included.
func (s *Service) BaseURL() string {
	host := s.Host
	for _, a := range s.Addresses {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			host = a
			break
		}
	}
	if host == "" && len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return s.Scheme + "://" + net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// DisplayName returns Name, or the instance name when Name is empty.
func (s *Service) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Instance
}

// mergeAddresses adds new addresses to existing, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, a := range existing {
		seen[a] = true
	}
	for _, a := range added {
		if !seen[a] {
			existing = append(existing, a)
			seen[a] = true
		}
	}
	return existing
}

// removeAddresses drops every address in gone from addresses.
func removeAddresses(addresses, gone []string) []string {
	drop := make(map[string]bool, len(gone))
	for _, a := range gone {
		drop[a] = true
	}
	result := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if !drop[a] {
			result = append(result, a)
		}
	}
	return result
}
