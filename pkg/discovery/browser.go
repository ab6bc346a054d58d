package discovery

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Browser reports network-attached PLDM endpoints as they appear and
// disappear.
type Browser interface {
	// BrowseEndpoints searches for advertised endpoints. Returns two
	// channels: added (new endpoints) and removed (endpoints that
	// disappeared). Both channels are closed when the context is
	// cancelled.
	BrowseEndpoints(ctx context.Context) (added, removed <-chan *EndpointInfo, err error)

	// Stop stops all active browsing operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout is the default timeout for one-shot browse operations.
	// Default: 10 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
	}
}

// MDNSBrowser implements the Browser interface using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) (*MDNSBrowser, error) {
	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	return &MDNSBrowser{config: config}, nil
}

// BrowseEndpoints implements Browser. Endpoints are aggregated by
// instance name - addresses from multiple interfaces are combined into a
// single entry, and an endpoint is only reported removed once no
// interface still sees it.
func (b *MDNSBrowser) BrowseEndpoints(ctx context.Context) (<-chan *EndpointInfo, <-chan *EndpointInfo, error) {
	b.mu.Lock()
	ctx, b.cancel = context.WithCancel(ctx)
	b.mu.Unlock()

	added := make(chan *EndpointInfo)
	removed := make(chan *EndpointInfo)

	entries := make(chan *zeroconf.ServiceEntry)
	gone := make(chan *zeroconf.ServiceEntry)

	// Process entries with aggregation
	go func() {
		defer close(added)
		defer close(removed)

		// Track endpoints by instance name, aggregating addresses
		seen := make(map[string]*EndpointInfo)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				info := entryToEndpoint(entry)
				if info == nil {
					continue
				}

				existing, found := seen[entry.Instance]
				if found {
					existing.Addresses = mergeAddresses(existing.Addresses, info.Addresses)
					continue
				}
				seen[entry.Instance] = info
				select {
				case added <- info:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-gone:
				if !ok {
					continue
				}
				existing, found := seen[entry.Instance]
				if !found {
					continue
				}
				delete(seen, entry.Instance)
				select {
				case removed <- existing:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// Start browsing in background
	go func() {
		_ = zeroconf.Browse(ctx, ServiceTypeEndpoint, Domain, entries, gone, b.browserOptions()...)
	}()

	return added, removed, nil
}

// Stop implements Browser.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

// browserOptions builds zeroconf client options from the config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		if iface, err := net.InterfaceByName(b.config.Interface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// entryToEndpoint converts a zeroconf entry to an EndpointInfo, or nil if
// the TXT record is malformed.
func entryToEndpoint(entry *zeroconf.ServiceEntry) *EndpointInfo {
	info, err := DecodeEndpointTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}

	info.Host = entry.HostName
	info.Port = uint16(entry.Port)
	for _, ip := range entry.AddrIPv4 {
		info.Addresses = append(info.Addresses, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		info.Addresses = append(info.Addresses, ip.String())
	}
	return info
}

// mergeAddresses unions two address lists, preserving order.
func mergeAddresses(existing, incoming []string) []string {
	have := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		have[a] = struct{}{}
	}
	for _, a := range incoming {
		if _, ok := have[a]; !ok {
			existing = append(existing, a)
		}
	}
	return existing
}

// Compile-time interface satisfaction check.
var _ Browser = (*MDNSBrowser)(nil)
