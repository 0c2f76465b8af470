package adsession

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// ServerInfo identifies one discovered directory server endpoint.
type ServerInfo struct {
	Host     string
	Port     int
	Priority int
	Weight   int
}

// SRVDiscovery resolves directory servers for a domain through DNS SRV
// records.
type SRVDiscovery struct {
	resolver *net.Resolver
	logger   hclog.Logger
}

// NewSRVDiscovery creates a discovery instance using the default resolver.
func NewSRVDiscovery(logger hclog.Logger) *SRVDiscovery {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &SRVDiscovery{
		resolver: net.DefaultResolver,
		logger:   logger,
	}
}

// DiscoverServers looks up directory servers for domain, preferring
// _ldap._tcp records and falling back to the global catalog. LDAPS records
// are not consulted: transport security is negotiated in-band through
// StartTLS on the resulting session.
func (d *SRVDiscovery) DiscoverServers(ctx context.Context, domain string) ([]*ServerInfo, error) {
	if domain == "" {
		return nil, fmt.Errorf("domain cannot be empty")
	}

	services := []string{"ldap", "gc"}

	var lastErr error
	for _, service := range services {
		_, records, err := d.resolver.LookupSRV(ctx, service, "tcp", domain)
		if err != nil {
			d.logger.Debug("SRV lookup failed",
				"service", service, "domain", domain, "error", err)
			lastErr = err
			continue
		}

		servers := make([]*ServerInfo, 0, len(records))
		for _, rec := range records {
			if rec.Target == "" || rec.Target == "." {
				continue
			}
			servers = append(servers, &ServerInfo{
				Host:     strings.TrimSuffix(rec.Target, "."),
				Port:     int(rec.Port),
				Priority: int(rec.Priority),
				Weight:   int(rec.Weight),
			})
		}

		if len(servers) > 0 {
			sortServers(servers)
			d.logger.Debug("SRV discovery found servers",
				"service", service, "domain", domain, "server_count", len(servers))
			return servers, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("SRV discovery failed for %s: %w", domain, lastErr)
	}
	return nil, fmt.Errorf("no directory servers discovered for %s", domain)
}

// sortServers orders servers by SRV priority (lower first), then weight
// (higher first), then host for stability.
func sortServers(servers []*ServerInfo) {
	sort.SliceStable(servers, func(i, j int) bool {
		if servers[i].Priority != servers[j].Priority {
			return servers[i].Priority < servers[j].Priority
		}
		if servers[i].Weight != servers[j].Weight {
			return servers[i].Weight > servers[j].Weight
		}
		return servers[i].Host < servers[j].Host
	})
}
