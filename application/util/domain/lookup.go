package domain

import (
	"context"
	"net"
	"net/netip"
	"strings"

	"github.com/pkg/errors"
)

var ErrDomainNotFound = errors.New("domain not found")

type Lookuper interface {
	LookupIP(ctx context.Context, domain string) (addrs []netip.Addr, err error)
}

// mapLookuper answers from a fixed table, like /etc/hosts.
// The table is copied on creation and never modified, so it is safe for concurrent use.
type mapLookuper struct {
	set map[string][]netip.Addr
}

var _ Lookuper = (*mapLookuper)(nil)

func NewMapLookuper(set map[string][]netip.Addr) *mapLookuper {
	clone := make(map[string][]netip.Addr, len(set))
	for domain, addrs := range set {
		if len(addrs) == 0 {
			continue
		}
		clone[strings.ToLower(domain)] = append([]netip.Addr(nil), addrs...)
	}
	return &mapLookuper{set: clone}
}

func (m *mapLookuper) LookupIP(ctx context.Context, domain string) (addrs []netip.Addr, err error) {
	addrs, ok := m.set[strings.ToLower(domain)]
	if !ok {
		return nil, ErrDomainNotFound
	}
	return append([]netip.Addr(nil), addrs...), nil
}

// resolverLookuper asks the system resolver.
type resolverLookuper struct {
	r *net.Resolver
}

var _ Lookuper = (*resolverLookuper)(nil)

// NewResolverLookuper wraps r. A nil r means [net.DefaultResolver].
func NewResolverLookuper(r *net.Resolver) *resolverLookuper {
	if r == nil {
		r = net.DefaultResolver
	}
	return &resolverLookuper{r: r}
}

func (l *resolverLookuper) LookupIP(ctx context.Context, domain string) ([]netip.Addr, error) {
	addrs, err := l.r.LookupNetIP(ctx, "ip", domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, errors.Wrap(ErrDomainNotFound, err.Error())
		}
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, ErrDomainNotFound
	}
	for i, a := range addrs {
		addrs[i] = a.Unmap()
	}
	return addrs, nil
}

type chainLookuper []Lookuper

// Chain asks each lookuper in order and moves on only when one reports [ErrDomainNotFound].
func Chain(lookupers ...Lookuper) Lookuper {
	return chainLookuper(lookupers)
}

func (c chainLookuper) LookupIP(ctx context.Context, domain string) ([]netip.Addr, error) {
	for _, l := range c {
		addrs, err := l.LookupIP(ctx, domain)
		if errors.Is(err, ErrDomainNotFound) {
			continue
		}
		return addrs, err
	}
	return nil, ErrDomainNotFound
}
