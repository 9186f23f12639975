package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// SRVService is the SRV service label of Storm peers: _storm._tcp.{domain}.
const SRVService = "storm"

// DNSResolver answers SRV queries. Tests substitute their own.
type DNSResolver interface {
	LookupSRV(service, proto, name string) (string, []*net.SRV, error)
}

type systemResolver struct{}

func (systemResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return net.LookupSRV(service, proto, name)
}

// SystemResolver resolves through the host's configured resolver.
var SystemResolver DNSResolver = systemResolver{}

// ResolvePeers returns the peer endpoints (host:port) advertised for domain,
// sorted by priority then weight.
func ResolvePeers(domain string, resolver DNSResolver) ([]string, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrDNSLookupFailed)
	}
	if resolver == nil {
		resolver = SystemResolver
	}

	qname := "_" + SRVService + "._tcp." + domain
	_, records, err := resolver.LookupSRV(SRVService, "tcp", domain)
	switch {
	case err != nil:
		return nil, fmt.Errorf("%w: %s: %w", ErrDNSLookupFailed, qname, err)
	case len(records) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoints, qname)
	}

	// Lowest priority first; heavier records first within a priority.
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Priority == b.Priority {
			return a.Weight > b.Weight
		}
		return a.Priority < b.Priority
	})

	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, net.JoinHostPort(strings.TrimSuffix(rec.Target, "."), strconv.Itoa(int(rec.Port))))
	}
	return out, nil
}

// ResolveTarget turns a dial target into candidate addresses. A host:port
// is used as is; a bare domain is resolved through SRV records.
func ResolveTarget(target string, resolver DNSResolver) ([]string, error) {
	if _, _, err := net.SplitHostPort(target); err == nil {
		return []string{target}, nil
	}
	return ResolvePeers(target, resolver)
}

// DialTarget resolves target and dials the candidates in order until one
// handshake succeeds.
func DialTarget(ctx context.Context, target string, resolver DNSResolver) (*Conn, error) {
	addrs, err := ResolveTarget(target, resolver)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, addr := range addrs {
		c, err := Dial(ctx, addr)
		if err == nil {
			return c, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

const (
	upstreamAddr = "8.8.8.8:53"
	queryTimeout = 10 * time.Second
	udpBufSize   = 4096
)

// DNSSECResolver sends SRV queries to a recursive resolver with the DO bit
// set and refuses any answer without the AD flag.
type DNSSECResolver struct {
	Upstream string
	// Timeout bounds each exchange; zero means ten seconds.
	Timeout time.Duration
}

// NewDNSSECResolver returns a resolver querying upstream, or 8.8.8.8:53 when
// upstream is empty.
func NewDNSSECResolver(upstream string) *DNSSECResolver {
	if upstream == "" {
		upstream = upstreamAddr
	}
	return &DNSSECResolver{Upstream: upstream, Timeout: queryTimeout}
}

func (r *DNSSECResolver) exchange(qname string, qtype uint16) (*dns.Msg, error) {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(qname), qtype)
	req.RecursionDesired = true
	req.SetEdns0(udpBufSize, true)

	c := &dns.Client{Timeout: r.Timeout}
	if c.Timeout == 0 {
		c.Timeout = queryTimeout
	}
	what := qname + " " + dns.TypeToString[qtype]
	resp, _, err := c.Exchange(req, r.Upstream)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDNSLookupFailed, what, err)
	}
	switch {
	case resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s: %s", ErrDNSLookupFailed, what, dns.RcodeToString[resp.Rcode])
	case !resp.AuthenticatedData:
		return nil, fmt.Errorf("%w: %s: answer not authenticated", ErrDNSSECValidationFailed, what)
	}
	return resp, nil
}

// LookupSRV implements DNSResolver. The returned canonical name is empty.
func (r *DNSSECResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	qname := "_" + service + "._" + proto + "." + name
	resp, err := r.exchange(qname, dns.TypeSRV)
	if err != nil {
		return "", nil, err
	}

	var records []*net.SRV
	for _, rr := range resp.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		records = append(records, &net.SRV{
			Target:   strings.TrimSuffix(srv.Target, "."),
			Port:     srv.Port,
			Priority: srv.Priority,
			Weight:   srv.Weight,
		})
	}
	if len(records) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrNoEndpoints, qname)
	}
	return "", records, nil
}

var _ DNSResolver = (*DNSSECResolver)(nil)
