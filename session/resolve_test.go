package session

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDNSResolver is a DNSResolver with a pluggable lookup function.
type mockDNSResolver struct {
	LookupSRVFn func(service, proto, name string) (string, []*net.SRV, error)
}

func (m *mockDNSResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return m.LookupSRVFn(service, proto, name)
}

func TestResolvePeers_Sorted(t *testing.T) {
	var gotService, gotProto, gotName string
	r := &mockDNSResolver{LookupSRVFn: func(service, proto, name string) (string, []*net.SRV, error) {
		gotService, gotProto, gotName = service, proto, name
		return "", []*net.SRV{
			{Target: "c.example.org.", Port: 7003, Priority: 20, Weight: 10},
			{Target: "a.example.org.", Port: 7001, Priority: 10, Weight: 5},
			{Target: "b.example.org.", Port: 7002, Priority: 10, Weight: 50},
		}, nil
	}}

	endpoints, err := ResolvePeers("example.org", r)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.example.org:7002", "a.example.org:7001", "c.example.org:7003"}, endpoints)
	assert.Equal(t, "storm", gotService)
	assert.Equal(t, "tcp", gotProto)
	assert.Equal(t, "example.org", gotName)
}

func TestResolvePeers_Errors(t *testing.T) {
	_, err := ResolvePeers("", nil)
	assert.ErrorIs(t, err, ErrDNSLookupFailed)

	failing := &mockDNSResolver{LookupSRVFn: func(string, string, string) (string, []*net.SRV, error) {
		return "", nil, errors.New("servfail")
	}}
	_, err = ResolvePeers("example.org", failing)
	assert.ErrorIs(t, err, ErrDNSLookupFailed)

	empty := &mockDNSResolver{LookupSRVFn: func(string, string, string) (string, []*net.SRV, error) {
		return "", nil, nil
	}}
	_, err = ResolvePeers("example.org", empty)
	assert.ErrorIs(t, err, ErrNoEndpoints)
}

func TestResolveTarget(t *testing.T) {
	called := false
	r := &mockDNSResolver{LookupSRVFn: func(string, string, string) (string, []*net.SRV, error) {
		called = true
		return "", []*net.SRV{{Target: "peer.example.org.", Port: 9000}}, nil
	}}

	addrs, err := ResolveTarget("10.0.0.1:7000", r)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1:7000"}, addrs)
	assert.False(t, called)

	addrs, err = ResolveTarget("example.org", r)
	require.NoError(t, err)
	assert.Equal(t, []string{"peer.example.org:9000"}, addrs)
	assert.True(t, called)
}

func TestNewDNSSECResolver_Defaults(t *testing.T) {
	assert.Equal(t, "8.8.8.8:53", NewDNSSECResolver("").Upstream)
	assert.Equal(t, "1.1.1.1:53", NewDNSSECResolver("1.1.1.1:53").Upstream)
}

// startDNSServer serves SRV answers on a local UDP port.
func startDNSServer(t *testing.T, authenticated bool) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			resp := new(dns.Msg)
			resp.SetReply(req)
			resp.AuthenticatedData = authenticated
			resp.Answer = append(resp.Answer, &dns.SRV{
				Hdr:      dns.RR_Header{Name: req.Question[0].Name, Rrtype: dns.TypeSRV, Class: dns.ClassINET, Ttl: 60},
				Priority: 10,
				Weight:   1,
				Port:     7400,
				Target:   "node.example.org.",
			})
			_ = w.WriteMsg(resp)
		}),
	}
	go func() { _ = srv.ActivateAndServe() }()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("dns server did not start")
	}
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestDNSSECResolver_LookupSRV(t *testing.T) {
	r := NewDNSSECResolver(startDNSServer(t, true))
	r.Timeout = 2 * time.Second

	_, srvs, err := r.LookupSRV(SRVService, "tcp", "example.org")
	require.NoError(t, err)
	require.Len(t, srvs, 1)
	assert.Equal(t, "node.example.org", srvs[0].Target)
	assert.Equal(t, uint16(7400), srvs[0].Port)

	endpoints, err := ResolvePeers("example.org", r)
	require.NoError(t, err)
	assert.Equal(t, []string{"node.example.org:7400"}, endpoints)
}

func TestDNSSECResolver_RequiresAD(t *testing.T) {
	r := NewDNSSECResolver(startDNSServer(t, false))
	r.Timeout = 2 * time.Second

	_, _, err := r.LookupSRV(SRVService, "tcp", "example.org")
	assert.ErrorIs(t, err, ErrDNSSECValidationFailed)
}
