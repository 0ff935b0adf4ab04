package core

// Seed discovery resolves each configured DNS seed hostname to a set of peer
// addresses. Uses miekg/dns directly against the system resolver rather than
// net.LookupHost so A and AAAA lookups can be issued and timed out
// independently of the host's resolver configuration.

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

const dnsSeedQueryTimeout = 5 * time.Second

// ResolveSeeds queries every hostname in seeds and returns one NetAddr per
// resolved IP, all carrying port as their dialable port. Failures against
// individual seeds are skipped silently (neither logged nor returned): a
// handful of unreachable seeds is normal operation, not an error.
func ResolveSeeds(ctx context.Context, seeds []string, port uint16) []NetAddr {
	var out []NetAddr
	for _, host := range seeds {
		ips, err := resolveHost(ctx, host)
		if err != nil {
			continue
		}
		for _, ip := range ips {
			out = append(out, NetAddr{
				Time: uint32(time.Now().Unix()),
				Addr: Addr{IP: ip, Port: port},
			})
		}
	}
	return out
}

func resolveHost(ctx context.Context, host string) ([]net.IP, error) {
	client := new(dns.Client)
	client.Timeout = dnsSeedQueryTimeout

	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		conf = &dns.ClientConfig{Servers: []string{"8.8.8.8"}, Port: "53"}
	}
	server := net.JoinHostPort(conf.Servers[0], conf.Port)

	var ips []net.IP
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)
		msg.RecursionDesired = true

		resp, _, err := client.ExchangeContext(ctx, msg, server)
		if err != nil || resp == nil {
			continue
		}
		for _, rr := range resp.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				ips = append(ips, rec.A)
			case *dns.AAAA:
				ips = append(ips, rec.AAAA)
			}
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("dns: no records for %s", host)
	}
	return ips, nil
}
