package preflight

import (
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Resolver answers "does this host have an address" with enough rcode
// fidelity to tell NXDOMAIN/SERVFAIL apart from transport timeouts, which
// the stdlib resolver folds into one error.
type Resolver interface {
	Resolve(host string) error
}

type DNSResolver struct {
	client  *dns.Client
	servers []string
}

func NewDNSResolver(timeout time.Duration) (*DNSResolver, error) {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return nil, &PreflightError{
			Message:   fmt.Sprintf("reading resolv.conf: %v", err),
			Retryable: false,
			Cause:     ErrCauseNoResolver,
		}
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	return &DNSResolver{
		client:  &dns.Client{Timeout: timeout},
		servers: servers,
	}, nil
}

// NewDNSResolverWithServers builds a resolver against explicit servers.
// Tests point this at a local stub server.
func NewDNSResolverWithServers(timeout time.Duration, servers []string) *DNSResolver {
	return &DNSResolver{
		client:  &dns.Client{Timeout: timeout},
		servers: servers,
	}
}

// Resolve queries A then AAAA. One record of either type is success. The
// caller retries once with the www. label before classifying the domain.
func (r *DNSResolver) Resolve(host string) error {
	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)
		in, _, err := r.client.Exchange(msg, r.servers[0])
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				lastErr = &PreflightError{
					Message:   fmt.Sprintf("query %s: %v", host, err),
					Retryable: true,
					Cause:     ErrCauseDNSTimeout,
				}
				continue
			}
			lastErr = &PreflightError{
				Message:   fmt.Sprintf("query %s: %v", host, err),
				Retryable: true,
				Cause:     ErrCauseServFail,
			}
			continue
		}
		switch in.Rcode {
		case dns.RcodeSuccess:
			if len(in.Answer) > 0 {
				return nil
			}
			lastErr = &PreflightError{
				Message:   fmt.Sprintf("%s: empty answer", host),
				Retryable: false,
				Cause:     ErrCauseNXDomain,
			}
		case dns.RcodeNameError:
			lastErr = &PreflightError{
				Message:   fmt.Sprintf("%s: NXDOMAIN", host),
				Retryable: false,
				Cause:     ErrCauseNXDomain,
			}
		case dns.RcodeServerFailure:
			lastErr = &PreflightError{
				Message:   fmt.Sprintf("%s: SERVFAIL", host),
				Retryable: true,
				Cause:     ErrCauseServFail,
			}
		default:
			lastErr = &PreflightError{
				Message:   fmt.Sprintf("%s: rcode %d", host, in.Rcode),
				Retryable: false,
				Cause:     ErrCauseNXDomain,
			}
		}
	}
	return lastErr
}
