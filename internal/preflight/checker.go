/*
Responsibilities
- Gate a leased domain before any page fetch
- Decision order: blacklist, DNS (with one www. retry), robots.txt
- Produce the HostPolicy the fetcher operates under

The checker classifies; the orchestrator owns what happens to the queue row.
*/
package preflight

import (
	"fmt"
	"strings"
	"time"

	"github.com/corvid-labs/legalscout/internal/config"
	"github.com/corvid-labs/legalscout/internal/legallog"
	"github.com/corvid-labs/legalscout/pkg/failure"
)

type Checker struct {
	sink      legallog.Sink
	blacklist *Blacklist
	resolver  Resolver
	robots    RobotsFetcher
	userAgent string
	minDelay  time.Duration
	policy    config.RobotsPolicy
}

func NewChecker(
	sink legallog.Sink,
	cfg config.Config,
	resolver Resolver,
	robots RobotsFetcher,
) *Checker {
	userAgent := ""
	if pool := cfg.UserAgentPool(); len(pool) > 0 {
		userAgent = pool[0]
	}
	return &Checker{
		sink:      sink,
		blacklist: NewBlacklist(cfg.Blacklist()),
		resolver:  resolver,
		robots:    robots,
		userAgent: userAgent,
		minDelay:  cfg.MinDelay(),
		policy:    cfg.RespectRobots(),
	}
}

// Check runs the pre-flight ladder for one domain. A non-nil error is an
// infrastructure failure; a blocked domain comes back as a Decision with
// Allowed=false and a Reason the orchestrator maps to a terminal status.
func (c *Checker) Check(domain string) (Decision, failure.ClassifiedError) {
	if pattern := c.blacklist.Match(domain); pattern != "" {
		c.sink.RecordEvent(time.Now(), "preflight", "Checker.Check", "domain blacklisted", []legallog.Attribute{
			legallog.NewAttr(legallog.AttrDomain, domain),
			legallog.NewAttr(legallog.AttrReason, pattern),
		})
		return Decision{
			Allowed:      false,
			Reason:       MatchedBlacklist,
			RobotsReason: fmt.Sprintf("blacklist pattern %q", pattern),
		}, nil
	}

	resolvedHost, dnsErr := c.resolveWithFallback(domain)
	if dnsErr != nil {
		reason := DNSFailed
		if pe, ok := dnsErr.(*PreflightError); ok && pe.Cause == ErrCauseDNSTimeout {
			reason = DNSTimedOut
		}
		c.sink.RecordError(time.Now(), "preflight", "Checker.Check", failure.CauseDnsFailure,
			dnsErr.Error(), []legallog.Attribute{
				legallog.NewAttr(legallog.AttrDomain, domain),
			})
		return Decision{
			Allowed: false,
			Reason:  reason,
		}, nil
	}

	rules, robotsErr := c.robots.Rules(resolvedHost)
	if robotsErr != nil {
		// Robots infrastructure failure means "no rules, allow" per the
		// decision order; nothing here is allowed to block a crawl.
		rules = nil
	}

	policy := HostPolicy{
		Host:      resolvedHost,
		MinDelay:  c.minDelay,
		UserAgent: c.userAgent,
	}
	decision := Decision{
		Allowed:      true,
		Reason:       NoRobotsRules,
		ResolvedHost: resolvedHost,
		Policy:       policy,
	}
	if rules == nil {
		return decision, nil
	}

	group := rules.FindGroup(c.userAgent)
	decision.Policy.RobotsRules = group
	if group != nil && group.CrawlDelay > c.minDelay {
		// robots crawl-delay is a floor on top of the configured delay,
		// never below it.
		decision.Policy.MinDelay = group.CrawlDelay
	}

	if rules.TestAgent("/", c.userAgent) {
		decision.Reason = AllowedByRobots
		return decision, nil
	}

	reason := fmt.Sprintf("robots.txt disallows %q for user-agent %q", "/", c.userAgent)
	decision.RobotsReason = reason
	if c.policy == config.RobotsRespect {
		decision.Allowed = false
		decision.Reason = DisallowedByRobots
		return decision, nil
	}
	// policy=ignore: continue crawling but carry the disallow reason into
	// the result row.
	decision.Reason = DisallowedByRobots
	return decision, nil
}

func (c *Checker) resolveWithFallback(domain string) (string, error) {
	err := c.resolver.Resolve(domain)
	if err == nil {
		return domain, nil
	}
	if pe, ok := err.(*PreflightError); ok && pe.Retryable {
		// one retry on the apex before trying the www. label
		if retryErr := c.resolver.Resolve(domain); retryErr == nil {
			return domain, nil
		}
	}
	if !strings.HasPrefix(domain, "www.") {
		www := "www." + domain
		if wwwErr := c.resolver.Resolve(www); wwwErr == nil {
			return www, nil
		}
	}
	return "", err
}
