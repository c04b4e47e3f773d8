package preflight

import (
	"time"

	"github.com/temoto/robotstxt"
)

// HostPolicy is the ephemeral per-host state handed to the fetcher for the
// duration of a single lease. It never outlives the lease.
type HostPolicy struct {
	Host         string
	MinDelay     time.Duration
	UserAgent    string
	RobotsRules  *robotstxt.Group
	ProxyBinding string
}

type DecisionReason string

const (
	AllowedByRobots    DecisionReason = "allowed_by_robots"
	DisallowedByRobots DecisionReason = "disallowed_by_robots"
	NoRobotsRules      DecisionReason = "no_robots_rules"
	MatchedBlacklist   DecisionReason = "matched_blacklist"
	DNSFailed          DecisionReason = "dns_failed"
	DNSTimedOut        DecisionReason = "dns_timed_out"
)

// Decision is the pre-flight verdict for one domain. ResolvedHost carries
// the host that actually resolved, which may be the www-prefixed label.
type Decision struct {
	Allowed      bool
	Reason       DecisionReason
	RobotsReason string
	ResolvedHost string
	Policy       HostPolicy
}
