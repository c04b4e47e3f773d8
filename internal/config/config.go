// Package config builds the Config value the rest of the pipeline is wired
// from. Precedence, lowest to highest: built-in defaults, JSON config file,
// environment variables, explicit With* calls.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

type RobotsPolicy string

const (
	RobotsRespect RobotsPolicy = "respect"
	RobotsIgnore  RobotsPolicy = "ignore"
)

type ExportProfile string

const (
	ExportStrict     ExportProfile = "strict"
	ExportPermissive ExportProfile = "permissive"
)

type Config struct {
	//===============
	// Orchestrator
	//===============
	workers          int
	leaseTTL         time.Duration
	perEntryDeadline time.Duration
	stopSentinelPath string
	errorBudgetRate  float64
	errorBudgetPause time.Duration

	//===============
	// Politeness
	//===============
	minDelay   time.Duration
	jitter     time.Duration
	randomSeed int64

	//===============
	// Retry ladder
	//===============
	maxRetries   int
	backoffBase  time.Duration
	backoffFactor float64
	backoffCap   time.Duration

	//===============
	// Fetch budget
	//===============
	maxBodyBytes        int64
	allowedContentTypes []string
	userAgentPool       []string
	proxyPool           []string
	archiveFallback     bool
	dnsTimeout          time.Duration
	fetchTimeout        time.Duration

	//===============
	// Pre-flight
	//===============
	respectRobots RobotsPolicy
	blacklist     []string

	//===============
	// Extraction
	//===============
	countryPatternSet []string
	mxCheck           bool
	fuzzyNameRatio    float64

	//===============
	// Store / export
	//===============
	storeDSN      string
	exportDir     string
	exportProfile ExportProfile
}

type configDTO struct {
	Workers          int     `json:"workers,omitempty" env:"LEGALSCOUT_WORKERS"`
	LeaseTTL         string  `json:"leaseTtl,omitempty" env:"LEGALSCOUT_LEASE_TTL"`
	PerEntryDeadline string  `json:"perEntryDeadline,omitempty" env:"LEGALSCOUT_PER_ENTRY_DEADLINE"`
	StopSentinelPath string  `json:"stopSentinelPath,omitempty" env:"LEGALSCOUT_STOP_SENTINEL_PATH"`
	ErrorBudgetRate  float64 `json:"errorBudgetRate,omitempty" env:"LEGALSCOUT_ERROR_BUDGET_RATE"`
	ErrorBudgetPause string  `json:"errorBudgetPause,omitempty" env:"LEGALSCOUT_ERROR_BUDGET_PAUSE"`

	MinDelay   string `json:"minDelay,omitempty" env:"LEGALSCOUT_MIN_DELAY"`
	Jitter     string `json:"jitter,omitempty" env:"LEGALSCOUT_JITTER"`
	RandomSeed int64  `json:"randomSeed,omitempty" env:"LEGALSCOUT_RANDOM_SEED"`

	MaxRetries    int     `json:"maxRetries,omitempty" env:"LEGALSCOUT_MAX_RETRIES"`
	BackoffBase   string  `json:"backoffBase,omitempty" env:"LEGALSCOUT_BACKOFF_BASE"`
	BackoffFactor float64 `json:"backoffFactor,omitempty" env:"LEGALSCOUT_BACKOFF_FACTOR"`
	BackoffCap    string  `json:"backoffCap,omitempty" env:"LEGALSCOUT_BACKOFF_CAP"`

	MaxBodyBytes        int64    `json:"maxBodyBytes,omitempty" env:"LEGALSCOUT_MAX_BODY_BYTES"`
	AllowedContentTypes []string `json:"allowedContentTypes,omitempty"`
	UserAgentPool       []string `json:"userAgentPool,omitempty"`
	ProxyPool           []string `json:"proxyPool,omitempty"`
	ArchiveFallback     *bool    `json:"archiveFallback,omitempty"`
	DnsTimeout          string   `json:"dnsTimeout,omitempty" env:"LEGALSCOUT_DNS_TIMEOUT"`
	FetchTimeout        string   `json:"fetchTimeout,omitempty" env:"LEGALSCOUT_FETCH_TIMEOUT"`

	RespectRobots string   `json:"respectRobots,omitempty" env:"LEGALSCOUT_RESPECT_ROBOTS"`
	Blacklist     []string `json:"blacklist,omitempty"`

	CountryPatternSet []string `json:"countryPatternSet,omitempty"`
	MxCheck           *bool    `json:"mxCheck,omitempty"`
	FuzzyNameRatio    float64  `json:"fuzzyNameRatio,omitempty" env:"LEGALSCOUT_FUZZY_NAME_RATIO"`

	StoreDSN      string `json:"storeDsn,omitempty" env:"LEGALSCOUT_STORE_DSN"`
	ExportDir     string `json:"exportDir,omitempty" env:"LEGALSCOUT_EXPORT_DIR"`
	ExportProfile string `json:"exportProfile,omitempty" env:"LEGALSCOUT_EXPORT_PROFILE"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	cfg := *WithDefault()

	if dto.Workers != 0 {
		cfg.workers = dto.Workers
	}
	if d, err := parseDurationField("leaseTtl", dto.LeaseTTL); err != nil {
		return Config{}, err
	} else if d != 0 {
		cfg.leaseTTL = d
	}
	if d, err := parseDurationField("perEntryDeadline", dto.PerEntryDeadline); err != nil {
		return Config{}, err
	} else if d != 0 {
		cfg.perEntryDeadline = d
	}
	if dto.StopSentinelPath != "" {
		cfg.stopSentinelPath = dto.StopSentinelPath
	}
	if dto.ErrorBudgetRate != 0 {
		cfg.errorBudgetRate = dto.ErrorBudgetRate
	}
	if d, err := parseDurationField("errorBudgetPause", dto.ErrorBudgetPause); err != nil {
		return Config{}, err
	} else if d != 0 {
		cfg.errorBudgetPause = d
	}

	if d, err := parseDurationField("minDelay", dto.MinDelay); err != nil {
		return Config{}, err
	} else if d != 0 {
		cfg.minDelay = d
	}
	if d, err := parseDurationField("jitter", dto.Jitter); err != nil {
		return Config{}, err
	} else if d != 0 {
		cfg.jitter = d
	}
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}

	if dto.MaxRetries != 0 {
		cfg.maxRetries = dto.MaxRetries
	}
	if d, err := parseDurationField("backoffBase", dto.BackoffBase); err != nil {
		return Config{}, err
	} else if d != 0 {
		cfg.backoffBase = d
	}
	if dto.BackoffFactor != 0 {
		cfg.backoffFactor = dto.BackoffFactor
	}
	if d, err := parseDurationField("backoffCap", dto.BackoffCap); err != nil {
		return Config{}, err
	} else if d != 0 {
		cfg.backoffCap = d
	}

	if dto.MaxBodyBytes != 0 {
		cfg.maxBodyBytes = dto.MaxBodyBytes
	}
	if len(dto.AllowedContentTypes) > 0 {
		cfg.allowedContentTypes = dto.AllowedContentTypes
	}
	if len(dto.UserAgentPool) > 0 {
		cfg.userAgentPool = dto.UserAgentPool
	}
	if len(dto.ProxyPool) > 0 {
		cfg.proxyPool = dto.ProxyPool
	}
	if dto.ArchiveFallback != nil {
		cfg.archiveFallback = *dto.ArchiveFallback
	}
	if d, err := parseDurationField("dnsTimeout", dto.DnsTimeout); err != nil {
		return Config{}, err
	} else if d != 0 {
		cfg.dnsTimeout = d
	}
	if d, err := parseDurationField("fetchTimeout", dto.FetchTimeout); err != nil {
		return Config{}, err
	} else if d != 0 {
		cfg.fetchTimeout = d
	}

	if dto.RespectRobots != "" {
		cfg.respectRobots = RobotsPolicy(dto.RespectRobots)
	}
	if len(dto.Blacklist) > 0 {
		cfg.blacklist = dto.Blacklist
	}

	if len(dto.CountryPatternSet) > 0 {
		cfg.countryPatternSet = dto.CountryPatternSet
	}
	if dto.MxCheck != nil {
		cfg.mxCheck = *dto.MxCheck
	}
	if dto.FuzzyNameRatio != 0 {
		cfg.fuzzyNameRatio = dto.FuzzyNameRatio
	}

	if dto.StoreDSN != "" {
		cfg.storeDSN = dto.StoreDSN
	}
	if dto.ExportDir != "" {
		cfg.exportDir = dto.ExportDir
	}
	if dto.ExportProfile != "" {
		cfg.exportProfile = ExportProfile(dto.ExportProfile)
	}

	return cfg, nil
}

func parseDurationField(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: field %s: %s", ErrConfigParsingFail, field, err.Error())
	}
	return d, nil
}

// WithConfigFile loads a JSON config file, layers environment-variable
// overrides on top via caarlos0/env, and builds a Config from defaults plus
// both layers.
func WithConfigFile(path string) (Config, error) {
	dto := configDTO{}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
		}
		if err := json.Unmarshal(raw, &dto); err != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
		}
	}

	if err := env.Parse(&dto); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(dto)
}

// WithDefault returns a Config seeded with the system's built-in defaults.
func WithDefault() *Config {
	return &Config{
		workers:          8,
		leaseTTL:         10 * time.Minute,
		perEntryDeadline: 2 * time.Minute,
		stopSentinelPath: "",
		errorBudgetRate:  0.5,
		errorBudgetPause: 30 * time.Second,

		minDelay:   1 * time.Second,
		jitter:     500 * time.Millisecond,
		randomSeed: time.Now().UnixNano(),

		maxRetries:    4,
		backoffBase:   500 * time.Millisecond,
		backoffFactor: 2.0,
		backoffCap:    30 * time.Second,

		maxBodyBytes:        5 * 1024 * 1024,
		allowedContentTypes: []string{"text/html", "application/xhtml+xml"},
		userAgentPool: []string{
			"Mozilla/5.0 (compatible; legalscout/1.0; +https://legalscout.invalid/bot)",
		},
		proxyPool:       nil,
		archiveFallback: true,
		dnsTimeout:      3 * time.Second,
		fetchTimeout:    15 * time.Second,

		respectRobots: RobotsRespect,
		blacklist:     nil,

		countryPatternSet: nil,
		mxCheck:           false,
		fuzzyNameRatio:    0.6,

		storeDSN:      "legalscout.db",
		exportDir:     "export",
		exportProfile: ExportStrict,
	}
}

func (c *Config) WithWorkers(n int) *Config                       { c.workers = n; return c }
func (c *Config) WithLeaseTTL(d time.Duration) *Config             { c.leaseTTL = d; return c }
func (c *Config) WithPerEntryDeadline(d time.Duration) *Config     { c.perEntryDeadline = d; return c }
func (c *Config) WithStopSentinelPath(p string) *Config            { c.stopSentinelPath = p; return c }
func (c *Config) WithErrorBudgetRate(r float64) *Config            { c.errorBudgetRate = r; return c }
func (c *Config) WithErrorBudgetPause(d time.Duration) *Config     { c.errorBudgetPause = d; return c }
func (c *Config) WithMinDelay(d time.Duration) *Config             { c.minDelay = d; return c }
func (c *Config) WithJitter(d time.Duration) *Config               { c.jitter = d; return c }
func (c *Config) WithRandomSeed(seed int64) *Config                { c.randomSeed = seed; return c }
func (c *Config) WithMaxRetries(n int) *Config                     { c.maxRetries = n; return c }
func (c *Config) WithBackoffBase(d time.Duration) *Config          { c.backoffBase = d; return c }
func (c *Config) WithBackoffFactor(f float64) *Config              { c.backoffFactor = f; return c }
func (c *Config) WithBackoffCap(d time.Duration) *Config           { c.backoffCap = d; return c }
func (c *Config) WithMaxBodyBytes(n int64) *Config                 { c.maxBodyBytes = n; return c }
func (c *Config) WithAllowedContentTypes(v []string) *Config       { c.allowedContentTypes = v; return c }
func (c *Config) WithUserAgentPool(v []string) *Config             { c.userAgentPool = v; return c }
func (c *Config) WithProxyPool(v []string) *Config                 { c.proxyPool = v; return c }
func (c *Config) WithArchiveFallback(on bool) *Config              { c.archiveFallback = on; return c }
func (c *Config) WithDnsTimeout(d time.Duration) *Config           { c.dnsTimeout = d; return c }
func (c *Config) WithFetchTimeout(d time.Duration) *Config         { c.fetchTimeout = d; return c }
func (c *Config) WithRespectRobots(p RobotsPolicy) *Config         { c.respectRobots = p; return c }
func (c *Config) WithBlacklist(v []string) *Config                 { c.blacklist = v; return c }
func (c *Config) WithCountryPatternSet(v []string) *Config         { c.countryPatternSet = v; return c }
func (c *Config) WithMxCheck(on bool) *Config                      { c.mxCheck = on; return c }
func (c *Config) WithFuzzyNameRatio(r float64) *Config             { c.fuzzyNameRatio = r; return c }
func (c *Config) WithStoreDSN(dsn string) *Config                  { c.storeDSN = dsn; return c }
func (c *Config) WithExportDir(dir string) *Config                 { c.exportDir = dir; return c }
func (c *Config) WithExportProfile(p ExportProfile) *Config        { c.exportProfile = p; return c }

func (c *Config) Build() (Config, error) {
	if c.workers <= 0 {
		return Config{}, fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.leaseTTL <= 0 {
		return Config{}, fmt.Errorf("%w: leaseTtl must be positive", ErrInvalidConfig)
	}
	if c.respectRobots != RobotsRespect && c.respectRobots != RobotsIgnore {
		return Config{}, fmt.Errorf("%w: respectRobots must be %q or %q", ErrInvalidConfig, RobotsRespect, RobotsIgnore)
	}
	if c.exportProfile != ExportStrict && c.exportProfile != ExportPermissive {
		return Config{}, fmt.Errorf("%w: exportProfile must be %q or %q", ErrInvalidConfig, ExportStrict, ExportPermissive)
	}
	return *c, nil
}

func (c Config) Workers() int                      { return c.workers }
func (c Config) LeaseTTL() time.Duration            { return c.leaseTTL }
func (c Config) PerEntryDeadline() time.Duration    { return c.perEntryDeadline }
func (c Config) StopSentinelPath() string           { return c.stopSentinelPath }
func (c Config) ErrorBudgetRate() float64           { return c.errorBudgetRate }
func (c Config) ErrorBudgetPause() time.Duration    { return c.errorBudgetPause }
func (c Config) MinDelay() time.Duration            { return c.minDelay }
func (c Config) Jitter() time.Duration              { return c.jitter }
func (c Config) RandomSeed() int64                  { return c.randomSeed }
func (c Config) MaxRetries() int                    { return c.maxRetries }
func (c Config) BackoffBase() time.Duration         { return c.backoffBase }
func (c Config) BackoffFactor() float64             { return c.backoffFactor }
func (c Config) BackoffCap() time.Duration          { return c.backoffCap }
func (c Config) MaxBodyBytes() int64                { return c.maxBodyBytes }
func (c Config) AllowedContentTypes() []string       { return append([]string(nil), c.allowedContentTypes...) }
func (c Config) UserAgentPool() []string            { return append([]string(nil), c.userAgentPool...) }
func (c Config) ProxyPool() []string                { return append([]string(nil), c.proxyPool...) }
func (c Config) ArchiveFallback() bool              { return c.archiveFallback }
func (c Config) DnsTimeout() time.Duration          { return c.dnsTimeout }
func (c Config) FetchTimeout() time.Duration        { return c.fetchTimeout }
func (c Config) RespectRobots() RobotsPolicy        { return c.respectRobots }
func (c Config) Blacklist() []string                { return append([]string(nil), c.blacklist...) }
func (c Config) CountryPatternSet() []string        { return append([]string(nil), c.countryPatternSet...) }
func (c Config) MxCheck() bool                      { return c.mxCheck }
func (c Config) FuzzyNameRatio() float64            { return c.fuzzyNameRatio }
func (c Config) StoreDSN() string                   { return c.storeDSN }
func (c Config) ExportDir() string                  { return c.exportDir }
func (c Config) ExportProfile() ExportProfile       { return c.exportProfile }
