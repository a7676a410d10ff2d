// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for components that make network
// requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "evidence-gateway/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// UpstreamConfig holds settings for the PubMed E-utilities client.
type UpstreamConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is the optional NCBI API key. With a key NCBI allows
	// 10 requests per second instead of 3.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Tool identifies this service to NCBI (the E-utilities "tool" parameter).
	Tool string `json:"tool" yaml:"tool"`

	// Email is the contact address sent with every request, as NCBI asks
	// of automated clients.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// QualityFilter is the boolean clause ANDed onto every search
	// expression. The default restricts results to human studies,
	// clinical trials or reviews, in English.
	QualityFilter string `json:"quality_filter" yaml:"quality_filter"`

	// RequestsPerSecond throttles calls to the E-utilities endpoints.
	// Zero selects 3 rps, or 10 rps when APIKey is set.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// SearchConfig holds settings for the search service.
type SearchConfig struct {
	// DefaultPageSize is used when a request omits maxResults (default 20).
	DefaultPageSize int `json:"default_page_size" yaml:"default_page_size"`

	// MaxPageSize caps maxResults (default 100).
	MaxPageSize int `json:"max_page_size" yaml:"max_page_size"`

	// ConditionsFile optionally overrides the built-in condition table
	// with a YAML file of condition → search expression pairs.
	ConditionsFile string `json:"conditions_file,omitempty" yaml:"conditions_file,omitempty"`
}

// CacheConfig holds settings for the result cache.
type CacheConfig struct {
	// Path is the SQLite database file (default "cache/evidence.db").
	Path string `json:"path" yaml:"path"`

	// TTL is how long entries stay fresh after a write (default 24h).
	// The TTL is store-wide; entries cannot set their own.
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// PruneInterval is how often expired rows are deleted in the
	// background (default 1h). Negative disables pruning.
	PruneInterval time.Duration `json:"prune_interval" yaml:"prune_interval"`
}

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`

	// Mode selects logger and gin behavior: "prod" or "dev".
	Mode string `json:"mode" yaml:"mode"`

	// AllowedOrigins lists CORS origins. Empty allows all origins.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// GatewayConfig groups all component configurations.
type GatewayConfig struct {
	Upstream UpstreamConfig `json:"upstream" yaml:"upstream"`
	Search   SearchConfig   `json:"search" yaml:"search"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	Server   ServerConfig   `json:"server" yaml:"server"`
}

// Defaults used when the corresponding config values are unset.
const (
	DefaultPageSize      = 20
	DefaultMaxPageSize   = 100
	DefaultCacheTTL      = 24 * time.Hour
	DefaultPruneInterval = time.Hour
	DefaultQualityFilter = "(humans[MeSH] OR clinical trial[pt] OR review[pt]) AND english[la]"
	DefaultUserAgent     = "evidence-gateway/0.1"
)

// ApplyDefaults fills unset fields with their documented defaults.
func (c *GatewayConfig) ApplyDefaults() {
	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = 30 * time.Second
	}
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = DefaultUserAgent
	}
	if c.Upstream.Tool == "" {
		c.Upstream.Tool = "evidence-gateway"
	}
	if c.Upstream.QualityFilter == "" {
		c.Upstream.QualityFilter = DefaultQualityFilter
	}
	if c.Search.DefaultPageSize <= 0 {
		c.Search.DefaultPageSize = DefaultPageSize
	}
	if c.Search.MaxPageSize <= 0 {
		c.Search.MaxPageSize = DefaultMaxPageSize
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "cache/evidence.db"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.PruneInterval == 0 {
		c.Cache.PruneInterval = DefaultPruneInterval
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "dev"
	}
}
