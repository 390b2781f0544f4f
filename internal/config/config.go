package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chairtools/chairstat/internal/openreview"
	"github.com/chairtools/chairstat/internal/report"
	"github.com/chairtools/chairstat/internal/snapshot"
	"github.com/chairtools/chairstat/internal/stats"
	"github.com/chairtools/chairstat/internal/venue"
)

// EnvPrefix prefixes every environment variable, e.g. CHAIRSTAT_VENUE.
const EnvPrefix = "CHAIRSTAT"

// Config is the chairstat configuration file.
type Config struct {
	// Venue id, e.g. aclweb.org/ACL/ARR/2023/December.
	Venue   string `mapstructure:"venue" json:"venue,omitempty" yaml:"venue,omitempty" jsonschema:"description=Venue id on the review platform"`
	BaseURL string `mapstructure:"base_url" json:"base_url,omitempty" yaml:"base_url,omitempty" jsonschema:"description=Platform API base URL"`

	Username string `mapstructure:"username" json:"username,omitempty" yaml:"username,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty" yaml:"password,omitempty" jsonschema:"description=Prefer the CHAIRSTAT_PASSWORD environment variable"`
	Token    string `mapstructure:"token" json:"token,omitempty" yaml:"token,omitempty" jsonschema:"description=Pre-issued API token; skips the login request"`

	Invitations Invitations     `mapstructure:"invitations" json:"invitations" yaml:"invitations"`
	Capacity    CapacityConfig  `mapstructure:"capacity" json:"capacity" yaml:"capacity"`
	Progress    ProgressConfig  `mapstructure:"progress" json:"progress" yaml:"progress"`
	Recommend   RecommendConfig `mapstructure:"recommend" json:"recommend" yaml:"recommend"`
	API         APIConfig       `mapstructure:"api" json:"api" yaml:"api"`
	Cache       CacheConfig     `mapstructure:"cache" json:"cache" yaml:"cache"`
	Serve       ServeConfig     `mapstructure:"serve" json:"serve" yaml:"serve"`
}

// Invitations names the venue collections. Venues that renamed them
// override the defaults here.
type Invitations struct {
	Submission       string `mapstructure:"submission" json:"submission" yaml:"submission"`
	ActiveSubmission string `mapstructure:"active_submission" json:"active_submission" yaml:"active_submission" jsonschema:"description=Empty to treat every submission as active"`
	Load             string `mapstructure:"load" json:"load" yaml:"load"`
	Assignment       string `mapstructure:"assignment" json:"assignment" yaml:"assignment"`
	MetaReview       string `mapstructure:"meta_review" json:"meta_review" yaml:"meta_review"`
}

type CapacityConfig struct {
	Roles       []string `mapstructure:"roles" json:"roles" yaml:"roles"`
	MissingLoad string   `mapstructure:"missing_load" json:"missing_load" yaml:"missing_load" jsonschema:"enum=skip,enum=default"`
	DefaultLoad int      `mapstructure:"default_load" json:"default_load" yaml:"default_load"`
}

type ProgressConfig struct {
	RequiredReviews int    `mapstructure:"required_reviews" json:"required_reviews" yaml:"required_reviews"`
	OutputFile      string `mapstructure:"output_file" json:"output_file" yaml:"output_file"`
	Emails          bool   `mapstructure:"emails" json:"emails" yaml:"emails"`
}

type RecommendConfig struct {
	Tracks     []string `mapstructure:"tracks" json:"tracks,omitempty" yaml:"tracks,omitempty"`
	COIPapers  []int    `mapstructure:"coi_papers" json:"coi_papers,omitempty" yaml:"coi_papers,omitempty"`
	OutputFile string   `mapstructure:"output_file" json:"output_file" yaml:"output_file"`
}

type APIConfig struct {
	Timeout           time.Duration          `mapstructure:"timeout" json:"timeout" yaml:"timeout" jsonschema:"type=string"`
	RequestsPerSecond float64                `mapstructure:"requests_per_second" json:"requests_per_second" yaml:"requests_per_second"`
	PageSize          int                    `mapstructure:"page_size" json:"page_size" yaml:"page_size"`
	Retry             openreview.RetryConfig `mapstructure:"retry" json:"retry" yaml:"retry"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Dir     string        `mapstructure:"dir" json:"dir,omitempty" yaml:"dir,omitempty"`
	TTL     time.Duration `mapstructure:"ttl" json:"ttl" yaml:"ttl" jsonschema:"type=string"`
}

type ServeConfig struct {
	Host            string        `mapstructure:"host" json:"host" yaml:"host"`
	Port            int           `mapstructure:"port" json:"port" yaml:"port"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" json:"refresh_interval" yaml:"refresh_interval" jsonschema:"type=string"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := venue.New("")
	return &Config{
		BaseURL: openreview.DefaultBaseURL,
		Invitations: Invitations{
			Submission:       v.SubmissionInvitation,
			ActiveSubmission: v.ActiveSubmissionInvitation,
			Load:             v.LoadInvitation,
			Assignment:       v.AssignmentInvitation,
			MetaReview:       v.MetaReviewInvitation,
		},
		Capacity: CapacityConfig{
			Roles:       []string{string(venue.RoleAreaChairs), string(venue.RoleReviewers)},
			MissingLoad: string(stats.MissingLoadSkip),
		},
		Progress: ProgressConfig{
			RequiredReviews: stats.DefaultRequiredReviews,
			OutputFile:      report.DefaultUrgentFile,
			Emails:          true,
		},
		Recommend: RecommendConfig{
			OutputFile: report.DefaultRecommendationFile,
		},
		API: APIConfig{
			Timeout:           60 * time.Second,
			RequestsPerSecond: 5,
			PageSize:          openreview.DefaultPageSize,
			Retry:             *openreview.DefaultRetryConfig(),
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     snapshot.DefaultTTL,
		},
		Serve: ServeConfig{
			Host:            "localhost",
			Port:            9464,
			RefreshInterval: 15 * time.Minute,
		},
	}
}

// SetDefaults registers every default with v so that environment variables
// bound through AutomaticEnv reach nested keys.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("venue", d.Venue)
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("username", d.Username)
	v.SetDefault("password", d.Password)
	v.SetDefault("token", d.Token)

	v.SetDefault("invitations.submission", d.Invitations.Submission)
	v.SetDefault("invitations.active_submission", d.Invitations.ActiveSubmission)
	v.SetDefault("invitations.load", d.Invitations.Load)
	v.SetDefault("invitations.assignment", d.Invitations.Assignment)
	v.SetDefault("invitations.meta_review", d.Invitations.MetaReview)

	v.SetDefault("capacity.roles", d.Capacity.Roles)
	v.SetDefault("capacity.missing_load", d.Capacity.MissingLoad)
	v.SetDefault("capacity.default_load", d.Capacity.DefaultLoad)

	v.SetDefault("progress.required_reviews", d.Progress.RequiredReviews)
	v.SetDefault("progress.output_file", d.Progress.OutputFile)
	v.SetDefault("progress.emails", d.Progress.Emails)

	v.SetDefault("recommend.output_file", d.Recommend.OutputFile)

	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.requests_per_second", d.API.RequestsPerSecond)
	v.SetDefault("api.page_size", d.API.PageSize)
	v.SetDefault("api.retry.max_attempts", d.API.Retry.MaxAttempts)
	v.SetDefault("api.retry.initial_delay", d.API.Retry.InitialDelay)
	v.SetDefault("api.retry.max_delay", d.API.Retry.MaxDelay)
	v.SetDefault("api.retry.backoff_factor", d.API.Retry.BackoffFactor)
	v.SetDefault("api.retry.jitter", d.API.Retry.Jitter)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("serve.host", d.Serve.Host)
	v.SetDefault("serve.port", d.Serve.Port)
	v.SetDefault("serve.refresh_interval", d.Serve.RefreshInterval)
}

// ConfigureEnv makes nested keys readable from CHAIRSTAT_ variables, e.g.
// progress.required_reviews from CHAIRSTAT_PROGRESS_REQUIRED_REVIEWS.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load decodes the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.Venue = strings.Trim(strings.TrimSpace(cfg.Venue), "/")
	return cfg, nil
}

// Validate reports every invalid setting at once. An empty venue is only
// rejected when requireVenue is set, since it can still be prompted for.
func (c *Config) Validate(requireVenue bool) error {
	var errs []error

	if requireVenue && c.Venue == "" {
		errs = append(errs, errors.New("venue is required"))
	}
	if c.Progress.RequiredReviews <= 0 {
		errs = append(errs, fmt.Errorf("progress.required_reviews must be positive, got %d", c.Progress.RequiredReviews))
	}
	if _, err := stats.ParseMissingLoadPolicy(c.Capacity.MissingLoad); err != nil {
		errs = append(errs, fmt.Errorf("capacity.missing_load: %w", err))
	}
	if c.Capacity.DefaultLoad < 0 {
		errs = append(errs, fmt.Errorf("capacity.default_load must not be negative, got %d", c.Capacity.DefaultLoad))
	}
	if c.API.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("api.page_size must be positive, got %d", c.API.PageSize))
	}
	if c.API.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("api.requests_per_second must not be negative, got %g", c.API.RequestsPerSecond))
	}
	if c.API.Timeout < 0 {
		errs = append(errs, fmt.Errorf("api.timeout must not be negative, got %s", c.API.Timeout))
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		errs = append(errs, fmt.Errorf("serve.port out of range: %d", c.Serve.Port))
	}

	return errors.Join(errs...)
}

// VenueModel returns the venue with the configured invitation names.
func (c *Config) VenueModel() venue.Venue {
	v := venue.New(c.Venue)
	v.SubmissionInvitation = c.Invitations.Submission
	v.ActiveSubmissionInvitation = c.Invitations.ActiveSubmission
	v.LoadInvitation = c.Invitations.Load
	v.AssignmentInvitation = c.Invitations.Assignment
	v.MetaReviewInvitation = c.Invitations.MetaReview
	return v
}

// Roles returns the configured capacity roles.
func (c *Config) Roles() []venue.Role {
	roles := make([]venue.Role, 0, len(c.Capacity.Roles))
	for _, r := range c.Capacity.Roles {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, venue.Role(r))
		}
	}
	return roles
}

// CapacityPolicy returns the missing-load policy. Call Validate first.
func (c *Config) CapacityPolicy() stats.CapacityPolicy {
	missing, _ := stats.ParseMissingLoadPolicy(c.Capacity.MissingLoad)
	return stats.CapacityPolicy{Missing: missing, DefaultLoad: c.Capacity.DefaultLoad}
}
