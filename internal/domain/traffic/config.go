package traffic

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/trafficsim/backend/internal/domain/fingerprint"
)

// DefaultReferrerSources are the referrer headers applied when a run does
// not configure its own.
var DefaultReferrerSources = []string{
	"https://www.google.com/",
	"https://www.bing.com/",
	"https://duckduckgo.com/",
	"https://t.co/",
	"https://www.facebook.com/",
	"https://linkedin.com/",
}

// ConfigurationError reports the first invariant a run configuration
// violates. Construction returns no partial object alongside it.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

func newConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// Config describes one simulation run. Instances returned by NewConfig are
// validated; downstream components treat them as immutable and never
// re-check invariants.
type Config struct {
	TargetURL            string        `json:"target_url"`
	TotalSessions        int           `json:"total_sessions"`
	MaxConcurrent        int           `json:"max_concurrent"`
	Headless             bool          `json:"headless"`
	Proxies              []string      `json:"proxies,omitempty"`
	ReturningVisitorRate float64       `json:"returning_visitor_rate"`
	NavigationTimeout    time.Duration `json:"navigation_timeout"`
	MaxRetriesPerSession int           `json:"max_retries_per_session"`
	Personas             []Persona     `json:"personas"`
	GenderDistribution   Distribution  `json:"gender_distribution"`
	DeviceDistribution   Distribution  `json:"device_distribution"`
	AgeDistribution      Distribution  `json:"age_distribution"`
	CountryDistribution  Distribution  `json:"country_distribution"`
	ReferrerSources      []string      `json:"referrer_sources"`
	ModeType             ModeType      `json:"mode_type"`
	NetworkType          NetworkType   `json:"network_type"`

	// RampUpRate paces session admissions (sessions per second).
	// Zero disables pacing.
	RampUpRate float64 `json:"ramp_up_rate"`
}

// DefaultConfig returns the construction defaults for everything except the
// target and the session counts, which every run must supply.
func DefaultConfig() Config {
	return Config{
		Headless:             true,
		ReturningVisitorRate: 30.0,
		NavigationTimeout:    60 * time.Second,
		MaxRetriesPerSession: 2,
		Personas:             DefaultPersonas(),
		GenderDistribution:   Distribution{"Male": 50, "Female": 50},
		DeviceDistribution:   Distribution{"Desktop": 60, "Mobile": 30, "Tablet": 10},
		AgeDistribution:      Distribution{"18-24": 20, "25-34": 30, "35-44": 25, "45-54": 15, "55+": 10},
		CountryDistribution:  nil, // filled from the fingerprint catalog by NewConfig
		ReferrerSources:      append([]string(nil), DefaultReferrerSources...),
		ModeType:             ModeBot,
		NetworkType:          NetworkOnline,
	}
}

// NewConfig applies defaults to unset optional fields, validates every
// invariant, and returns the validated configuration. On any violation it
// returns a ConfigurationError for the first violated invariant and no
// partial object.
func NewConfig(c Config) (*Config, error) {
	applyConfigDefaults(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func applyConfigDefaults(c *Config) {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 60 * time.Second
	}
	if c.ModeType == "" {
		c.ModeType = ModeBot
	}
	if c.NetworkType == "" {
		c.NetworkType = NetworkOnline
	}
	if c.CountryDistribution == nil {
		c.CountryDistribution = Distribution(fingerprint.CountryWeights())
	}
}

func validateConfig(c *Config) error {
	u, err := url.Parse(c.TargetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return newConfigurationError("target_url", "a valid target URL starting with http:// or https:// is required")
	}
	if c.TotalSessions <= 0 {
		return newConfigurationError("total_sessions", "must be positive")
	}
	if c.MaxConcurrent <= 0 {
		return newConfigurationError("max_concurrent", "must be positive")
	}
	if c.MaxConcurrent > c.TotalSessions {
		return newConfigurationError("max_concurrent", "cannot be greater than total_sessions")
	}
	if c.ReturningVisitorRate < 0 || c.ReturningVisitorRate > 100 {
		return newConfigurationError("returning_visitor_rate", "must be between 0 and 100")
	}
	if len(c.Personas) == 0 {
		return newConfigurationError("personas", "at least one persona must be defined")
	}
	if err := validateExactDistribution(c.GenderDistribution, "gender_distribution"); err != nil {
		return err
	}
	if err := validateExactDistribution(c.DeviceDistribution, "device_distribution"); err != nil {
		return err
	}
	if err := validateExactDistribution(c.AgeDistribution, "age_distribution"); err != nil {
		return err
	}
	// Country weights come from the fingerprint catalog and are normalized
	// by their total, so no exact-sum requirement applies.
	if err := validateWeights(c.CountryDistribution, "country_distribution"); err != nil {
		return err
	}
	if c.MaxRetriesPerSession < 0 {
		return newConfigurationError("max_retries_per_session", "cannot be negative")
	}
	if !c.ModeType.IsValid() {
		return newConfigurationError("mode_type", "must be Human or Bot")
	}
	if !c.NetworkType.IsValid() {
		return newConfigurationError("network_type", "must be Online or Offline")
	}
	if c.RampUpRate < 0 {
		return newConfigurationError("ramp_up_rate", "cannot be negative")
	}
	// Unknown goal tags are tolerated here; they fail the mission at
	// execution time with an explicit unknown-mission result.
	for _, p := range c.Personas {
		if strings.TrimSpace(p.Name) == "" {
			return newConfigurationError("personas", "persona name cannot be empty")
		}
	}
	return nil
}

func validateExactDistribution(d Distribution, name string) error {
	if len(d) == 0 {
		return newConfigurationError(name, "distribution cannot be empty")
	}
	if d.Total() != 100 {
		return newConfigurationError(name, "the sum of distribution weights must be 100")
	}
	return nil
}

func validateWeights(d Distribution, name string) error {
	if len(d) == 0 {
		return newConfigurationError(name, "distribution cannot be empty")
	}
	for label, w := range d {
		if w <= 0 {
			return newConfigurationError(name, fmt.Sprintf("weight for %q must be positive", label))
		}
	}
	return nil
}
