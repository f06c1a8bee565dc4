package config

import (
	"fmt"
	"strings"
)

// Storage drivers.
const (
	StorageDriverGCS    = "gcs"
	StorageDriverMemory = "memory"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0 (got %s)", c.Auth.AccessTokenTTL)
	}

	if err := c.Emission.validate(); err != nil {
		return fmt.Errorf("emission: %w", err)
	}

	if err := c.Storage.validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	return nil
}

func (e *EmissionConfig) validate() error {
	if e.GraceDelay < 0 {
		return fmt.Errorf("grace_delay must be >= 0 (got %s)", e.GraceDelay)
	}
	if e.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be > 0 (got %s)", e.PollInterval)
	}
	if e.ClaimLimit <= 0 {
		return fmt.Errorf("claim_limit must be > 0 (got %d)", e.ClaimLimit)
	}
	if e.Workers <= 0 {
		return fmt.Errorf("workers must be > 0 (got %d)", e.Workers)
	}
	if e.RenderTimeout <= 0 {
		return fmt.Errorf("render_timeout must be > 0 (got %s)", e.RenderTimeout)
	}
	if e.StaleAfter <= e.RenderTimeout {
		return fmt.Errorf("stale_after (%s) must exceed render_timeout (%s)", e.StaleAfter, e.RenderTimeout)
	}
	if e.ReprocessCooldown < 0 {
		return fmt.Errorf("reprocess_cooldown must be >= 0 (got %s)", e.ReprocessCooldown)
	}
	if e.HighExclusionRatio <= 0 || e.HighExclusionRatio >= 1 {
		return fmt.Errorf("high_exclusion_ratio must be in (0,1) (got %v)", e.HighExclusionRatio)
	}
	if e.RenderCacheSize <= 0 {
		return fmt.Errorf("render_cache_size must be > 0 (got %d)", e.RenderCacheSize)
	}
	return nil
}

func (s *StorageConfig) validate() error {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	switch s.Driver {
	case StorageDriverGCS:
		if s.Bucket == "" {
			return fmt.Errorf("bucket is required for the gcs driver")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown driver %q (want gcs or memory)", s.Driver)
	}
	if s.UploadAttempts == 0 {
		return fmt.Errorf("upload_attempts must be > 0")
	}
	return nil
}
