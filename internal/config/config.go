package config

import "github.com/saasgate/tenant-gateway/internal/errors"

type Config interface {
	EnvConfig
	GatewayConfig
	CookieConfig
	HandoffConfig
	SigningConfig
}

type mainConfig struct {
	EnvVars
	Gateway
	Cookie
	Handoff
	Signing
}

func New() Config {
	return mainConfig{}
}

// Validate checks the configuration that the gateway cannot run without.
// Called once at startup; a failure here is fatal, never per-request.
func Validate(c Config) error {
	if c.GetBaseDomain() == "" {
		return errors.ErrMissingBaseDomain
	}
	return nil
}
