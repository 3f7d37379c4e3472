package config

import "strings"

const (
	baseDomainVar       = "BASE_DOMAIN"
	publicPrefixesVar   = "PUBLIC_PREFIXES"
	platformPrefixesVar = "PLATFORM_PREFIXES"
	tenantPrefixesVar   = "TENANT_PREFIXES"
	loginPathVar        = "LOGIN_PATH"
)

// GatewayConfig supplies the host and route classification tables. The
// routing table belongs to the surrounding application; the gateway core
// only consumes it.
type GatewayConfig interface {
	GetBaseDomain() string
	GetPublicPrefixes() []string
	GetPlatformPrefixes() []string
	GetTenantPrefixes() []string
	GetLoginPath() string
}

type Gateway struct{}

var _ GatewayConfig = Gateway{}

// GetBaseDomain returns the platform root domain (e.g. "app.example.com").
// There is no default: a gateway without a base domain cannot classify
// hosts, so Validate fails at boot when this is empty.
func (Gateway) GetBaseDomain() string {
	return GetEnv(baseDomainVar, "")
}

func (Gateway) GetPublicPrefixes() []string {
	return splitPrefixes(GetEnv(publicPrefixesVar, "/login,/auth,/healthz,/static"))
}

func (Gateway) GetPlatformPrefixes() []string {
	return splitPrefixes(GetEnv(platformPrefixesVar, "/platform,/admin"))
}

func (Gateway) GetTenantPrefixes() []string {
	return splitPrefixes(GetEnv(tenantPrefixesVar, "/dashboard,/settings"))
}

func (Gateway) GetLoginPath() string {
	return GetEnv(loginPathVar, "/login")
}

func splitPrefixes(raw string) []string {
	parts := strings.Split(raw, ",")
	prefixes := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		prefixes = append(prefixes, p)
	}
	return prefixes
}
