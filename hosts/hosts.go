// Package hosts classifies a request hostname as the platform root domain
// or a tenant subdomain. Classification is a total, pure function: no
// network I/O, no errors, same input always yields the same class.
package hosts

import (
	"net"
	"strings"
)

// Kind discriminates the host class.
type Kind string

const (
	// Platform is the root/base domain serving platform administration.
	Platform Kind = "platform"
	// TenantSubdomain is a per-customer subdomain.
	TenantSubdomain Kind = "tenant"
)

// Class is the result of classifying a hostname. Subdomain is only set
// when Kind is TenantSubdomain.
type Class struct {
	Kind      Kind
	Subdomain string
}

// IsPlatform reports whether the host is the platform root domain.
func (c Class) IsPlatform() bool {
	return c.Kind == Platform
}

// Classify maps a hostname to its host class against the configured base
// domain. Rules, in order:
//  1. "localhost" or a loopback IP literal is Platform (developer convenience)
//  2. an exact match on baseDomain is Platform
//  3. a "<sub>." + baseDomain suffix is TenantSubdomain(sub)
//  4. otherwise fall back on DNS label counting: two labels or fewer is
//     Platform, more means the leftmost label is treated as a subdomain
func Classify(hostname, baseDomain string) Class {
	hostname = normalise(hostname)
	baseDomain = normalise(baseDomain)

	if hostname == "localhost" || isLoopbackLiteral(hostname) {
		return Class{Kind: Platform}
	}

	if hostname == baseDomain {
		return Class{Kind: Platform}
	}

	if baseDomain != "" && strings.HasSuffix(hostname, "."+baseDomain) {
		sub := strings.TrimSuffix(hostname, "."+baseDomain)
		return Class{Kind: TenantSubdomain, Subdomain: sub}
	}

	labels := strings.Split(hostname, ".")
	if len(labels) <= 2 {
		return Class{Kind: Platform}
	}
	return Class{Kind: TenantSubdomain, Subdomain: labels[0]}
}

// normalise lowercases a hostname and strips any port suffix.
func normalise(hostname string) string {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if host, _, err := net.SplitHostPort(hostname); err == nil {
		hostname = host
	}
	return strings.TrimSuffix(hostname, ".")
}

func isLoopbackLiteral(hostname string) bool {
	hostname = strings.Trim(hostname, "[]")
	ip := net.ParseIP(hostname)
	return ip != nil && ip.IsLoopback()
}
