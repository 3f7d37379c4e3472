// Package routes maps request paths to a route class using a static,
// caller-supplied table of path prefixes. The table is owned by the
// surrounding application; the gateway core only evaluates it.
package routes

import (
	"sort"
	"strings"
)

// Class categorises a URL path.
type Class string

const (
	// Public routes are reachable without any session.
	Public Class = "public"
	// PlatformOnly routes exist only on the platform root domain.
	PlatformOnly Class = "platform_only"
	// TenantOnly routes exist only on tenant subdomains.
	TenantOnly Class = "tenant_only"
	// Unrestricted routes need a valid session but live on every host.
	Unrestricted Class = "unrestricted"
)

// Rule binds a path prefix to a class. A prefix matches the exact path
// and anything below it on a segment boundary, so "/admin" matches
// "/admin" and "/admin/users" but not "/administrator".
type Rule struct {
	Prefix string
	Class  Class
}

// Table is an immutable route classification table. The default class is
// explicit rather than inferred from the host, so an unmatched path is a
// visible table decision and never a silent fallback.
type Table struct {
	rules        []Rule
	defaultClass Class
}

// NewTable builds a table from rules. Rules are ordered longest prefix
// first so that the most specific rule always wins.
func NewTable(rules []Rule, defaultClass Class) *Table {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &Table{rules: sorted, defaultClass: defaultClass}
}

// Classify returns the class of the longest matching prefix, or the
// table's default class when nothing matches.
func (t *Table) Classify(path string) Class {
	if path == "" {
		path = "/"
	}
	for _, rule := range t.rules {
		if matchesPrefix(path, rule.Prefix) {
			return rule.Class
		}
	}
	return t.defaultClass
}

func matchesPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
