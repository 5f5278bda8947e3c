package domain

import "strings"

// RouteClass is the gate's classification of a request path.
type RouteClass int

const (
	RouteOther RouteClass = iota
	RouteBypass
	RouteLogin
	RouteProtected
)

// RouteTable is a static prefix table consumed by the request gate.
// It is deployment-time configuration and never mutated at runtime.
type RouteTable struct {
	Bypass    []string
	Login     []string
	Protected []string
}

// Classify maps a request path to its route class. Bypass wins over login,
// and login over protected, so the login page can never fall into the
// protected branch and cause a redirect loop.
func (t RouteTable) Classify(path string) RouteClass {
	switch {
	case matchesPrefix(path, t.Bypass):
		return RouteBypass
	case matchesPrefix(path, t.Login):
		return RouteLogin
	case matchesPrefix(path, t.Protected):
		return RouteProtected
	}
	return RouteOther
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
		// Asset prefixes like /favicon.ico match exactly or as raw prefix.
		if strings.Contains(prefix, ".") && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
