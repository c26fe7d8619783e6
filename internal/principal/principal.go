// Package principal resolves the identity on whose behalf repository calls run.
package principal

import "strings"

// Resolver reports the current principal id. It must be synchronous and free
// of side effects; ok is false when no one is signed in.
type Resolver interface {
	CurrentPrincipalID() (id string, ok bool)
}

// Static always resolves to the same principal. An empty or blank Static
// resolves to no principal.
type Static string

// CurrentPrincipalID implements Resolver.
func (s Static) CurrentPrincipalID() (string, bool) {
	id := strings.TrimSpace(string(s))
	return id, id != ""
}

// Anonymous never resolves a principal.
var Anonymous Resolver = Static("")

// Func adapts a function to Resolver.
type Func func() (string, bool)

// CurrentPrincipalID implements Resolver.
func (f Func) CurrentPrincipalID() (string, bool) {
	if f == nil {
		return "", false
	}
	id, ok := f()
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}

// Resolve returns the principal id from r, treating a nil resolver as anonymous.
func Resolve(r Resolver) (string, bool) {
	if r == nil {
		return "", false
	}
	return r.CurrentPrincipalID()
}
