// Package auth carries the authenticated technician session through the
// network-touching components. The session is injected at construction;
// nothing reads identity or tokens from ambient globals.
package auth

import (
	"errors"
	"log"
	"net/http"
	"sync"
)

// ErrUnauthorized is returned by any operation rejected by the backend for
// expired or invalid credentials. Every network-touching component maps its
// own flavour of auth failure onto this one value.
var ErrUnauthorized = errors.New("session unauthorized")

// Session identifies the authenticated technician.
type Session struct {
	TechCode   string
	Token      string
	CompanyRef string // opaque company scoping identifier, passed through
}

// Context is the shared session context. It owns the single global
// unauthorized signal: all callers funnel auth rejections here, and exactly
// one handler (installed by the wiring) reacts.
type Context struct {
	session Session

	mu      sync.Mutex
	handler func()
}

// NewContext creates a session context for the given technician session.
func NewContext(session Session) *Context {
	return &Context{session: session}
}

// Session returns the technician session.
func (c *Context) Session() Session {
	return c.session
}

// OnUnauthorized installs the single handler invoked when any component
// reports an authorization failure. Installing replaces a prior handler.
func (c *Context) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = fn
}

// SignalUnauthorized reports an authorization failure from the named source
// and fires the installed handler.
func (c *Context) SignalUnauthorized(source string) {
	log.Printf("authorization rejected by backend (source: %s); session requires re-authentication", source)
	c.mu.Lock()
	fn := c.handler
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Authorize stamps the session credentials onto an outbound request.
func (c *Context) Authorize(req *http.Request) {
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	if c.session.CompanyRef != "" {
		req.Header.Set("X-Company-Ref", c.session.CompanyRef)
	}
}
