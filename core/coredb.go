package core

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/rs/zerolog"
	"github.com/treelinecms/treeline/apphook"
	"github.com/treelinecms/treeline/auth"
)

// CoreDB ties the engine together: the persistent store, the user and group
// backend, the apphook registry, the router and the revision protocol.
type CoreDB struct {
	Store
	Auth           *auth.AuthDB
	Apphooks       apphook.Registry
	Extensions     []PublishExtension
	SessionManager *scs.SessionManager
	Log            zerolog.Logger
	Router         *Router
	Revisions      *Sync
}

func (c *CoreDB) Init(sessionStore scs.Store, cookiePath string) error {

	c.SessionManager = scs.New()
	c.SessionManager.Store = sessionStore
	c.SessionManager.Cookie.Path = cookiePath + "/"
	c.SessionManager.Cookie.Persist = false                 // don't store cookie across browser sessions
	c.SessionManager.Cookie.SameSite = http.SameSiteLaxMode // good CSRF protection if HTTP GET doesn't modify anything
	c.SessionManager.Cookie.Secure = false                  // else running on localhost or behind a http proxy fails
	c.SessionManager.IdleTimeout = 12 * time.Hour
	c.SessionManager.Lifetime = 720 * time.Hour

	if c.Apphooks == nil {
		c.Apphooks = apphook.DefaultRegistry
	}

	c.Router = NewRouter(c)
	c.Revisions = NewSync(c.Store, c.Router.Rebuild)

	return nil
}

// SetApphook changes the route set attached to a draft node and mints a new
// revision token, so every process rebuilds its routing table.
func (c *CoreDB) SetApphook(n *Node, code, namespace string) error {

	if code != "" {
		if _, ok := c.Apphooks.Get(code); !ok {
			return &UnknownApphookError{Code: code}
		}
	}

	if n.Apphook == code && n.ApphookNamespace == namespace {
		return nil
	}

	n.Apphook = code
	n.ApphookNamespace = namespace
	if err := c.UpdateNode(n); err != nil {
		return err
	}

	return c.Revisions.MarkChanged()
}

type UnknownApphookError struct {
	Code string
}

func (e *UnknownApphookError) Error() string {
	return "apphook " + e.Code + " is not registered"
}
