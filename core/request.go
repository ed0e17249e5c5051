package core

import (
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/treelinecms/treeline/auth"
)

// A Request carries the actor and site of one HTTP request. It is created at
// the start of the request and passed explicitly; nothing about the actor is
// kept in process-wide state.
type Request struct {
	db      *CoreDB
	Actor   auth.User // nil if nobody is logged in
	Site    int
	writer  http.ResponseWriter
	request *http.Request
}

// NewRequest builds a Request for the given site. If the session holds a user
// id, the actor is loaded from the user backend.
func (c *CoreDB) NewRequest(w http.ResponseWriter, httpreq *http.Request, site int) *Request {

	var req = &Request{
		db:      c,
		Site:    site,
		writer:  w,
		request: httpreq,
	}

	if uid := c.SessionManager.GetInt(httpreq.Context(), "uid"); uid != 0 {
		u, err := c.Auth.GetUser(uid)
		if u != nil && err == nil {
			req.Actor = u
		}
		// ignore errors, the request proceeds anonymously
	}

	return req
}

// Login tries to log in a user. On success, the user id is stored in the
// session.
func (req *Request) Login(name, enteredPass string) error {
	if req.LoggedIn() {
		return nil
	}
	var u, err = req.db.Auth.LoginUser(name, enteredPass)
	if err != nil {
		return err
	}
	req.Actor = u
	req.db.SessionManager.Put(req.request.Context(), "uid", u.ID())
	return nil
}

func (req *Request) LoggedIn() bool {
	return req.Actor != nil
}

// Logout removes the user id from the session and calls req.Cleanup().
func (req *Request) Logout() {
	if req.LoggedIn() {
		req.db.SessionManager.Remove(req.request.Context(), "uid")
		req.Actor = nil
	}
	req.Cleanup()
}

// Cleanup destroys the session if it has been modified and is empty now, so
// no actor state survives the request. Call it when the request ends.
func (req *Request) Cleanup() {
	var sessMan = req.db.SessionManager
	if sessMan.Status(req.request.Context()) == scs.Modified && len(sessMan.Keys(req.request.Context())) == 0 {
		_ = sessMan.Destroy(req.request.Context())
	}
}

// HasPermission resolves a capability for this request's actor.
func (req *Request) HasPermission(n *Node, cap Capability) (bool, error) {
	return req.db.HasPermission(req.Actor, n, cap)
}
