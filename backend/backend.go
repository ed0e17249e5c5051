// Package backend provides the administrative JSON API: authentication,
// node editing, publishing and permission management.
package backend

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/treelinecms/treeline/core"
)

var ErrAuth = errors.New("unauthorized")

// we need the CoreDB in the backend
type context struct {
	*core.Request
	db     *core.CoreDB
	writer http.ResponseWriter
}

func (ctx *context) JSON(v interface{}) error {
	ctx.writer.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(ctx.writer).Encode(v)
}

func (ctx *context) Decode(req *http.Request, v interface{}) error {
	return json.NewDecoder(req.Body).Decode(v)
}

// GetNode loads a node and checks the given capability for the actor.
func (ctx *context) GetNode(params httprouter.Params, cap core.Capability) (*core.Node, error) {
	id, err := strconv.Atoi(params.ByName("id"))
	if err != nil {
		return nil, httpError{http.StatusBadRequest, "bad node id"}
	}
	n, err := ctx.db.GetNode(id)
	if ctx.db.IsNotFound(err) {
		return nil, httpError{http.StatusNotFound, "no such node"}
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.db.RequirePermission(ctx.Actor, n, cap); err != nil {
		// an actor who can't even view the node must not learn that it
		// exists
		if canView, viewErr := ctx.db.HasPermission(ctx.Actor, n, core.CapView); viewErr == nil && !canView {
			return nil, httpError{http.StatusNotFound, "no such node"}
		}
		return nil, err
	}
	return n, nil
}

type httpError struct {
	status  int
	message string
}

func (e httpError) Error() string {
	return e.message
}

func middleware(db *core.CoreDB, requireLoggedIn bool, f func(http.ResponseWriter, *http.Request, *context, httprouter.Params) error) func(http.ResponseWriter, *http.Request, httprouter.Params) {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {

		// site is only relevant for site-wide queries, node checks use the node's own site
		site, _ := strconv.Atoi(req.URL.Query().Get("site"))

		var ctx = &context{
			Request: db.NewRequest(w, req, site),
			db:      db,
			writer:  w,
		}
		defer ctx.Cleanup()

		if requireLoggedIn && !ctx.LoggedIn() {
			writeError(w, httpError{http.StatusUnauthorized, "login required"})
			return
		}

		if err := f(w, req, ctx, params); err != nil {
			writeError(w, err)
		}
	}
}

func writeError(w http.ResponseWriter, err error) {

	var status = http.StatusInternalServerError
	var he httpError
	if errors.As(err, &he) {
		status = he.status
	} else if errors.Is(err, core.ErrUnauthorized) || errors.Is(err, ErrAuth) {
		status = http.StatusForbidden
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func NewBackendRouter(db *core.CoreDB) http.Handler {

	var router = httprouter.New()

	// public
	router.POST("/login", middleware(db, false, login))

	// private
	router.GET("/logout", middleware(db, true, logout))
	router.GET("/node/:id", middleware(db, true, getNode))
	router.POST("/create", middleware(db, true, create))
	router.POST("/node/:id/move", middleware(db, true, move))
	router.POST("/node/:id/delete", middleware(db, true, del))
	router.POST("/node/:id/publish", middleware(db, true, publish))
	router.POST("/node/:id/unpublish", middleware(db, true, unpublish))
	router.POST("/node/:id/apphook", middleware(db, true, setApphook))
	router.POST("/node/:id/translation", middleware(db, true, setTranslation))
	router.GET("/node/:id/grants", middleware(db, true, grants))
	router.POST("/node/:id/grants", middleware(db, true, addGrant))
	router.POST("/node/:id/grants/:grant/remove", middleware(db, true, removeGrant))
	router.POST("/global-grants", middleware(db, true, addGlobalGrant))
	router.GET("/users", middleware(db, true, users))
	router.POST("/users", middleware(db, true, insertUser))
	router.GET("/groups", middleware(db, true, groups))
	router.POST("/groups", middleware(db, true, insertGroup))

	return router
}

func login(w http.ResponseWriter, req *http.Request, ctx *context, _ httprouter.Params) error {

	var input struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := ctx.Decode(req, &input); err != nil {
		return httpError{http.StatusBadRequest, "bad request body"}
	}

	if err := ctx.Login(input.Name, input.Password); err != nil {
		return httpError{http.StatusUnauthorized, "login failed"}
	}

	return ctx.JSON(map[string]interface{}{
		"id":   ctx.Actor.ID(),
		"name": ctx.Actor.Name(),
	})
}

func logout(w http.ResponseWriter, req *http.Request, ctx *context, _ httprouter.Params) error {
	ctx.Logout()
	return ctx.JSON(map[string]bool{"ok": true})
}
