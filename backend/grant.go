package backend

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/treelinecms/treeline/core"
)

type grantJSON struct {
	ID      int    `json:"id"`
	NodeID  int    `json:"node_id"`
	UserID  int    `json:"user_id,omitempty"`
	GroupID int    `json:"group_id,omitempty"`
	Scope   int    `json:"scope"`
	Caps    uint16 `json:"caps"`
}

func grants(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	n, err := ctx.GetNode(params, core.CapPermissions)
	if err != nil {
		return err
	}

	gs, err := ctx.db.GetGrants(n.ID)
	if err != nil {
		return err
	}

	var result = []grantJSON{}
	for _, g := range gs {
		result = append(result, grantJSON{
			ID:      g.ID,
			NodeID:  g.NodeID,
			UserID:  g.UserID,
			GroupID: g.GroupID,
			Scope:   int(g.Scope),
			Caps:    uint16(g.Caps),
		})
	}

	return ctx.JSON(result)
}

func addGrant(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	n, err := ctx.GetNode(params, core.CapPermissions)
	if err != nil {
		return err
	}

	var input grantJSON
	if err := ctx.Decode(req, &input); err != nil {
		return httpError{http.StatusBadRequest, "bad request body"}
	}

	var g = &core.Grant{
		NodeID:  n.ID,
		UserID:  input.UserID,
		GroupID: input.GroupID,
		Scope:   core.Scope(input.Scope),
		Caps:    core.Capability(input.Caps),
	}
	if err := ctx.db.AddGrant(g); err != nil {
		return httpError{http.StatusBadRequest, err.Error()}
	}

	input.ID = g.ID
	input.NodeID = g.NodeID
	return ctx.JSON(input)
}

func removeGrant(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	n, err := ctx.GetNode(params, core.CapPermissions)
	if err != nil {
		return err
	}

	grantID, err := strconv.Atoi(params.ByName("grant"))
	if err != nil {
		return httpError{http.StatusBadRequest, "bad grant id"}
	}

	// the grant must belong to the node the actor was checked against
	gs, err := ctx.db.GetGrants(n.ID)
	if err != nil {
		return err
	}
	var found bool
	for _, g := range gs {
		if g.ID == grantID {
			found = true
			break
		}
	}
	if !found {
		return httpError{http.StatusNotFound, "no such grant"}
	}

	if err := ctx.db.RemoveGrant(grantID); err != nil {
		return err
	}

	return ctx.JSON(map[string]bool{"ok": true})
}

func addGlobalGrant(w http.ResponseWriter, req *http.Request, ctx *context, _ httprouter.Params) error {

	if ctx.Actor == nil || !ctx.Actor.Superuser() {
		return ErrAuth
	}

	var input struct {
		UserID  int    `json:"user_id"`
		GroupID int    `json:"group_id"`
		Caps    uint16 `json:"caps"`
		Sites   []int  `json:"sites"`
	}
	if err := ctx.Decode(req, &input); err != nil {
		return httpError{http.StatusBadRequest, "bad request body"}
	}

	var g = &core.GlobalGrant{
		UserID:  input.UserID,
		GroupID: input.GroupID,
		Caps:    core.Capability(input.Caps),
		Sites:   input.Sites,
	}
	if err := ctx.db.AddGlobalGrant(g); err != nil {
		return httpError{http.StatusBadRequest, err.Error()}
	}

	return ctx.JSON(map[string]int{"id": g.ID})
}
