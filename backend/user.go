package backend

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func requireSuperuser(ctx *context) error {
	if ctx.Actor == nil || !ctx.Actor.Superuser() {
		return ErrAuth
	}
	return nil
}

func users(w http.ResponseWriter, req *http.Request, ctx *context, _ httprouter.Params) error {

	if err := requireSuperuser(ctx); err != nil {
		return err
	}

	all, err := ctx.db.Auth.GetAllUsers(1000, 0)
	if err != nil {
		return err
	}

	type userJSON struct {
		ID        int    `json:"id"`
		Name      string `json:"name"`
		Superuser bool   `json:"superuser,omitempty"`
	}

	var result = []userJSON{}
	for _, u := range all {
		result = append(result, userJSON{u.ID(), u.Name(), u.Superuser()})
	}

	return ctx.JSON(result)
}

func insertUser(w http.ResponseWriter, req *http.Request, ctx *context, _ httprouter.Params) error {

	if err := requireSuperuser(ctx); err != nil {
		return err
	}

	var input struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := ctx.Decode(req, &input); err != nil {
		return httpError{http.StatusBadRequest, "bad request body"}
	}
	if input.Name == "" {
		return httpError{http.StatusBadRequest, "name required"}
	}

	u, err := ctx.db.Auth.InsertUser(input.Name)
	if err != nil {
		return err
	}
	if input.Password != "" {
		if err := ctx.db.Auth.SetPassword(u, input.Password); err != nil {
			return err
		}
	}

	return ctx.JSON(map[string]interface{}{"id": u.ID(), "name": u.Name()})
}

func groups(w http.ResponseWriter, req *http.Request, ctx *context, _ httprouter.Params) error {

	if err := requireSuperuser(ctx); err != nil {
		return err
	}

	all, err := ctx.db.Auth.GetAllGroups(1000, 0)
	if err != nil {
		return err
	}

	type groupJSON struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	var result = []groupJSON{}
	for _, g := range all {
		result = append(result, groupJSON{g.ID(), g.Name()})
	}

	return ctx.JSON(result)
}

func insertGroup(w http.ResponseWriter, req *http.Request, ctx *context, _ httprouter.Params) error {

	if err := requireSuperuser(ctx); err != nil {
		return err
	}

	var input struct {
		Name string `json:"name"`
	}
	if err := ctx.Decode(req, &input); err != nil {
		return httpError{http.StatusBadRequest, "bad request body"}
	}
	if input.Name == "" {
		return httpError{http.StatusBadRequest, "name required"}
	}

	g, err := ctx.db.Auth.InsertGroup(input.Name)
	if err != nil {
		return err
	}

	return ctx.JSON(map[string]interface{}{"id": g.ID(), "name": g.Name()})
}
