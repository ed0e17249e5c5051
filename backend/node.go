package backend

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/treelinecms/treeline/core"
)

type nodeJSON struct {
	ID               int    `json:"id"`
	ParentID         int    `json:"parent_id"`
	Site             int    `json:"site"`
	IsDraft          bool   `json:"is_draft"`
	PublicID         int    `json:"public_id,omitempty"`
	Level            int    `json:"level"`
	Apphook          string `json:"apphook,omitempty"`
	ApphookNamespace string `json:"apphook_namespace,omitempty"`
	SoftRoot         bool   `json:"soft_root,omitempty"`
	InNavigation     bool   `json:"in_navigation"`
}

type translationJSON struct {
	Language     string `json:"language"`
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	Path         string `json:"path"`
	Redirect     string `json:"redirect,omitempty"`
	OverridePath bool   `json:"override_path,omitempty"`
}

func marshalNode(n *core.Node) nodeJSON {
	return nodeJSON{
		ID:               n.ID,
		ParentID:         n.ParentID,
		Site:             n.Site,
		IsDraft:          n.IsDraft,
		PublicID:         n.PublicID,
		Level:            n.Level,
		Apphook:          n.Apphook,
		ApphookNamespace: n.ApphookNamespace,
		SoftRoot:         n.SoftRoot,
		InNavigation:     n.InNavigation,
	}
}

func getNode(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	n, err := ctx.GetNode(params, core.CapView)
	if err != nil {
		return err
	}

	translations, err := ctx.db.GetTranslations(n.ID)
	if err != nil {
		return err
	}

	var trs = []translationJSON{}
	for _, t := range translations {
		trs = append(trs, translationJSON{
			Language:     t.Language,
			Title:        t.Title,
			Slug:         t.Slug,
			Path:         t.Path,
			Redirect:     t.Redirect,
			OverridePath: t.OverridePath,
		})
	}

	return ctx.JSON(struct {
		nodeJSON
		Translations []translationJSON `json:"translations"`
	}{marshalNode(n), trs})
}

func create(w http.ResponseWriter, req *http.Request, ctx *context, _ httprouter.Params) error {

	var input struct {
		ParentID      int    `json:"parent_id"`
		LeftSiblingID int    `json:"left_sibling_id"`
		Site          int    `json:"site"`
		InNavigation  *bool  `json:"in_navigation"`
		Language      string `json:"language"`
		Title         string `json:"title"`
		Slug          string `json:"slug"`
	}
	if err := ctx.Decode(req, &input); err != nil {
		return httpError{http.StatusBadRequest, "bad request body"}
	}
	if input.Language == "" || input.Title == "" {
		return httpError{http.StatusBadRequest, "language and title required"}
	}

	var parent *core.Node
	var site = input.Site
	if input.ParentID != 0 {
		var err error
		parent, err = ctx.db.GetNode(input.ParentID)
		if err != nil {
			return err
		}
		site = parent.Site
		if err := ctx.db.RequirePermission(ctx.Actor, parent, core.CapAdd); err != nil {
			return err
		}
	} else {
		// creating a top-level node requires a global grant or superuser
		if err := ctx.db.RequirePermission(ctx.Actor, &core.Node{Site: site, IsDraft: true}, core.CapAdd); err != nil {
			return err
		}
	}

	var leftSibling *core.Node
	if input.LeftSiblingID != 0 {
		var err error
		leftSibling, err = ctx.db.GetNode(input.LeftSiblingID)
		if err != nil {
			return err
		}
	}

	var n = &core.Node{
		Site:         site,
		IsDraft:      true,
		InNavigation: true,
	}
	if input.InNavigation != nil {
		n.InNavigation = *input.InNavigation
	}

	if err := ctx.db.CreateNode(n, parent, leftSibling); err != nil {
		return err
	}

	if input.Slug == "" && parent != nil {
		input.Slug = input.Title // normalized on save
	}

	if err := ctx.db.SetTranslation(n, &core.Translation{
		NodeID:   n.ID,
		Language: input.Language,
		Title:    input.Title,
		Slug:     input.Slug,
	}); err != nil {
		return err
	}

	return ctx.JSON(marshalNode(n))
}

func move(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	n, err := ctx.GetNode(params, core.CapMove)
	if err != nil {
		return err
	}

	var input struct {
		NewParentID   int `json:"new_parent_id"`
		LeftSiblingID int `json:"left_sibling_id"`
	}
	if err := ctx.Decode(req, &input); err != nil {
		return httpError{http.StatusBadRequest, "bad request body"}
	}

	var newParent, leftSibling *core.Node
	if input.NewParentID != 0 {
		if newParent, err = ctx.db.GetNode(input.NewParentID); err != nil {
			return err
		}
		if err := ctx.db.RequirePermission(ctx.Actor, newParent, core.CapAdd); err != nil {
			return err
		}
	}
	if input.LeftSiblingID != 0 {
		if leftSibling, err = ctx.db.GetNode(input.LeftSiblingID); err != nil {
			return err
		}
	}

	if err := ctx.db.MoveNode(n, newParent, leftSibling); err != nil {
		return err
	}

	return ctx.JSON(marshalNode(n))
}

func del(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	n, err := ctx.GetNode(params, core.CapDelete)
	if err != nil {
		return err
	}

	var input struct {
		CascadePublic bool `json:"cascade_public"`
	}
	ctx.Decode(req, &input) // empty body is fine

	if err := ctx.db.DeleteNode(n, input.CascadePublic); err != nil {
		return err
	}

	return ctx.JSON(map[string]bool{"ok": true})
}

func publish(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	n, err := ctx.GetNode(params, core.CapChange)
	if err != nil {
		return err
	}

	public, err := ctx.db.Publish(n)
	if err != nil {
		return err
	}

	return ctx.JSON(marshalNode(public))
}

func unpublish(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	n, err := ctx.GetNode(params, core.CapChange)
	if err != nil {
		return err
	}

	if err := ctx.db.Unpublish(n); err != nil {
		return err
	}

	return ctx.JSON(map[string]bool{"ok": true})
}

func setApphook(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	n, err := ctx.GetNode(params, core.CapAdvanced)
	if err != nil {
		return err
	}

	var input struct {
		Apphook   string `json:"apphook"`
		Namespace string `json:"namespace"`
	}
	if err := ctx.Decode(req, &input); err != nil {
		return httpError{http.StatusBadRequest, "bad request body"}
	}

	if err := ctx.db.SetApphook(n, input.Apphook, input.Namespace); err != nil {
		return err
	}

	return ctx.JSON(marshalNode(n))
}

func setTranslation(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	n, err := ctx.GetNode(params, core.CapChange)
	if err != nil {
		return err
	}

	var input translationJSON
	if err := ctx.Decode(req, &input); err != nil {
		return httpError{http.StatusBadRequest, "bad request body"}
	}
	if input.Language == "" {
		return httpError{http.StatusBadRequest, "language required"}
	}

	if err := ctx.db.SetTranslation(n, &core.Translation{
		NodeID:       n.ID,
		Language:     input.Language,
		Title:        input.Title,
		Slug:         input.Slug,
		Path:         input.Path,
		Redirect:     input.Redirect,
		OverridePath: input.OverridePath,
	}); err != nil {
		return err
	}

	return ctx.JSON(map[string]bool{"ok": true})
}
