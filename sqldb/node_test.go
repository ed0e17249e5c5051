package sqldb

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/treelinecms/treeline/core"
)

func TestCreateNodePaths(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var products = createDraft(t, db, 0, root, nil, "en", "Products", "products")
	var item = createDraft(t, db, 0, products, nil, "en", "Item One", "Item One")

	require.Equal(t, "/", path(t, db, root, "en"))
	require.Equal(t, "/products", path(t, db, products, "en"))
	require.Equal(t, "/products/item-one", path(t, db, item, "en"))

	tree, err := db.GetTree(0, true)
	require.NoError(t, err)
	require.NoError(t, tree.Validate())
	require.Len(t, tree, 3)
}

func TestSiblingOrder(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var a = createDraft(t, db, 0, root, nil, "en", "A", "a")
	var c = createDraft(t, db, 0, root, a, "en", "C", "c")
	var b = createDraft(t, db, 0, root, a, "en", "B", "b") // between a and c

	require.Equal(t, []int{a.ID, b.ID, c.ID}, childIDs(t, db, root.ID, 0, true))
}

func TestMoveNodeRecomputesPaths(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var products = createDraft(t, db, 0, root, nil, "en", "Products", "products")
	var archive = createDraft(t, db, 0, root, products, "en", "Archive", "archive")
	var item = createDraft(t, db, 0, products, nil, "en", "Item", "item")

	require.NoError(t, db.MoveNode(item, archive, nil))

	require.Equal(t, archive.ID, item.ParentID)
	require.Equal(t, "/archive/item", path(t, db, item, "en"))

	tree, err := db.GetTree(0, true)
	require.NoError(t, err)
	require.NoError(t, tree.Validate())
}

func TestMoveNodeNoop(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var a = createDraft(t, db, 0, root, nil, "en", "A", "a")
	var b = createDraft(t, db, 0, root, a, "en", "B", "b")

	before, err := db.GetTree(0, true)
	require.NoError(t, err)

	// b already is the right sibling of a
	require.NoError(t, db.MoveNode(b, root, a))

	after, err := db.GetTree(0, true)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestSeparateForests(t *testing.T) {

	var db = newTestDB(t)

	var siteZero = createDraft(t, db, 0, nil, nil, "en", "Zero", "")
	var siteOne = createDraft(t, db, 1, nil, nil, "en", "One", "")

	// both trees start their numbering at 1
	for _, site := range []int{0, 1} {
		tree, err := db.GetTree(site, true)
		require.NoError(t, err)
		require.Len(t, tree, 1)
		require.Equal(t, 1, tree[0].Lft)
	}

	require.NotEqual(t, siteZero.ID, siteOne.ID)
}

func TestTranslationPerLanguagePaths(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	require.NoError(t, db.SetTranslation(root, &core.Translation{Language: "de", Title: "Start", Slug: ""}))

	var sub = createDraft(t, db, 0, root, nil, "en", "About", "about")
	require.NoError(t, db.SetTranslation(sub, &core.Translation{Language: "de", Title: "Über uns", Slug: "ueber-uns"}))

	require.Equal(t, "/about", path(t, db, sub, "en"))

	de, err := db.GetTranslation(sub.ID, "de")
	require.NoError(t, err)
	require.Equal(t, "/ueber-uns", de.Path)
}

func TestOverridePath(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var section = createDraft(t, db, 0, root, nil, "en", "Section", "section")
	var page = createDraft(t, db, 0, section, nil, "en", "Page", "page")

	require.NoError(t, db.SetTranslation(section, &core.Translation{
		Language:     "en",
		Title:        "Section",
		Slug:         "section",
		Path:         "/custom",
		OverridePath: true,
	}))

	require.Equal(t, "/custom", path(t, db, section, "en"))
	// descendants chain off the overridden value
	require.Equal(t, "/custom/page", path(t, db, page, "en"))
}

func TestNodeIDByPath(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var about = createDraft(t, db, 0, root, nil, "en", "About", "about")

	id, err := db.NodeIDByPath(0, true, "en", "/about")
	require.NoError(t, err)
	require.Equal(t, about.ID, id)

	_, err = db.NodeIDByPath(0, true, "en", "/nope")
	require.True(t, db.IsNotFound(err))

	// the public forest has no entry until publishing
	_, err = db.NodeIDByPath(0, false, "en", "/about")
	require.True(t, db.IsNotFound(err))
}
