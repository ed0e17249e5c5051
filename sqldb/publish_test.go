package sqldb

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/treelinecms/treeline/core"
)

func TestPublishCreatesCounterpart(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")

	public, err := db.Publish(root)
	require.NoError(t, err)
	require.False(t, public.IsDraft)
	require.Equal(t, 0, public.ParentID)

	// cross-reference is stored on the draft
	require.Equal(t, public.ID, root.PublicID)
	require.Equal(t, public.ID, reload(t, db, root).PublicID)

	// translation is mirrored into the public forest
	tr, err := db.GetTranslation(public.ID, "en")
	require.NoError(t, err)
	require.Equal(t, "Home", tr.Title)
	require.Equal(t, "/", tr.Path)

	// the draft forest is untouched
	require.Equal(t, "/", path(t, db, root, "en"))
}

func TestPublishRequiresPublishedParent(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var child = createDraft(t, db, 0, root, nil, "en", "Child", "child")

	_, err := db.Publish(child)
	var pErr core.ParentNotPublishedError
	require.ErrorAs(t, err, &pErr)
	require.Equal(t, child.ID, pErr.NodeID)
	require.Equal(t, root.ID, pErr.ParentID)

	// a failed publish leaves no trace
	require.Zero(t, reload(t, db, child).PublicID)
	tree, err := db.GetTree(0, false)
	require.NoError(t, err)
	require.Empty(t, tree)

	// publishing top-down works
	_, err = db.Publish(root)
	require.NoError(t, err)
	_, err = db.Publish(child)
	require.NoError(t, err)
}

func TestPublishIsIdempotent(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")

	first, err := db.Publish(root)
	require.NoError(t, err)

	second, err := db.Publish(root)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	tree, err := db.GetTree(0, false)
	require.NoError(t, err)
	require.Len(t, tree, 1)
}

func TestPublishCopiesAttributes(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	root.SoftRoot = true
	root.InNavigation = false
	require.NoError(t, db.UpdateNode(root))

	public, err := db.Publish(root)
	require.NoError(t, err)
	require.True(t, public.SoftRoot)
	require.False(t, public.InNavigation)

	// later draft edits only reach the public side on the next publish
	root.InNavigation = true
	require.NoError(t, db.UpdateNode(root))
	require.False(t, reload(t, db, public).InNavigation)

	public, err = db.Publish(root)
	require.NoError(t, err)
	require.True(t, public.InNavigation)
}

func TestPublishSiblingOrder(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var a = createDraft(t, db, 0, root, nil, "en", "A", "a")
	var b = createDraft(t, db, 0, root, a, "en", "B", "b")
	var c = createDraft(t, db, 0, root, b, "en", "C", "c")

	_, err := db.Publish(root)
	require.NoError(t, err)

	// publish out of order: a, c, then b
	_, err = db.Publish(a)
	require.NoError(t, err)
	_, err = db.Publish(c)
	require.NoError(t, err)
	_, err = db.Publish(b)
	require.NoError(t, err)

	a, b, c = reload(t, db, a), reload(t, db, b), reload(t, db, c)
	var rootPublic = reload(t, db, root).PublicID

	// the public side mirrors the draft sibling order
	require.Equal(t,
		[]int{a.PublicID, b.PublicID, c.PublicID},
		childIDs(t, db, rootPublic, 0, false))
}

func TestPublishSkipsUnpublishedChildren(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var published = createDraft(t, db, 0, root, nil, "en", "Published", "published")
	var unpublished = createDraft(t, db, 0, root, published, "en", "Unpublished", "unpublished")

	_, err := db.Publish(root)
	require.NoError(t, err)
	_, err = db.Publish(published)
	require.NoError(t, err)

	// republishing the root re-publishes the published child but leaves the
	// never-published one alone
	_, err = db.Publish(root)
	require.NoError(t, err)
	require.Zero(t, reload(t, db, unpublished).PublicID)

	tree, err := db.GetTree(0, false)
	require.NoError(t, err)
	require.Len(t, tree, 2)
}

func TestPublishMirrorsMove(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var a = createDraft(t, db, 0, root, nil, "en", "A", "a")
	var b = createDraft(t, db, 0, root, a, "en", "B", "b")

	_, err := db.Publish(root)
	require.NoError(t, err)
	_, err = db.Publish(a)
	require.NoError(t, err)
	_, err = db.Publish(b)
	require.NoError(t, err)

	// reorder the drafts, the public side lags behind
	require.NoError(t, db.MoveNode(b, root, nil))
	a, b = reload(t, db, a), reload(t, db, b)
	var rootPublic = reload(t, db, root).PublicID
	require.Equal(t, []int{a.PublicID, b.PublicID}, childIDs(t, db, rootPublic, 0, false))

	// republishing the parent mirrors the order
	_, err = db.Publish(reload(t, db, root))
	require.NoError(t, err)
	require.Equal(t, []int{b.PublicID, a.PublicID}, childIDs(t, db, rootPublic, 0, false))

	tree, err := db.GetTree(0, false)
	require.NoError(t, err)
	require.NoError(t, tree.Validate())
}

func TestPublishMoveToOtherParent(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var left = createDraft(t, db, 0, root, nil, "en", "Left", "left")
	var right = createDraft(t, db, 0, root, left, "en", "Right", "right")
	var item = createDraft(t, db, 0, left, nil, "en", "Item", "item")

	for _, n := range []*core.Node{root, left, right, item} {
		var _, err = db.Publish(n)
		require.NoError(t, err)
	}

	require.NoError(t, db.MoveNode(item, right, nil))
	_, err := db.Publish(reload(t, db, root))
	require.NoError(t, err)

	item = reload(t, db, item)
	right = reload(t, db, right)
	require.Equal(t, []int{item.PublicID}, childIDs(t, db, right.PublicID, 0, false))

	// the mirrored translation path follows the new position
	tr, err := db.GetTranslation(item.PublicID, "en")
	require.NoError(t, err)
	require.Equal(t, "/right/item", tr.Path)
}

func TestUnpublishLeaf(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var child = createDraft(t, db, 0, root, nil, "en", "Child", "child")

	_, err := db.Publish(root)
	require.NoError(t, err)
	_, err = db.Publish(child)
	require.NoError(t, err)

	var publicID = child.PublicID
	require.NoError(t, db.Unpublish(child))

	// counterpart is gone, cross-reference cleared
	require.Zero(t, child.PublicID)
	require.Zero(t, reload(t, db, child).PublicID)
	_, err = db.GetNode(publicID)
	require.True(t, db.IsNotFound(err))

	// the draft still exists and can be published again
	_, err = db.Publish(reload(t, db, child))
	require.NoError(t, err)
}

func TestUnpublishWithPublicChildren(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var section = createDraft(t, db, 0, root, nil, "en", "Section", "section")
	var page = createDraft(t, db, 0, section, nil, "en", "Page", "page")

	for _, n := range []*core.Node{root, section, page} {
		var _, err = db.Publish(n)
		require.NoError(t, err)
	}

	// the counterpart has a public child, so it is only marked
	require.NoError(t, db.Unpublish(section))
	var publicSection = reload(t, db, section)
	require.NotZero(t, publicSection.PublicID)

	marked, err := db.GetNode(publicSection.PublicID)
	require.NoError(t, err)
	require.True(t, marked.MarkedForDeletion)

	// publishing the ancestor purges the marked subtree
	_, err = db.Publish(reload(t, db, root))
	require.NoError(t, err)

	_, err = db.GetNode(marked.ID)
	require.True(t, db.IsNotFound(err))
	require.Zero(t, reload(t, db, section).PublicID)
	require.Zero(t, reload(t, db, page).PublicID)

	tree, err := db.GetTree(0, false)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.NoError(t, tree.Validate())
}

func TestDeleteNodeMarksPublic(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var child = createDraft(t, db, 0, root, nil, "en", "Child", "child")

	_, err := db.Publish(root)
	require.NoError(t, err)
	_, err = db.Publish(child)
	require.NoError(t, err)
	var publicID = child.PublicID

	require.NoError(t, db.DeleteNode(child, false))

	// draft gone, counterpart marked
	_, err = db.GetNode(child.ID)
	require.True(t, db.IsNotFound(err))
	marked, err := db.GetNode(publicID)
	require.NoError(t, err)
	require.True(t, marked.MarkedForDeletion)

	// purged on the next publish of the parent
	_, err = db.Publish(reload(t, db, root))
	require.NoError(t, err)
	_, err = db.GetNode(publicID)
	require.True(t, db.IsNotFound(err))
}

func TestDeleteNodeCascade(t *testing.T) {

	var db = newTestDB(t)

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var section = createDraft(t, db, 0, root, nil, "en", "Section", "section")
	var page = createDraft(t, db, 0, section, nil, "en", "Page", "page")

	for _, n := range []*core.Node{root, section, page} {
		var _, err = db.Publish(n)
		require.NoError(t, err)
	}

	require.NoError(t, db.DeleteNode(section, true))

	for _, id := range []int{section.ID, page.ID, section.PublicID, page.PublicID} {
		var _, err = db.GetNode(id)
		require.True(t, db.IsNotFound(err), "node %d should be gone", id)
	}

	for _, draft := range []bool{true, false} {
		tree, err := db.GetTree(0, draft)
		require.NoError(t, err)
		require.Len(t, tree, 1)
		require.NoError(t, tree.Validate())
	}
}

// countingExtension records publish calls and republishes the node's children
// once, exercising the exclusion set.
type countingExtension struct {
	name  string
	calls int
}

func (e *countingExtension) Name() string { return e.name }

func (e *countingExtension) Publish(s core.Store, draft, public *core.Node, visited map[string]struct{}) error {
	e.calls++
	return nil
}

func TestPublishExtensions(t *testing.T) {

	var db = newTestDB(t)
	var ext = &countingExtension{name: "attachments"}
	db.Extensions = []core.PublishExtension{ext}

	var root = createDraft(t, db, 0, nil, nil, "en", "Home", "")
	var child = createDraft(t, db, 0, root, nil, "en", "Child", "child")

	_, err := db.Publish(root)
	require.NoError(t, err)
	require.Equal(t, 1, ext.calls)

	_, err = db.Publish(child)
	require.NoError(t, err)
	require.Equal(t, 2, ext.calls)

	// republishing the root recurses into the child, but the exclusion set
	// keeps the extension from running twice in one publish
	_, err = db.Publish(reload(t, db, root))
	require.NoError(t, err)
	require.Equal(t, 3, ext.calls)
}
