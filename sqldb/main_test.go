package sqldb

import (
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/treelinecms/treeline/apphook"
	"github.com/treelinecms/treeline/auth"
	"github.com/treelinecms/treeline/core"
	"github.com/treelinecms/treeline/sqldb/sqlite3"
)

// newTestDB assembles a CoreDB on a fresh in-memory database.
func newTestDB(t *testing.T) *core.CoreDB {

	sqlDB, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // the pool must not fan out over separate memory databases
	t.Cleanup(func() { sqlDB.Close() })

	var db = &core.CoreDB{}
	db.Store = NewStore(sqlDB)
	db.Auth = &auth.AuthDB{
		GroupDB: NewGroupDB(sqlDB),
		UserDB:  NewUserDB(sqlDB),
	}
	db.Log = zerolog.Nop()
	db.Apphooks = make(apphook.Registry)

	require.NoError(t, db.Init(sqlite3.NewSessionStore(sqlDB.DB), ""))
	return db
}

// createDraft creates a draft node with one translation. An empty slug makes
// it a site root.
func createDraft(t *testing.T, db *core.CoreDB, site int, parent, leftSibling *core.Node, lang, title, slug string) *core.Node {

	var n = &core.Node{
		Site:         site,
		IsDraft:      true,
		InNavigation: true,
	}
	require.NoError(t, db.CreateNode(n, parent, leftSibling))
	require.NotZero(t, n.ID)

	require.NoError(t, db.SetTranslation(n, &core.Translation{
		Language: lang,
		Title:    title,
		Slug:     slug,
	}))

	return n
}

// reload fetches the current state of a node.
func reload(t *testing.T, db *core.CoreDB, n *core.Node) *core.Node {
	fresh, err := db.GetNode(n.ID)
	require.NoError(t, err)
	return fresh
}

// childIDs returns the ids of the children of parentID in sibling order.
func childIDs(t *testing.T, db *core.CoreDB, parentID, site int, draft bool) []int {
	children, err := db.GetChildren(parentID, site, draft)
	require.NoError(t, err)
	var ids = []int{}
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	return ids
}

func path(t *testing.T, db *core.CoreDB, n *core.Node, lang string) string {
	tr, err := db.GetTranslation(n.ID, lang)
	require.NoError(t, err)
	return tr.Path
}
