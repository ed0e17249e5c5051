// Package sqldb implements the core storage interfaces on an SQL database.
package sqldb

import (
	"github.com/jmoiron/sqlx"
	"github.com/treelinecms/treeline/core"
)

type statements struct {
	nodeGet        *sqlx.Stmt
	nodeChildren   *sqlx.Stmt
	nodeAncestors  *sqlx.Stmt
	nodeSubtree    *sqlx.Stmt
	nodeTree       *sqlx.Stmt
	nodeApphooks   *sqlx.Stmt
	nodeInsert     *sqlx.Stmt
	nodeUpdate     *sqlx.Stmt
	nodeApplyRow   *sqlx.Stmt
	nodeDelete     *sqlx.Stmt
	nodeSetPublic  *sqlx.Stmt
	nodeClearPub   *sqlx.Stmt
	nodeSetMarked  *sqlx.Stmt
	trAll          *sqlx.Stmt
	trGet          *sqlx.Stmt
	trInsert       *sqlx.Stmt
	trUpdate       *sqlx.Stmt
	trDeleteByNode *sqlx.Stmt
	trByPath       *sqlx.Stmt
	grantByNode    *sqlx.Stmt
	grantInsert    *sqlx.Stmt
	grantRemove    *sqlx.Stmt
	grantRemNode   *sqlx.Stmt
	gglobInsert    *sqlx.Stmt
	gglobRemove    *sqlx.Stmt
	gglobSite      *sqlx.Stmt
	gglobSites     *sqlx.Stmt
	revGet         *sqlx.Stmt
	revInsert      *sqlx.Stmt
	revUpdate      *sqlx.Stmt
}

// A Store implements core.Store. The zero value is not usable, call NewStore.
// A Store bound to a transaction (see InTransaction) shares the prepared
// statements of its parent and rebinds them per call.
type Store struct {
	db    *sqlx.DB
	tx    *sqlx.Tx // non-nil if bound to a transaction
	stmts *statements
}

func NewStore(db *sqlx.DB) *Store {

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS node (
			id INTEGER PRIMARY KEY,
			parent_id int(11) NOT NULL DEFAULT 0,
			site int(11) NOT NULL,
			is_draft int(1) NOT NULL,
			public_id int(11) NOT NULL DEFAULT 0,
			lft int(11) NOT NULL,
			rght int(11) NOT NULL,
			level int(11) NOT NULL,
			apphook varchar(64) NOT NULL DEFAULT '',
			apphook_namespace varchar(64) NOT NULL DEFAULT '',
			soft_root int(1) NOT NULL DEFAULT 0,
			in_navigation int(1) NOT NULL DEFAULT 1,
			marked_for_deletion int(1) NOT NULL DEFAULT 0,
			ts_created int(11) NOT NULL
		);
		CREATE TABLE IF NOT EXISTS translation (
			id INTEGER PRIMARY KEY,
			node_id int(11) NOT NULL,
			language varchar(8) NOT NULL,
			title varchar(256) NOT NULL,
			slug varchar(256) NOT NULL,
			path varchar(512) NOT NULL,
			redirect varchar(512) NOT NULL DEFAULT '',
			override_path int(1) NOT NULL DEFAULT 0,
			UNIQUE (node_id, language)
		);
		CREATE TABLE IF NOT EXISTS grant_node (
			id INTEGER PRIMARY KEY,
			node_id int(11) NOT NULL,
			user_id int(11) NOT NULL DEFAULT 0,
			group_id int(11) NOT NULL DEFAULT 0,
			scope int(11) NOT NULL,
			caps int(11) NOT NULL
		);
		CREATE TABLE IF NOT EXISTS grant_global (
			id INTEGER PRIMARY KEY,
			user_id int(11) NOT NULL DEFAULT 0,
			group_id int(11) NOT NULL DEFAULT 0,
			caps int(11) NOT NULL
		);
		CREATE TABLE IF NOT EXISTS grant_global_site (
			grant_id int(11) NOT NULL,
			site int(11) NOT NULL,
			PRIMARY KEY (grant_id, site)
		);
		CREATE TABLE IF NOT EXISTS revision (
			id int(11) PRIMARY KEY,
			token varchar(64) NOT NULL
		);
		`)
	if err != nil {
		panic(err)
	}

	const nodeCols = "id, parent_id, site, is_draft, public_id, lft, rght, level, apphook, apphook_namespace, soft_root, in_navigation, marked_for_deletion, ts_created"
	const trCols = "id, node_id, language, title, slug, path, redirect, override_path"

	var st = &statements{}
	st.nodeGet = mustPrepare(db, "SELECT "+nodeCols+" FROM node WHERE id = ? LIMIT 1")
	st.nodeChildren = mustPrepare(db, "SELECT "+nodeCols+" FROM node WHERE parent_id = ? AND site = ? AND is_draft = ? ORDER BY lft")
	st.nodeAncestors = mustPrepare(db, "SELECT "+nodeCols+" FROM node WHERE site = ? AND is_draft = ? AND lft < ? AND rght > ? ORDER BY lft")
	st.nodeSubtree = mustPrepare(db, "SELECT "+nodeCols+" FROM node WHERE site = ? AND is_draft = ? AND lft >= ? AND rght <= ? ORDER BY lft")
	st.nodeTree = mustPrepare(db, "SELECT id, parent_id, lft, rght, level FROM node WHERE site = ? AND is_draft = ? ORDER BY lft")
	st.nodeApphooks = mustPrepare(db, "SELECT "+nodeCols+" FROM node WHERE apphook != '' AND marked_for_deletion = 0 AND is_draft = ? ORDER BY id")
	st.nodeInsert = mustPrepare(db, "INSERT INTO node (parent_id, site, is_draft, public_id, lft, rght, level, apphook, apphook_namespace, soft_root, in_navigation, marked_for_deletion, ts_created) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	st.nodeUpdate = mustPrepare(db, "UPDATE node SET apphook = ?, apphook_namespace = ?, soft_root = ?, in_navigation = ?, marked_for_deletion = ? WHERE id = ?")
	st.nodeApplyRow = mustPrepare(db, "UPDATE node SET parent_id = ?, lft = ?, rght = ?, level = ? WHERE id = ?")
	st.nodeDelete = mustPrepare(db, "DELETE FROM node WHERE id = ?")
	st.nodeSetPublic = mustPrepare(db, "UPDATE node SET public_id = ? WHERE id = ?")
	st.nodeClearPub = mustPrepare(db, "UPDATE node SET public_id = 0 WHERE public_id = ?")
	st.nodeSetMarked = mustPrepare(db, "UPDATE node SET marked_for_deletion = ? WHERE id = ?")
	st.trAll = mustPrepare(db, "SELECT "+trCols+" FROM translation WHERE node_id = ? ORDER BY language")
	st.trGet = mustPrepare(db, "SELECT "+trCols+" FROM translation WHERE node_id = ? AND language = ? LIMIT 1")
	st.trInsert = mustPrepare(db, "INSERT INTO translation (node_id, language, title, slug, path, redirect, override_path) VALUES (?, ?, ?, ?, ?, ?, ?)")
	st.trUpdate = mustPrepare(db, "UPDATE translation SET title = ?, slug = ?, path = ?, redirect = ?, override_path = ? WHERE id = ?")
	st.trDeleteByNode = mustPrepare(db, "DELETE FROM translation WHERE node_id = ?")
	st.trByPath = mustPrepare(db, "SELECT t.node_id FROM translation t, node n WHERE n.id = t.node_id AND n.site = ? AND n.is_draft = ? AND t.language = ? AND t.path = ? LIMIT 1")
	st.grantByNode = mustPrepare(db, "SELECT id, node_id, user_id, group_id, scope, caps FROM grant_node WHERE node_id = ? ORDER BY id")
	st.grantInsert = mustPrepare(db, "INSERT INTO grant_node (node_id, user_id, group_id, scope, caps) VALUES (?, ?, ?, ?, ?)")
	st.grantRemove = mustPrepare(db, "DELETE FROM grant_node WHERE id = ?")
	st.grantRemNode = mustPrepare(db, "DELETE FROM grant_node WHERE node_id = ?")
	st.gglobInsert = mustPrepare(db, "INSERT INTO grant_global (user_id, group_id, caps) VALUES (?, ?, ?)")
	st.gglobRemove = mustPrepare(db, "DELETE FROM grant_global WHERE id = ?")
	st.gglobSite = mustPrepare(db, "INSERT INTO grant_global_site (grant_id, site) VALUES (?, ?)")
	st.gglobSites = mustPrepare(db, "SELECT site FROM grant_global_site WHERE grant_id = ? ORDER BY site")
	st.revGet = mustPrepare(db, "SELECT token FROM revision WHERE id = 1 LIMIT 1")
	st.revInsert = mustPrepare(db, "INSERT INTO revision (id, token) VALUES (1, ?)")
	st.revUpdate = mustPrepare(db, "UPDATE revision SET token = ? WHERE id = 1")

	return &Store{db: db, stmts: st}
}

func mustPrepare(db *sqlx.DB, query string) *sqlx.Stmt {
	var stmt, err = db.Preparex(query)
	if err != nil {
		panic(err)
	}
	return stmt
}

// stmt rebinds a prepared statement to the ambient transaction, if any.
func (s *Store) stmt(st *sqlx.Stmt) *sqlx.Stmt {
	if s.tx != nil {
		return s.tx.Stmtx(st)
	}
	return st
}

// ext is the queryer for dynamically built queries (sqlx.In).
func (s *Store) ext() sqlx.Ext {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// InTransaction runs fn against a store view bound to one transaction. An
// error rolls everything back. If the receiver is already bound, fn joins the
// ambient transaction.
func (s *Store) InTransaction(fn func(core.Store) error) error {

	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}

	var bound = &Store{db: s.db, tx: tx, stmts: s.stmts}

	if err := fn(bound); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
