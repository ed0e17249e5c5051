package sqldb

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/treelinecms/treeline/core"
)

func scanNode(row interface{ Scan(...interface{}) error }) (*core.Node, error) {
	var n = &core.Node{}
	var err = row.Scan(&n.ID, &n.ParentID, &n.Site, &n.IsDraft, &n.PublicID, &n.Lft, &n.Rght, &n.Level, &n.Apphook, &n.ApphookNamespace, &n.SoftRoot, &n.InNavigation, &n.MarkedForDeletion, &n.TsCreated)
	return n, err
}

func (s *Store) getNodes(stmt *sqlx.Stmt, args ...interface{}) ([]*core.Node, error) {

	rows, err := s.stmt(stmt).Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes = []*core.Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (s *Store) GetNode(id int) (*core.Node, error) {
	return scanNode(s.stmt(s.stmts.nodeGet).QueryRow(id))
}

func (s *Store) GetChildren(parentID int, site int, draft bool) ([]*core.Node, error) {
	return s.getNodes(s.stmts.nodeChildren, parentID, site, draft)
}

func (s *Store) GetAncestors(n *core.Node) ([]*core.Node, error) {
	return s.getNodes(s.stmts.nodeAncestors, n.Site, n.IsDraft, n.Lft, n.Rght)
}

func (s *Store) GetSubtree(n *core.Node) ([]*core.Node, error) {
	return s.getNodes(s.stmts.nodeSubtree, n.Site, n.IsDraft, n.Lft, n.Rght)
}

func (s *Store) GetTree(site int, draft bool) (core.Snapshot, error) {

	rows, err := s.stmt(s.stmts.nodeTree).Query(site, draft)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tree = core.Snapshot{}
	for rows.Next() {
		var r core.Row
		if err := rows.Scan(&r.ID, &r.ParentID, &r.Lft, &r.Rght, &r.Level); err != nil {
			return nil, err
		}
		tree = append(tree, r)
	}
	return tree, rows.Err()
}

func (s *Store) ApphookNodes(draft bool) ([]*core.Node, error) {
	return s.getNodes(s.stmts.nodeApphooks, draft)
}

func (s *Store) InsertNode(n *core.Node) (int, error) {
	res, err := s.stmt(s.stmts.nodeInsert).Exec(n.ParentID, n.Site, n.IsDraft, n.PublicID, n.Lft, n.Rght, n.Level, n.Apphook, n.ApphookNamespace, n.SoftRoot, n.InNavigation, n.MarkedForDeletion, n.TsCreated)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return int(id), err
}

func (s *Store) UpdateNode(n *core.Node) error {
	_, err := s.stmt(s.stmts.nodeUpdate).Exec(n.Apphook, n.ApphookNamespace, n.SoftRoot, n.InNavigation, n.MarkedForDeletion, n.ID)
	return err
}

func (s *Store) ApplyRows(site int, draft bool, rows []core.Row) error {
	return s.InTransaction(func(cs core.Store) error {
		var bound = cs.(*Store)
		for _, r := range rows {
			if _, err := bound.stmt(bound.stmts.nodeApplyRow).Exec(r.ParentID, r.Lft, r.Rght, r.Level, r.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeleteNodeRow(id int) error {
	_, err := s.stmt(s.stmts.nodeDelete).Exec(id)
	return err
}

func (s *Store) SetPublicID(draftID, publicID int) error {
	_, err := s.stmt(s.stmts.nodeSetPublic).Exec(publicID, draftID)
	return err
}

func (s *Store) ClearPublicID(publicID int) error {
	_, err := s.stmt(s.stmts.nodeClearPub).Exec(publicID)
	return err
}

func (s *Store) SetMarkedForDeletion(id int, marked bool) error {
	_, err := s.stmt(s.stmts.nodeSetMarked).Exec(marked, id)
	return err
}

func (s *Store) IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
