package sqldb

import (
	"database/sql"

	"github.com/treelinecms/treeline/core"
)

func scanTranslation(row interface{ Scan(...interface{}) error }) (*core.Translation, error) {
	var t = &core.Translation{}
	var err = row.Scan(&t.ID, &t.NodeID, &t.Language, &t.Title, &t.Slug, &t.Path, &t.Redirect, &t.OverridePath)
	return t, err
}

func (s *Store) GetTranslations(nodeID int) ([]*core.Translation, error) {

	rows, err := s.stmt(s.stmts.trAll).Query(nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ts = []*core.Translation{}
	for rows.Next() {
		t, err := scanTranslation(rows)
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	return ts, rows.Err()
}

func (s *Store) GetTranslation(nodeID int, language string) (*core.Translation, error) {
	return scanTranslation(s.stmt(s.stmts.trGet).QueryRow(nodeID, language))
}

func (s *Store) SaveTranslation(t *core.Translation) error {

	if t.ID == 0 {
		if existing, err := s.GetTranslation(t.NodeID, t.Language); err == nil {
			t.ID = existing.ID
		} else if !s.IsNotFound(err) {
			return err
		}
	}

	if t.ID == 0 {
		res, err := s.stmt(s.stmts.trInsert).Exec(t.NodeID, t.Language, t.Title, t.Slug, t.Path, t.Redirect, t.OverridePath)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		t.ID = int(id)
		return err
	}

	_, err := s.stmt(s.stmts.trUpdate).Exec(t.Title, t.Slug, t.Path, t.Redirect, t.OverridePath, t.ID)
	return err
}

func (s *Store) ReplaceTranslations(nodeID int, ts []*core.Translation) error {
	return s.InTransaction(func(cs core.Store) error {
		var bound = cs.(*Store)
		if _, err := bound.stmt(bound.stmts.trDeleteByNode).Exec(nodeID); err != nil {
			return err
		}
		for _, t := range ts {
			t.NodeID = nodeID
			res, err := bound.stmt(bound.stmts.trInsert).Exec(t.NodeID, t.Language, t.Title, t.Slug, t.Path, t.Redirect, t.OverridePath)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			t.ID = int(id)
		}
		return nil
	})
}

func (s *Store) DeleteTranslations(nodeID int) error {
	_, err := s.stmt(s.stmts.trDeleteByNode).Exec(nodeID)
	return err
}

func (s *Store) NodeIDByPath(site int, draft bool, language, path string) (int, error) {
	var nodeID int
	var err = s.stmt(s.stmts.trByPath).QueryRow(site, draft, language, path).Scan(&nodeID)
	if err == sql.ErrNoRows {
		return 0, err
	}
	return nodeID, err
}
