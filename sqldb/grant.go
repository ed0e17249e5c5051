package sqldb

import (
	"github.com/jmoiron/sqlx"
	"github.com/treelinecms/treeline/core"
)

func (s *Store) GetGrants(nodeID int) ([]core.Grant, error) {

	rows, err := s.stmt(s.stmts.grantByNode).Query(nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants = []core.Grant{}
	for rows.Next() {
		var g core.Grant
		if err := rows.Scan(&g.ID, &g.NodeID, &g.UserID, &g.GroupID, &g.Scope, &g.Caps); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// GrantsFor returns the node grants bound to the user directly or through one
// of the groups. A zero userID means anonymous and matches no user grants.
func (s *Store) GrantsFor(userID int, groupIDs []int) ([]core.Grant, error) {

	if len(groupIDs) == 0 {
		groupIDs = []int{0} // matches nothing, keeps the query valid
	}

	query, args, err := sqlx.In("SELECT id, node_id, user_id, group_id, scope, caps FROM grant_node WHERE (user_id != 0 AND user_id = ?) OR (group_id != 0 AND group_id IN (?)) ORDER BY id", userID, groupIDs)
	if err != nil {
		return nil, err
	}

	rows, err := s.ext().Queryx(s.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants = []core.Grant{}
	for rows.Next() {
		var g core.Grant
		if err := rows.Scan(&g.ID, &g.NodeID, &g.UserID, &g.GroupID, &g.Scope, &g.Caps); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (s *Store) GlobalGrantsFor(userID int, groupIDs []int) ([]core.GlobalGrant, error) {

	if len(groupIDs) == 0 {
		groupIDs = []int{0}
	}

	query, args, err := sqlx.In("SELECT id, user_id, group_id, caps FROM grant_global WHERE (user_id != 0 AND user_id = ?) OR (group_id != 0 AND group_id IN (?)) ORDER BY id", userID, groupIDs)
	if err != nil {
		return nil, err
	}

	rows, err := s.ext().Queryx(s.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants = []core.GlobalGrant{}
	for rows.Next() {
		var g core.GlobalGrant
		if err := rows.Scan(&g.ID, &g.UserID, &g.GroupID, &g.Caps); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range grants {
		sites, err := s.globalGrantSites(grants[i].ID)
		if err != nil {
			return nil, err
		}
		grants[i].Sites = sites
	}
	return grants, nil
}

func (s *Store) globalGrantSites(grantID int) ([]int, error) {

	rows, err := s.stmt(s.stmts.gglobSites).Query(grantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []int
	for rows.Next() {
		var site int
		if err := rows.Scan(&site); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *Store) InsertGrant(g *core.Grant) error {
	res, err := s.stmt(s.stmts.grantInsert).Exec(g.NodeID, g.UserID, g.GroupID, g.Scope, g.Caps)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	g.ID = int(id)
	return err
}

func (s *Store) RemoveGrant(id int) error {
	_, err := s.stmt(s.stmts.grantRemove).Exec(id)
	return err
}

func (s *Store) RemoveNodeGrants(nodeID int) error {
	_, err := s.stmt(s.stmts.grantRemNode).Exec(nodeID)
	return err
}

func (s *Store) InsertGlobalGrant(g *core.GlobalGrant) error {
	return s.InTransaction(func(cs core.Store) error {
		var bound = cs.(*Store)
		res, err := bound.stmt(bound.stmts.gglobInsert).Exec(g.UserID, g.GroupID, g.Caps)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		g.ID = int(id)
		for _, site := range g.Sites {
			if _, err := bound.stmt(bound.stmts.gglobSite).Exec(g.ID, site); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) RemoveGlobalGrant(id int) error {
	_, err := s.stmt(s.stmts.gglobRemove).Exec(id)
	return err
}
