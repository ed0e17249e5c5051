package sqldb

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// GetRevision returns the shared revision token, creating it on first use.
func (s *Store) GetRevision() (string, error) {

	var token string
	var err = s.stmt(s.stmts.revGet).QueryRow().Scan(&token)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	token = uuid.NewString()
	if _, err := s.stmt(s.stmts.revInsert).Exec(token); err != nil {
		// a concurrent process may have created it first
		if scanErr := s.stmt(s.stmts.revGet).QueryRow().Scan(&token); scanErr == nil {
			return token, nil
		}
		return "", err
	}
	return token, nil
}

// SetRevision overwrites the shared token, last write wins. A clobbered
// concurrent write is as good as ours: both say "changed".
func (s *Store) SetRevision(token string) error {

	res, err := s.stmt(s.stmts.revUpdate).Exec(token)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	_, err = s.stmt(s.stmts.revInsert).Exec(token)
	return err
}
