package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRevisionDB mimics the shared token row.
type fakeRevisionDB struct {
	token string
	reads int
}

func (db *fakeRevisionDB) GetRevision() (string, error) {
	db.reads++
	if db.token == "" {
		db.token = "bootstrap"
	}
	return db.token, nil
}

func (db *fakeRevisionDB) SetRevision(token string) error {
	db.token = token
	return nil
}

func TestSyncRebuildsOnce(t *testing.T) {

	var db = &fakeRevisionDB{}
	var rebuilds int
	var sy = NewSync(db, func() error {
		rebuilds++
		return nil
	})

	// first check always rebuilds, the local token starts empty
	require.NoError(t, sy.EnsureUpToDate())
	require.Equal(t, 1, rebuilds)

	// unchanged token, no rebuild
	require.NoError(t, sy.EnsureUpToDate())
	require.NoError(t, sy.EnsureUpToDate())
	require.Equal(t, 1, rebuilds)
	require.Equal(t, 3, db.reads)
}

func TestSyncPicksUpChange(t *testing.T) {

	var db = &fakeRevisionDB{}
	var rebuilds int
	var sy = NewSync(db, func() error {
		rebuilds++
		return nil
	})

	require.NoError(t, sy.EnsureUpToDate())
	require.Equal(t, 1, rebuilds)

	var before = db.token
	require.NoError(t, sy.MarkChanged())
	require.NotEqual(t, before, db.token)

	require.NoError(t, sy.EnsureUpToDate())
	require.Equal(t, 2, rebuilds)

	require.NoError(t, sy.EnsureUpToDate())
	require.Equal(t, 2, rebuilds)
}

func TestSyncRebuildFailure(t *testing.T) {

	var db = &fakeRevisionDB{}
	var fail = true
	var rebuilds int
	var sy = NewSync(db, func() error {
		rebuilds++
		if fail {
			return errors.New("boom")
		}
		return nil
	})

	// a failed rebuild does not adopt the token, the next check retries
	require.Error(t, sy.EnsureUpToDate())
	require.Equal(t, 1, rebuilds)

	fail = false
	require.NoError(t, sy.EnsureUpToDate())
	require.Equal(t, 2, rebuilds)

	require.NoError(t, sy.EnsureUpToDate())
	require.Equal(t, 2, rebuilds)
}
