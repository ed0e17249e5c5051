package core

import (
	"sync"

	"github.com/google/uuid"
)

// A RevisionDB stores the single shared revision token. GetRevision creates
// the token if none exists yet; SetRevision overwrites it unconditionally
// (last write wins).
type RevisionDB interface {
	GetRevision() (string, error)
	SetRevision(token string) error
}

// Sync lets independently-running processes agree when the apphook routing
// table must be rebuilt. Each process keeps a local copy of the shared token;
// a mismatch on the next check triggers a rebuild. There is no push channel,
// staleness is detected lazily and heals itself.
type Sync struct {
	db      RevisionDB
	rebuild func() error

	mu    sync.Mutex
	local string // empty until the first check
}

func NewSync(db RevisionDB, rebuild func() error) *Sync {
	return &Sync{db: db, rebuild: rebuild}
}

// EnsureUpToDate compares the local token with the shared one and rebuilds
// the routing table on a mismatch. It is called once per inbound request; the
// fast path is a single read of the token store.
func (sy *Sync) EnsureUpToDate() error {

	global, err := sy.db.GetRevision()
	if err != nil {
		return err
	}

	sy.mu.Lock()
	defer sy.mu.Unlock()

	if sy.local == global {
		return nil
	}

	if err := sy.rebuild(); err != nil {
		return err
	}
	sy.local = global
	return nil
}

// MarkChanged replaces the shared token with a fresh value. Every process,
// this one included, picks the change up on its next EnsureUpToDate call.
func (sy *Sync) MarkChanged() error {
	return sy.db.SetRevision(uuid.NewString())
}
