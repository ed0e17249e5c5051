package core

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/treelinecms/treeline/apphook"
)

// A Mount attaches a registered apphook to a path prefix. Mounts come from
// public nodes with a non-empty apphook attribute; every translation path of
// such a node becomes one mount.
type Mount struct {
	Path      string // translation path, no trailing slash except the root
	Site      int
	NodeID    int // the public node carrying the apphook
	Apphook   string
	Namespace string
}

type routingTable struct {
	// per site, mounts sorted by path length descending, so a linear scan
	// finds the longest matching prefix first
	mounts map[int][]Mount
}

// The Router maps URL paths to apphook route sets. The table is rebuilt as a
// whole and swapped atomically; readers never see a partial table.
type Router struct {
	db    *CoreDB
	table atomic.Value // *routingTable
}

func NewRouter(db *CoreDB) *Router {
	var r = &Router{db: db}
	r.table.Store(&routingTable{mounts: map[int][]Mount{}})
	return r
}

// Resolve finds the registered apphook whose mount path is the longest prefix
// of the given path. The boolean is false if no mount matches or the mounted
// apphook code is not registered.
func (r *Router) Resolve(site int, path string) (*apphook.Apphook, Mount, bool) {
	var table = r.table.Load().(*routingTable)
	for _, mount := range table.mounts[site] {
		if !hasPathPrefix(path, mount.Path) {
			continue
		}
		hook, ok := r.db.Apphooks.Get(mount.Apphook)
		if !ok {
			r.db.Log.Warn().Str("apphook", mount.Apphook).Int("node", mount.NodeID).Msg("apphook not registered")
			continue
		}
		return hook, mount, true
	}
	return nil, Mount{}, false
}

type mountContextKey struct{}

// WithMount attaches the resolved mount to a request context, so apphook
// handlers know where they are mounted.
func WithMount(ctx context.Context, m Mount) context.Context {
	return context.WithValue(ctx, mountContextKey{}, m)
}

func MountFromContext(ctx context.Context) (Mount, bool) {
	m, ok := ctx.Value(mountContextKey{}).(Mount)
	return m, ok
}

// hasPathPrefix is a segment-wise prefix check: "/products" matches
// "/products" and "/products/item-1" but not "/products-2".
func hasPathPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// Rebuild re-queries all public nodes with apphooks and swaps in a fresh
// table. Duplicate mount paths within one site are a configuration conflict;
// the node with the lowest id wins and the loser is skipped with a warning.
func (r *Router) Rebuild() error {

	nodes, err := r.db.ApphookNodes(false) // ordered by id
	if err != nil {
		return err
	}

	var mounts = make(map[int][]Mount)
	var seen = make(map[int]map[string]int) // site -> path -> winning node id

	for _, n := range nodes {
		ts, err := r.db.GetTranslations(n.ID)
		if err != nil {
			return err
		}
		for _, t := range ts {
			if seen[n.Site] == nil {
				seen[n.Site] = make(map[string]int)
			}
			if winner, ok := seen[n.Site][t.Path]; ok {
				metricApphookConflicts.Inc()
				r.db.Log.Warn().
					Str("path", t.Path).
					Int("site", n.Site).
					Int("node", n.ID).
					Int("mounted", winner).
					Msg("duplicate apphook path, skipping")
				continue
			}
			seen[n.Site][t.Path] = n.ID
			mounts[n.Site] = append(mounts[n.Site], Mount{
				Path:      t.Path,
				Site:      n.Site,
				NodeID:    n.ID,
				Apphook:   n.Apphook,
				Namespace: n.ApphookNamespace,
			})
		}
	}

	for site := range mounts {
		var m = mounts[site]
		sort.Slice(m, func(i, j int) bool {
			if len(m[i].Path) != len(m[j].Path) {
				return len(m[i].Path) > len(m[j].Path)
			}
			return m[i].Path < m[j].Path
		})
	}

	r.table.Store(&routingTable{mounts: mounts})
	metricRouterRebuilds.Inc()
	r.db.Log.Debug().Int("sites", len(mounts)).Msg("apphook routing table rebuilt")
	return nil
}
