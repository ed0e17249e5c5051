package core

import (
	"errors"
	"strings"
)

// A Translation holds the language-scoped attributes of a Node. Path is
// computed from the parent's translation path for the same language and the
// local slug, unless OverridePath is set.
type Translation struct {
	ID           int
	NodeID       int
	Language     string
	Title        string
	Slug         string
	Path         string
	Redirect     string
	OverridePath bool
}

type TranslationDB interface {
	GetTranslations(nodeID int) ([]*Translation, error) // ordered by language
	GetTranslation(nodeID int, language string) (*Translation, error)
	SaveTranslation(t *Translation) error                           // single-shot insert-or-update, unique on (node, language)
	ReplaceTranslations(nodeID int, ts []*Translation) error        // remove all, then re-add
	DeleteTranslations(nodeID int) error
	NodeIDByPath(site int, draft bool, language, path string) (int, error)
}

// JoinPath joins a parent translation path and a slug. The root of a site has
// the empty slug and the path "/".
func JoinPath(parentPath, slug string) string {
	if slug == "" {
		return "/"
	}
	return strings.TrimSuffix(parentPath, "/") + "/" + slug
}

// SetTranslation normalizes the slug, saves the translation and recomputes
// the paths of the node's subtree for that language.
func (c *CoreDB) SetTranslation(n *Node, t *Translation) error {

	if t.Language == "" {
		return errors.New("translation needs a language")
	}
	t.NodeID = n.ID
	t.Slug = NormalizeSlug(t.Slug)
	if t.Slug == "" && n.ParentID != 0 {
		return errors.New("slug can't be empty")
	}

	return c.InTransaction(func(s Store) error {
		if err := s.SaveTranslation(t); err != nil {
			return err
		}
		return c.recomputePaths(s, n)
	})
}

// recomputePaths rewrites the computed path of every translation in the
// subtree of n, in all languages. Translations with OverridePath keep their
// path, but their descendants still chain off the overridden value.
func (c *CoreDB) recomputePaths(s Store, n *Node) error {

	// the caller's lft and rght can be stale, re-fetch before the range
	// query
	n, err := s.GetNode(n.ID)
	if err != nil {
		return err
	}

	// parent paths seed the walk
	var parentPaths = make(map[string]string) // language -> path
	if n.ParentID != 0 {
		ts, err := s.GetTranslations(n.ParentID)
		if err != nil {
			return err
		}
		for _, t := range ts {
			parentPaths[t.Language] = t.Path
		}
	}

	subtree, err := s.GetSubtree(n)
	if err != nil {
		return err
	}

	// paths of all visited nodes, keyed by node id and language
	var paths = make(map[int]map[string]string)
	paths[n.ParentID] = parentPaths

	for _, node := range subtree { // lft order, parents first
		ts, err := s.GetTranslations(node.ID)
		if err != nil {
			return err
		}
		paths[node.ID] = make(map[string]string, len(ts))
		for _, t := range ts {
			if !t.OverridePath {
				var computed = JoinPath(paths[node.ParentID][t.Language], t.Slug)
				if computed != t.Path {
					t.Path = computed
					if err := s.SaveTranslation(t); err != nil {
						return err
					}
				}
			}
			paths[node.ID][t.Language] = t.Path
		}
	}

	return nil
}
