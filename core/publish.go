package core

import (
	"errors"
	"fmt"
)

// ParentNotPublishedError is returned when a draft is published whose parent
// has no public counterpart yet. The caller must publish ancestors first;
// retrying does not help.
type ParentNotPublishedError struct {
	NodeID   int
	ParentID int
	Path     string // draft path of the unpublished parent, for the user message
}

func (e ParentNotPublishedError) Error() string {
	return fmt.Sprintf("can't publish node %d: parent %d (%s) is not published", e.NodeID, e.ParentID, e.Path)
}

// A PublishExtension is a dependent entity type attached to nodes. When a
// node is published, every registered extension mirrors its records from the
// draft to the public counterpart. The visited set prevents infinite
// recursion through cyclic references: an extension whose name is in the set
// is skipped for the remainder of the call tree.
type PublishExtension interface {
	Name() string
	Publish(s Store, draft, public *Node, visited map[string]struct{}) error
}

// Publish copies the draft node into its public counterpart, creating it if
// necessary. The whole operation runs in one transaction; a failure at any
// step leaves no trace. Publishing an up-to-date draft is a no-op apart from
// re-copying identical values.
func (c *CoreDB) Publish(n *Node) (*Node, error) {

	var public *Node
	var apphookChanged bool

	var err = c.InTransaction(func(s Store) error {
		var err error
		public, apphookChanged, err = c.publish(s, n, make(map[string]struct{}))
		return err
	})
	if err != nil {
		return nil, err
	}

	metricPublishes.Inc()
	c.Log.Info().Int("draft", n.ID).Int("public", public.ID).Msg("published")

	if apphookChanged {
		if err := c.Revisions.MarkChanged(); err != nil {
			return public, err
		}
	}

	return public, nil
}

func (c *CoreDB) publish(s Store, n *Node, visited map[string]struct{}) (*Node, bool, error) {

	if !n.IsDraft {
		return nil, false, errors.New("can only publish draft nodes")
	}

	// precondition: the parent's counterpart must exist

	var publicParentID int
	if n.ParentID != 0 {
		parent, err := s.GetNode(n.ParentID)
		if err != nil {
			return nil, false, err
		}
		if parent.PublicID == 0 {
			var path string
			if t, err := s.GetTranslations(parent.ID); err == nil && len(t) > 0 {
				path = t[0].Path
			}
			return nil, false, ParentNotPublishedError{NodeID: n.ID, ParentID: parent.ID, Path: path}
		}
		publicParentID = parent.PublicID
	}

	// step 1: locate or create the counterpart

	var public *Node
	var created bool
	var apphookChanged bool

	if n.PublicID != 0 {
		var err error
		public, err = s.GetNode(n.PublicID)
		if err != nil {
			return nil, false, err
		}
		// republishing an apphook node can move its mount path, so any
		// publish touching an apphook counts
		apphookChanged = public.Apphook != n.Apphook || public.ApphookNamespace != n.ApphookNamespace || n.HasApphook()
	} else {
		created = true
		apphookChanged = n.HasApphook()

		leftSiblingID, err := c.mirrorLeftSibling(s, n)
		if err != nil {
			return nil, false, err
		}

		tree, err := s.GetTree(n.Site, false)
		if err != nil {
			return nil, false, err
		}
		placement, shifted, err := PlanInsert(tree, publicParentID, leftSiblingID)
		if err != nil {
			return nil, false, err
		}
		if err := s.ApplyRows(n.Site, false, shifted); err != nil {
			return nil, false, err
		}

		public = &Node{
			ParentID:  publicParentID,
			Site:      n.Site,
			IsDraft:   false,
			Lft:       placement.Lft,
			Rght:      placement.Rght,
			Level:     placement.Level,
			TsCreated: n.TsCreated,
		}
		public.ID, err = s.InsertNode(public)
		if err != nil {
			return nil, false, err
		}
	}

	// steps 2 and 3: copy attribute values, one save

	public.Apphook = n.Apphook
	public.ApphookNamespace = n.ApphookNamespace
	public.SoftRoot = n.SoftRoot
	public.InNavigation = n.InNavigation
	public.MarkedForDeletion = false
	if err := s.UpdateNode(public); err != nil {
		return nil, false, err
	}

	// step 4: store the cross-reference on first creation

	if created {
		if err := s.SetPublicID(n.ID, public.ID); err != nil {
			return nil, false, err
		}
		n.PublicID = public.ID
	}

	// step 5: mirror the translations

	if err := c.publishTranslations(s, n, public); err != nil {
		return nil, false, err
	}

	// step 6: dependent entity types, with the exclusion set, then child
	// nodes which have been published before

	for _, ext := range c.Extensions {
		if _, seen := visited[ext.Name()]; seen {
			continue
		}
		visited[ext.Name()] = struct{}{}
		if err := ext.Publish(s, n, public, visited); err != nil {
			return nil, false, fmt.Errorf("extension %s: %w", ext.Name(), err)
		}
	}

	children, err := s.GetChildren(n.ID, n.Site, true)
	if err != nil {
		return nil, false, err
	}
	for _, child := range children {
		if child.PublicID == 0 {
			continue // never published, stays unpublished
		}
		// a counterpart whose deletion is deferred stays deferred; only a
		// direct publish of the child revives it
		if counterpart, err := s.GetNode(child.PublicID); err == nil && counterpart.MarkedForDeletion {
			continue
		}
		_, childChanged, err := c.publish(s, child, visited)
		if err != nil {
			return nil, false, err
		}
		apphookChanged = apphookChanged || childChanged
	}

	// step 7: mirror the draft's tree position, skipping the move if the
	// structure already matches

	if !created {
		leftSiblingID, err := c.mirrorLeftSibling(s, n)
		if err != nil {
			return nil, false, err
		}
		tree, err := s.GetTree(n.Site, false)
		if err != nil {
			return nil, false, err
		}
		updates, moved, err := PlanMove(tree, public.ID, publicParentID, leftSiblingID)
		if err != nil {
			return nil, false, err
		}
		if moved {
			if err := s.ApplyRows(n.Site, false, updates); err != nil {
				return nil, false, err
			}
			public, err = s.GetNode(public.ID)
			if err != nil {
				return nil, false, err
			}
			if err := c.recomputePaths(s, public); err != nil {
				return nil, false, err
			}
		}
	}

	// step 8: purge descendants whose deletion was deferred

	if err := c.purgeMarked(s, public); err != nil {
		return nil, false, err
	}

	public, err = s.GetNode(public.ID)
	if err != nil {
		return nil, false, err
	}

	return public, apphookChanged, nil
}

// mirrorLeftSibling finds, among the draft's left siblings, the rightmost one
// which is itself published, and returns its counterpart's id. Zero means the
// counterpart goes in as first child.
func (c *CoreDB) mirrorLeftSibling(s Store, n *Node) (int, error) {
	siblings, err := s.GetChildren(n.ParentID, n.Site, true)
	if err != nil {
		return 0, err
	}
	var left = 0
	for _, sibling := range siblings {
		if sibling.ID == n.ID {
			return left, nil
		}
		if sibling.PublicID != 0 {
			left = sibling.PublicID
		}
	}
	return 0, fmt.Errorf("node %d not among the children of %d", n.ID, n.ParentID)
}

// publishTranslations replaces the counterpart's translations with copies of
// the draft's, with paths recomputed against the public tree.
func (c *CoreDB) publishTranslations(s Store, n, public *Node) error {

	var parentPaths = make(map[string]string)
	if public.ParentID != 0 {
		ts, err := s.GetTranslations(public.ParentID)
		if err != nil {
			return err
		}
		for _, t := range ts {
			parentPaths[t.Language] = t.Path
		}
	}

	drafts, err := s.GetTranslations(n.ID)
	if err != nil {
		return err
	}

	var copies = make([]*Translation, 0, len(drafts))
	for _, t := range drafts {
		var copied = *t
		copied.ID = 0
		copied.NodeID = public.ID
		if !copied.OverridePath {
			copied.Path = JoinPath(parentPaths[t.Language], t.Slug)
		}
		copies = append(copies, &copied)
	}

	return s.ReplaceTranslations(public.ID, copies)
}

// purgeMarked deletes every descendant of the public node whose deletion was
// deferred by an earlier unpublish or draft deletion.
func (c *CoreDB) purgeMarked(s Store, public *Node) error {

	// newly created counterparts shift the numbering, re-fetch before the
	// range query
	public, err := s.GetNode(public.ID)
	if err != nil {
		return err
	}

	subtree, err := s.GetSubtree(public)
	if err != nil {
		return err
	}

	for _, node := range subtree {
		if !node.MarkedForDeletion || node.ID == public.ID {
			continue
		}
		// the subtree may have been removed along with an earlier mark
		if _, err := s.GetNode(node.ID); err != nil {
			if s.IsNotFound(err) {
				continue
			}
			return err
		}
		if err := c.removeSubtree(s, node); err != nil {
			return err
		}
	}

	return nil
}

// removeSubtree deletes a node and all its descendants, including their
// translations and grants, and closes the gap in the tree numbering.
func (c *CoreDB) removeSubtree(s Store, n *Node) error {

	tree, err := s.GetTree(n.Site, n.IsDraft)
	if err != nil {
		return err
	}

	removed, updates, err := PlanRemove(tree, n.ID)
	if err != nil {
		return err
	}

	for _, id := range removed {
		if err := s.DeleteTranslations(id); err != nil {
			return err
		}
		if err := s.RemoveNodeGrants(id); err != nil {
			return err
		}
		if !n.IsDraft {
			// drafts which pointed at the removed counterpart
			if err := s.ClearPublicID(id); err != nil {
				return err
			}
		}
		if err := s.DeleteNodeRow(id); err != nil {
			return err
		}
	}

	return s.ApplyRows(n.Site, n.IsDraft, updates)
}

// Unpublish takes the draft's counterpart off the public tree. If the
// counterpart still has public descendants, it is only marked for deletion
// and purged during the next publish of an ancestor.
func (c *CoreDB) Unpublish(n *Node) error {

	if !n.IsDraft {
		return errors.New("can only unpublish draft nodes")
	}
	if n.PublicID == 0 {
		return errors.New("node is not published")
	}

	var hadApphook bool

	var err = c.InTransaction(func(s Store) error {

		public, err := s.GetNode(n.PublicID)
		if err != nil {
			return err
		}
		hadApphook = public.HasApphook()

		children, err := s.GetChildren(public.ID, public.Site, false)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return s.SetMarkedForDeletion(public.ID, true)
		}

		// clears the draft's cross-reference as well
		return c.removeSubtree(s, public)
	})
	if err != nil {
		return err
	}
	if fresh, err := c.GetNode(n.ID); err == nil {
		n.PublicID = fresh.PublicID
	}

	if hadApphook {
		return c.Revisions.MarkChanged()
	}
	return nil
}

// DeleteNode removes a draft subtree. Counterparts are deleted along with it
// if cascadePublic is set, and otherwise marked for deletion and purged
// later.
func (c *CoreDB) DeleteNode(n *Node, cascadePublic bool) error {

	if !n.IsDraft {
		return errors.New("can only delete draft nodes")
	}

	var apphookAffected bool

	var err = c.InTransaction(func(s Store) error {

		// the caller's lft and rght can be stale, re-fetch before the
		// range query
		n, err := s.GetNode(n.ID)
		if err != nil {
			return err
		}

		subtree, err := s.GetSubtree(n)
		if err != nil {
			return err
		}

		for _, draft := range subtree {
			if draft.PublicID == 0 {
				continue
			}
			public, err := s.GetNode(draft.PublicID)
			if err != nil {
				if s.IsNotFound(err) {
					continue
				}
				return err
			}
			if public.HasApphook() {
				apphookAffected = true
			}
			if cascadePublic {
				if err := c.removeSubtree(s, public); err != nil {
					return err
				}
			} else {
				if err := s.SetMarkedForDeletion(public.ID, true); err != nil {
					return err
				}
			}
		}

		if n.HasApphook() {
			apphookAffected = true
		}

		return c.removeSubtree(s, n)
	})
	if err != nil {
		return err
	}

	if apphookAffected {
		return c.Revisions.MarkChanged()
	}
	return nil
}
