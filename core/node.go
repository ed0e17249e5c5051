package core

import (
	"errors"
	"fmt"

	"github.com/gosimple/slug"
)

// A Node is one hierarchical content unit, either the editable draft or its
// published public counterpart. Draft and public nodes of one site form two
// separate forests, each carrying its own nested-set numbering.
type Node struct {
	ID                int
	ParentID          int // zero if top-level
	Site              int
	IsDraft           bool
	PublicID          int // on a draft: id of the public counterpart, zero if never published
	Lft               int
	Rght              int
	Level             int
	Apphook           string // empty if no route set is attached
	ApphookNamespace  string
	SoftRoot          bool
	InNavigation      bool
	MarkedForDeletion bool // public side only, purged during the next ancestor publish
	TsCreated         int64
}

// Row returns the tree encoding of the node.
func (n *Node) Row() Row {
	return Row{ID: n.ID, ParentID: n.ParentID, Lft: n.Lft, Rght: n.Rght, Level: n.Level}
}

func (n *Node) HasApphook() bool {
	return n.Apphook != ""
}

// Contains reports whether other is in the subtree of n, including n itself.
// Both nodes must belong to the same forest.
func (n *Node) Contains(other *Node) bool {
	return n.Site == other.Site && n.IsDraft == other.IsDraft && n.Lft <= other.Lft && other.Rght <= n.Rght
}

func (n *Node) String() string {
	if n.IsDraft {
		return fmt.Sprintf("draft node %d", n.ID)
	}
	return fmt.Sprintf("public node %d", n.ID)
}

// NormalizeSlug converts a title or user-entered slug into its canonical form.
func NormalizeSlug(s string) string {
	return slug.Make(s)
}

// A NodeDB stores the node forests. Mutating methods must be called inside
// Store.InTransaction when they are part of a larger unit of work.
type NodeDB interface {
	GetNode(id int) (*Node, error)
	GetChildren(parentID int, site int, draft bool) ([]*Node, error) // ordered by lft
	GetAncestors(n *Node) ([]*Node, error)                           // top-down, n itself not included
	GetSubtree(n *Node) ([]*Node, error)                             // ordered by lft, n included
	GetTree(site int, draft bool) (Snapshot, error)
	ApphookNodes(draft bool) ([]*Node, error) // all nodes with a non-empty apphook, ordered by id

	InsertNode(n *Node) (int, error) // single-shot insert of all fields, returns the new id
	UpdateNode(n *Node) error        // single-shot save of all non-tree fields
	ApplyRows(site int, draft bool, rows []Row) error
	DeleteNodeRow(id int) error
	SetPublicID(draftID, publicID int) error
	ClearPublicID(publicID int) error // on every draft referencing it
	SetMarkedForDeletion(id int, marked bool) error

	IsNotFound(err error) bool
}

// A Store bundles all persistence concerns of the engine. InTransaction runs
// fn against a store view whose operations share one transaction; an error
// rolls everything back. Nested calls join the ambient transaction.
type Store interface {
	NodeDB
	TranslationDB
	GrantDB
	RevisionDB
	InTransaction(fn func(Store) error) error
}

// CreateNode inserts a new draft node under the given parent (nil for top
// level), as the right sibling of leftSibling (nil for first child).
func (c *CoreDB) CreateNode(n *Node, parent, leftSibling *Node) error {

	if !n.IsDraft {
		return errors.New("can only create draft nodes")
	}

	var parentID, leftSiblingID int
	if parent != nil {
		if !parent.IsDraft {
			return errors.New("parent is not a draft")
		}
		n.Site = parent.Site
		parentID = parent.ID
	}
	if leftSibling != nil {
		leftSiblingID = leftSibling.ID
	}

	return c.InTransaction(func(s Store) error {

		tree, err := s.GetTree(n.Site, true)
		if err != nil {
			return err
		}

		placement, shifted, err := PlanInsert(tree, parentID, leftSiblingID)
		if err != nil {
			return err
		}

		if err := s.ApplyRows(n.Site, true, shifted); err != nil {
			return err
		}

		n.ParentID = parentID
		n.Lft = placement.Lft
		n.Rght = placement.Rght
		n.Level = placement.Level

		n.ID, err = s.InsertNode(n)
		return err
	})
}

// MoveNode moves a draft subtree below newParent (nil for top level), to the
// right of leftSibling (nil for first child). The public counterpart is not
// touched, its position catches up on the next publish.
func (c *CoreDB) MoveNode(n *Node, newParent, leftSibling *Node) error {

	if !n.IsDraft {
		return errors.New("can only move draft nodes")
	}

	var newParentID, leftSiblingID int
	if newParent != nil {
		newParentID = newParent.ID
	}
	if leftSibling != nil {
		leftSiblingID = leftSibling.ID
	}

	return c.InTransaction(func(s Store) error {

		tree, err := s.GetTree(n.Site, true)
		if err != nil {
			return err
		}

		updates, moved, err := PlanMove(tree, n.ID, newParentID, leftSiblingID)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}

		if err := s.ApplyRows(n.Site, true, updates); err != nil {
			return err
		}

		fresh, err := s.GetNode(n.ID)
		if err != nil {
			return err
		}
		*n = *fresh

		// paths of the whole subtree depend on the position
		return c.recomputePaths(s, n)
	})
}
