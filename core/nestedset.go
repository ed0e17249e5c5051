package core

import (
	"errors"
	"fmt"
	"sort"
)

// A Row is the tree encoding of one node. A Snapshot contains every Row of
// one forest (all nodes sharing site and draft flag). Top-level nodes have
// ParentID zero and level zero; their intervals tile the number line in
// sibling order.
type Row struct {
	ID       int
	ParentID int
	Lft      int
	Rght     int
	Level    int
}

type Snapshot []Row

var ErrNotInTree = errors.New("node not in tree")

// Validate checks the nested-set invariants:
// every interval is well-formed, intervals of siblings are disjoint and
// ordered, every child interval lies strictly inside its parent's interval,
// levels increase by one per generation, and the numbers 1..2n are each used
// exactly once.
func (s Snapshot) Validate() error {

	var used = make(map[int]bool, 2*len(s))
	var byID = s.index()

	for _, r := range s {

		if r.Lft >= r.Rght {
			return fmt.Errorf("node %d: lft %d >= rght %d", r.ID, r.Lft, r.Rght)
		}
		if (r.Rght-r.Lft)%2 != 1 {
			return fmt.Errorf("node %d: interval [%d, %d] has even width", r.ID, r.Lft, r.Rght)
		}
		for _, num := range []int{r.Lft, r.Rght} {
			if num < 1 || num > 2*len(s) {
				return fmt.Errorf("node %d: number %d out of range", r.ID, num)
			}
			if used[num] {
				return fmt.Errorf("node %d: number %d used twice", r.ID, num)
			}
			used[num] = true
		}

		if r.ParentID == 0 {
			if r.Level != 0 {
				return fmt.Errorf("top-level node %d has level %d", r.ID, r.Level)
			}
			continue
		}

		parent, ok := byID[r.ParentID]
		if !ok {
			return fmt.Errorf("node %d: parent %d: %w", r.ID, r.ParentID, ErrNotInTree)
		}
		if !(parent.Lft < r.Lft && r.Rght < parent.Rght) {
			return fmt.Errorf("node %d [%d, %d] not inside parent %d [%d, %d]", r.ID, r.Lft, r.Rght, parent.ID, parent.Lft, parent.Rght)
		}
		if r.Level != parent.Level+1 {
			return fmt.Errorf("node %d: level %d, parent level %d", r.ID, r.Level, parent.Level)
		}
	}

	return nil
}

func (s Snapshot) index() map[int]Row {
	var m = make(map[int]Row, len(s))
	for _, r := range s {
		m[r.ID] = r
	}
	return m
}

// children returns the ids of the children of parentID (zero for top level)
// in sibling order.
func (s Snapshot) children(parentID int) []int {
	var rows []Row
	for _, r := range s {
		if r.ParentID == parentID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Lft < rows[j].Lft
	})
	var ids = make([]int, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

// LeftSibling returns the id of the left sibling of the given node, or zero
// if the node is the first child.
func (s Snapshot) LeftSibling(id int) (int, error) {
	var row, ok = s.index()[id]
	if !ok {
		return 0, ErrNotInTree
	}
	var prev = 0
	for _, sibling := range s.children(row.ParentID) {
		if sibling == id {
			return prev, nil
		}
		prev = sibling
	}
	return 0, ErrNotInTree
}

// IsDescendant reports whether id is a transitive descendant of ancestorID.
func (s Snapshot) IsDescendant(id, ancestorID int) bool {
	var byID = s.index()
	var row, ok = byID[id]
	if !ok {
		return false
	}
	ancestor, ok := byID[ancestorID]
	if !ok {
		return false
	}
	return ancestor.Lft < row.Lft && row.Rght < ancestor.Rght
}

// Placement is where a new node goes.
type Placement struct {
	Lft   int
	Rght  int
	Level int
}

// PlanInsert computes the tree encoding of a new node inserted under parentID
// (zero for top level), to the right of leftSiblingID (zero for first child),
// and the updated rows of every existing node whose numbers shift.
// The snapshot is not modified.
func PlanInsert(s Snapshot, parentID, leftSiblingID int) (Placement, []Row, error) {

	var byID = s.index()

	var pos int
	var level int

	if leftSiblingID != 0 {
		sibling, ok := byID[leftSiblingID]
		if !ok {
			return Placement{}, nil, fmt.Errorf("left sibling %d: %w", leftSiblingID, ErrNotInTree)
		}
		if sibling.ParentID != parentID {
			return Placement{}, nil, fmt.Errorf("node %d is not a child of %d", leftSiblingID, parentID)
		}
		pos = sibling.Rght + 1
		level = sibling.Level
	} else if parentID != 0 {
		parent, ok := byID[parentID]
		if !ok {
			return Placement{}, nil, fmt.Errorf("parent %d: %w", parentID, ErrNotInTree)
		}
		pos = parent.Lft + 1
		level = parent.Level + 1
	} else {
		pos = 1 // first top-level node
		level = 0
	}

	var updates []Row
	for _, r := range s {
		var changed = r
		if r.Lft >= pos {
			changed.Lft += 2
		}
		if r.Rght >= pos {
			changed.Rght += 2
		}
		if changed != r {
			updates = append(updates, changed)
		}
	}

	return Placement{Lft: pos, Rght: pos + 1, Level: level}, updates, nil
}

// PlanMove computes the row updates which move the subtree rooted at nodeID
// below newParentID (zero for top level), to the right of leftSiblingID (zero
// for first child). If the node already is at that position, it returns
// (nil, false, nil) and no renumbering takes place.
func PlanMove(s Snapshot, nodeID, newParentID, leftSiblingID int) ([]Row, bool, error) {

	var byID = s.index()

	var node, ok = byID[nodeID]
	if !ok {
		return nil, false, fmt.Errorf("node %d: %w", nodeID, ErrNotInTree)
	}
	if newParentID != 0 {
		if _, ok := byID[newParentID]; !ok {
			return nil, false, fmt.Errorf("new parent %d: %w", newParentID, ErrNotInTree)
		}
		if newParentID == nodeID || s.IsDescendant(newParentID, nodeID) {
			return nil, false, errors.New("can't move node below itself")
		}
	}
	if leftSiblingID != 0 {
		sibling, ok := byID[leftSiblingID]
		if !ok {
			return nil, false, fmt.Errorf("left sibling %d: %w", leftSiblingID, ErrNotInTree)
		}
		if sibling.ParentID != newParentID {
			return nil, false, fmt.Errorf("node %d is not a child of %d", leftSiblingID, newParentID)
		}
	}

	// no-op check: same parent and same left sibling

	if node.ParentID == newParentID {
		currentLeft, err := s.LeftSibling(nodeID)
		if err != nil {
			return nil, false, err
		}
		if currentLeft == leftSiblingID {
			return nil, false, nil
		}
	}

	// Rebuild the sibling order with the subtree relocated, then renumber the
	// whole forest from scratch. Renumbering everything is simpler than
	// interval arithmetic, and callers only see the rows which actually
	// changed.

	var order = make(map[int][]int) // parent id -> child ids in new order
	for _, r := range s {
		order[r.ParentID] = s.children(r.ParentID)
	}
	order[node.ParentID] = remove(order[node.ParentID], nodeID)
	order[newParentID] = insertAfter(remove(s.children(newParentID), nodeID), nodeID, leftSiblingID)

	var renumbered = make(map[int]Row, len(s))
	var counter = 0
	var walk func(id, parentID, level int)
	walk = func(id, parentID, level int) {
		counter++
		var lft = counter
		for _, child := range order[id] {
			walk(child, id, level+1)
		}
		counter++
		renumbered[id] = Row{ID: id, ParentID: parentID, Lft: lft, Rght: counter, Level: level}
	}
	for _, top := range order[0] {
		walk(top, 0, 0)
	}

	var updates []Row
	for _, r := range s {
		if changed, ok := renumbered[r.ID]; ok && changed != r {
			updates = append(updates, changed)
		}
	}
	return updates, true, nil
}

// PlanRemove computes the removal of the subtree rooted at nodeID: the ids of
// all removed nodes (nodeID included) and the updated rows of the nodes whose
// numbers close the gap.
func PlanRemove(s Snapshot, nodeID int) ([]int, []Row, error) {

	var node, ok = s.index()[nodeID]
	if !ok {
		return nil, nil, fmt.Errorf("node %d: %w", nodeID, ErrNotInTree)
	}

	var width = node.Rght - node.Lft + 1

	var removed []int
	var updates []Row
	for _, r := range s {
		if node.Lft <= r.Lft && r.Rght <= node.Rght {
			removed = append(removed, r.ID)
			continue
		}
		var changed = r
		if r.Lft > node.Rght {
			changed.Lft -= width
		}
		if r.Rght > node.Rght {
			changed.Rght -= width
		}
		if changed != r {
			updates = append(updates, changed)
		}
	}
	sort.Ints(removed)

	return removed, updates, nil
}

func remove(ids []int, id int) []int {
	var result = make([]int, 0, len(ids))
	for _, i := range ids {
		if i != id {
			result = append(result, i)
		}
	}
	return result
}

func insertAfter(ids []int, id, afterID int) []int {
	if afterID == 0 {
		return append([]int{id}, ids...)
	}
	var result = make([]int, 0, len(ids)+1)
	for _, i := range ids {
		result = append(result, i)
		if i == afterID {
			result = append(result, id)
		}
	}
	return result
}
