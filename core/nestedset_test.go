package core

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// apply returns a copy of the snapshot with the given row updates applied.
func apply(s Snapshot, updates []Row) Snapshot {
	var result = make(Snapshot, len(s))
	copy(result, s)
	var byID = make(map[int]int, len(result)) // id -> index
	for i, r := range result {
		byID[r.ID] = i
	}
	for _, u := range updates {
		result[byID[u.ID]] = u
	}
	return result
}

// insert runs PlanInsert and applies the result.
func insert(t *testing.T, s Snapshot, id, parentID, leftSiblingID int) Snapshot {
	placement, updates, err := PlanInsert(s, parentID, leftSiblingID)
	require.NoError(t, err)
	s = apply(s, updates)
	s = append(s, Row{ID: id, ParentID: parentID, Lft: placement.Lft, Rght: placement.Rght, Level: placement.Level})
	require.NoError(t, s.Validate())
	return s
}

// buildTestTree builds:
//
//	1
//	├── 2
//	│   ├── 4
//	│   └── 5
//	└── 3
//	6
func buildTestTree(t *testing.T) Snapshot {
	var s Snapshot
	s = insert(t, s, 1, 0, 0)
	s = insert(t, s, 2, 1, 0)
	s = insert(t, s, 3, 1, 2)
	s = insert(t, s, 4, 2, 0)
	s = insert(t, s, 5, 2, 4)
	s = insert(t, s, 6, 0, 1)
	return s
}

func TestPlanInsert(t *testing.T) {

	var s = buildTestTree(t)

	require.Equal(t, []int{1, 6}, s.children(0))
	require.Equal(t, []int{2, 3}, s.children(1))
	require.Equal(t, []int{4, 5}, s.children(2))

	var byID = s.index()
	require.Equal(t, 1, byID[1].Lft)
	require.Equal(t, 10, byID[1].Rght)
	require.Equal(t, 11, byID[6].Lft)
	require.Equal(t, 12, byID[6].Rght)
	require.Equal(t, 2, byID[4].Level)

	// inserting without a left sibling makes the node the first child
	s = insert(t, s, 7, 2, 0)
	require.Equal(t, []int{7, 4, 5}, s.children(2))
}

func TestPlanInsertErrors(t *testing.T) {

	var s = buildTestTree(t)

	_, _, err := PlanInsert(s, 99, 0)
	require.ErrorIs(t, err, ErrNotInTree)

	_, _, err = PlanInsert(s, 1, 4) // 4 is not a child of 1
	require.Error(t, err)
}

func TestPlanMove(t *testing.T) {

	var s = buildTestTree(t)

	// move subtree 2 below 6
	updates, moved, err := PlanMove(s, 2, 6, 0)
	require.NoError(t, err)
	require.True(t, moved)
	s = apply(s, updates)
	require.NoError(t, s.Validate())

	require.Equal(t, []int{3}, s.children(1))
	require.Equal(t, []int{2}, s.children(6))
	require.Equal(t, []int{4, 5}, s.children(2))

	var byID = s.index()
	require.Equal(t, 1, byID[2].Level)
	require.Equal(t, 2, byID[4].Level) // descendants keep their relative depth
	require.True(t, s.IsDescendant(4, 6))
}

func TestPlanMoveReorder(t *testing.T) {

	var s = buildTestTree(t)

	// move 4 to the right of 5, same parent
	updates, moved, err := PlanMove(s, 4, 2, 5)
	require.NoError(t, err)
	require.True(t, moved)
	s = apply(s, updates)
	require.NoError(t, s.Validate())
	require.Equal(t, []int{5, 4}, s.children(2))

	// move 6 to top-level first position
	updates, moved, err = PlanMove(s, 6, 0, 0)
	require.NoError(t, err)
	require.True(t, moved)
	s = apply(s, updates)
	require.NoError(t, s.Validate())
	require.Equal(t, []int{6, 1}, s.children(0))
}

func TestPlanMoveNoop(t *testing.T) {

	var s = buildTestTree(t)

	// 5 already is the right sibling of 4
	updates, moved, err := PlanMove(s, 5, 2, 4)
	require.NoError(t, err)
	require.False(t, moved)
	require.Nil(t, updates)

	// 2 already is the first child of 1
	updates, moved, err = PlanMove(s, 2, 1, 0)
	require.NoError(t, err)
	require.False(t, moved)
	require.Nil(t, updates)
}

func TestPlanMoveErrors(t *testing.T) {

	var s = buildTestTree(t)

	_, _, err := PlanMove(s, 2, 4, 0) // 4 is a descendant of 2
	require.Error(t, err)

	_, _, err = PlanMove(s, 2, 2, 0)
	require.Error(t, err)

	_, _, err = PlanMove(s, 99, 0, 0)
	require.ErrorIs(t, err, ErrNotInTree)

	_, _, err = PlanMove(s, 6, 1, 4) // 4 is not a child of 1
	require.Error(t, err)
}

func TestPlanRemove(t *testing.T) {

	var s = buildTestTree(t)

	removed, updates, err := PlanRemove(s, 2)
	require.NoError(t, err)
	require.Equal(t, []int{2, 4, 5}, removed)

	var remaining = Snapshot{}
	var gone = map[int]bool{2: true, 4: true, 5: true}
	for _, r := range apply(s, updates) {
		if !gone[r.ID] {
			remaining = append(remaining, r)
		}
	}
	require.NoError(t, remaining.Validate())
	require.Equal(t, []int{3}, remaining.children(1))

	_, _, err = PlanRemove(s, 99)
	require.ErrorIs(t, err, ErrNotInTree)
}

func TestLeftSibling(t *testing.T) {

	var s = buildTestTree(t)

	left, err := s.LeftSibling(3)
	require.NoError(t, err)
	require.Equal(t, 2, left)

	left, err = s.LeftSibling(2)
	require.NoError(t, err)
	require.Equal(t, 0, left)

	left, err = s.LeftSibling(6)
	require.NoError(t, err)
	require.Equal(t, 1, left)

	_, err = s.LeftSibling(99)
	require.ErrorIs(t, err, ErrNotInTree)
}

func TestIsDescendant(t *testing.T) {

	var s = buildTestTree(t)

	require.True(t, s.IsDescendant(4, 2))
	require.True(t, s.IsDescendant(4, 1))
	require.False(t, s.IsDescendant(4, 4)) // not its own descendant
	require.False(t, s.IsDescendant(4, 6))
	require.False(t, s.IsDescendant(1, 4))
}

// TestRandomized runs a seeded sequence of random inserts, moves and removals
// and checks the invariants after every step.
func TestRandomized(t *testing.T) {

	var rng = rand.New(rand.NewSource(1))
	var s Snapshot
	var nextID = 1

	var randomNode = func() int {
		return s[rng.Intn(len(s))].ID
	}

	for step := 0; step < 500; step++ {

		switch op := rng.Intn(10); {

		case op < 5 || len(s) < 3: // insert
			var parentID, leftSiblingID int
			if len(s) > 0 && rng.Intn(4) > 0 {
				parentID = randomNode()
				if children := s.children(parentID); len(children) > 0 && rng.Intn(2) == 0 {
					leftSiblingID = children[rng.Intn(len(children))]
				}
			}
			s = insert(t, s, nextID, parentID, leftSiblingID)
			nextID++

		case op < 8: // move
			var nodeID = randomNode()
			var newParentID int
			if rng.Intn(4) > 0 {
				newParentID = randomNode()
			}
			var leftSiblingID int
			if children := s.children(newParentID); len(children) > 0 && rng.Intn(2) == 0 {
				leftSiblingID = children[rng.Intn(len(children))]
			}
			if nodeID == newParentID || nodeID == leftSiblingID || s.IsDescendant(newParentID, nodeID) {
				continue
			}
			updates, moved, err := PlanMove(s, nodeID, newParentID, leftSiblingID)
			require.NoError(t, err)
			if moved {
				s = apply(s, updates)
			}
			require.NoError(t, s.Validate())

		default: // remove
			var nodeID = randomNode()
			removed, updates, err := PlanRemove(s, nodeID)
			require.NoError(t, err)
			var gone = make(map[int]bool, len(removed))
			for _, id := range removed {
				gone[id] = true
			}
			var remaining = Snapshot{}
			for _, r := range apply(s, updates) {
				if !gone[r.ID] {
					remaining = append(remaining, r)
				}
			}
			s = remaining
			require.NoError(t, s.Validate())
		}
	}
}
