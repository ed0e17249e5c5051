package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/treelinecms/treeline/auth"
)

var ErrUnauthorized = errors.New("unauthorized")

// A Capability is a set of actions a grant permits.
type Capability uint16

const (
	CapView Capability = 1 << iota
	CapAdd
	CapChange
	CapDelete
	CapAdvanced // change advanced settings (apphook, soft root)
	CapPermissions
	CapMove
	CapRecover
)

var capNames = map[Capability]string{
	CapView:        "view",
	CapAdd:         "add",
	CapChange:      "change",
	CapDelete:      "delete",
	CapAdvanced:    "advanced",
	CapPermissions: "permissions",
	CapMove:        "move",
	CapRecover:     "recover",
}

func (c Capability) Has(other Capability) bool {
	return c&other == other
}

func (c Capability) String() string {
	var names []string
	for cap := CapView; cap <= CapRecover; cap <<= 1 {
		if c.Has(cap) {
			names = append(names, capNames[cap])
		}
	}
	return strings.Join(names, "|")
}

// ParseCapability maps a capability name to its flag.
func ParseCapability(name string) (Capability, error) {
	for cap, capName := range capNames {
		if capName == name {
			return cap, nil
		}
	}
	return 0, fmt.Errorf("unknown capability: %s", name)
}

// A Scope says which nodes, relative to the grant's target, a grant covers.
// Valid values are the closed enumeration 1 through 5: self, children,
// self+children, descendants, self+descendants.
type Scope int

const (
	ScopeSelf            Scope = 1
	ScopeChildren        Scope = 2
	ScopeSelfChildren    Scope = 3
	ScopeDescendants     Scope = 4
	ScopeSelfDescendants Scope = 5
)

func (s Scope) Valid() bool {
	return s >= ScopeSelf && s <= ScopeSelfDescendants
}

// Covers reports whether the scope covers a node at the given tree distance
// below the grant's target. Distance zero is the target itself.
func (s Scope) Covers(distance int) bool {
	switch {
	case distance == 0:
		return s&ScopeSelf != 0
	case distance == 1:
		return s&ScopeChildren != 0 || s&ScopeDescendants != 0
	case distance > 1:
		return s&ScopeDescendants != 0
	default:
		return false
	}
}

func (s Scope) String() string {
	switch s {
	case ScopeSelf:
		return "self"
	case ScopeChildren:
		return "children"
	case ScopeSelfChildren:
		return "self+children"
	case ScopeDescendants:
		return "descendants"
	case ScopeSelfDescendants:
		return "self+descendants"
	}
	return "invalid"
}

// A Grant binds a user or group to a target node with a scope and a set of
// capabilities. At least one of UserID and GroupID must be non-zero.
type Grant struct {
	ID      int
	NodeID  int
	UserID  int
	GroupID int
	Scope   Scope
	Caps    Capability
}

func (g *Grant) Validate() error {
	if !g.Scope.Valid() {
		return fmt.Errorf("invalid scope value %d", int(g.Scope))
	}
	if g.UserID == 0 && g.GroupID == 0 {
		return errors.New("grant needs a user or a group")
	}
	if g.Caps.Has(CapAdd) && !g.Caps.Has(CapChange) {
		return errors.New("grant with add capability must carry change")
	}
	return nil
}

// A GlobalGrant binds a user or group to all nodes, optionally restricted to
// a set of sites. An empty site set means unrestricted.
type GlobalGrant struct {
	ID      int
	UserID  int
	GroupID int
	Caps    Capability
	Sites   []int
}

func (g *GlobalGrant) Validate() error {
	if g.UserID == 0 && g.GroupID == 0 {
		return errors.New("grant needs a user or a group")
	}
	if g.Caps.Has(CapAdd) && !g.Caps.Has(CapChange) {
		return errors.New("grant with add capability must carry change")
	}
	return nil
}

func (g *GlobalGrant) AppliesTo(site int) bool {
	if len(g.Sites) == 0 {
		return true
	}
	for _, s := range g.Sites {
		if s == site {
			return true
		}
	}
	return false
}

type GrantDB interface {
	GetGrants(nodeID int) ([]Grant, error)
	GrantsFor(userID int, groupIDs []int) ([]Grant, error)
	GlobalGrantsFor(userID int, groupIDs []int) ([]GlobalGrant, error) // site sets loaded
	InsertGrant(g *Grant) error
	RemoveGrant(id int) error
	RemoveNodeGrants(nodeID int) error
	InsertGlobalGrant(g *GlobalGrant) error
	RemoveGlobalGrant(id int) error
}

// actorIDs returns the user id of the actor (zero for anonymous) and the ids
// of the actor's groups.
func (c *CoreDB) actorIDs(actor auth.User) (int, []int, error) {
	if actor == nil {
		return 0, nil, nil
	}
	groups, err := c.Auth.GetGroupsOf(actor)
	if err != nil {
		return 0, nil, err
	}
	var groupIDs = make([]int, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID())
	}
	return actor.ID(), groupIDs, nil
}

// HasPermission reports whether the actor may perform the capability on the
// node. A nil actor is the anonymous public. Denial is not an error.
func (c *CoreDB) HasPermission(actor auth.User, n *Node, cap Capability) (bool, error) {

	if actor != nil && actor.Superuser() {
		return true, nil
	}

	userID, groupIDs, err := c.actorIDs(actor)
	if err != nil {
		return false, err
	}

	globals, err := c.GlobalGrantsFor(userID, groupIDs)
	if err != nil {
		return false, err
	}
	for _, g := range globals {
		if g.Caps.Has(cap) && g.AppliesTo(n.Site) {
			return true, nil
		}
	}

	grants, err := c.GrantsFor(userID, groupIDs)
	if err != nil {
		return false, err
	}
	if len(grants) == 0 {
		return false, nil
	}

	ancestors, err := c.GetAncestors(n)
	if err != nil {
		return false, err
	}
	var levels = map[int]int{n.ID: n.Level} // ancestor-or-self id -> level
	for _, a := range ancestors {
		levels[a.ID] = a.Level
	}

	for _, g := range grants {
		targetLevel, ok := levels[g.NodeID]
		if !ok {
			continue // target is not an ancestor-or-self of n
		}
		if g.Scope.Covers(n.Level-targetLevel) && g.Caps.Has(cap) {
			return true, nil
		}
	}

	return false, nil
}

// RequirePermission is HasPermission for callers which want an error path.
// The error does not say whether the node exists.
func (c *CoreDB) RequirePermission(actor auth.User, n *Node, cap Capability) error {
	ok, err := c.HasPermission(actor, n, cap)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// A NodeSet is the result of a bulk permission query: either all nodes, or an
// explicit id set.
type NodeSet struct {
	All bool
	IDs map[int]struct{}
}

func (ns NodeSet) Contains(id int) bool {
	if ns.All {
		return true
	}
	_, ok := ns.IDs[id]
	return ok
}

// PermittedNodeIDs returns the set of node ids on which the actor holds the
// capability for the given site, expanding each qualifying grant's scope.
func (c *CoreDB) PermittedNodeIDs(actor auth.User, site int, cap Capability) (NodeSet, error) {

	if actor != nil && actor.Superuser() {
		return NodeSet{All: true}, nil
	}

	userID, groupIDs, err := c.actorIDs(actor)
	if err != nil {
		return NodeSet{}, err
	}

	globals, err := c.GlobalGrantsFor(userID, groupIDs)
	if err != nil {
		return NodeSet{}, err
	}
	for _, g := range globals {
		if g.Caps.Has(cap) && g.AppliesTo(site) {
			return NodeSet{All: true}, nil
		}
	}

	var ids = make(map[int]struct{})

	grants, err := c.GrantsFor(userID, groupIDs)
	if err != nil {
		return NodeSet{}, err
	}
	for _, g := range grants {
		if !g.Caps.Has(cap) {
			continue
		}
		target, err := c.GetNode(g.NodeID)
		if err != nil {
			if c.IsNotFound(err) {
				continue
			}
			return NodeSet{}, err
		}
		if target.Site != site {
			continue
		}
		if g.Scope&ScopeSelf != 0 {
			ids[target.ID] = struct{}{}
		}
		switch {
		case g.Scope&ScopeDescendants != 0:
			subtree, err := c.GetSubtree(target) // single range query
			if err != nil {
				return NodeSet{}, err
			}
			for _, n := range subtree {
				if n.ID != target.ID {
					ids[n.ID] = struct{}{}
				}
			}
		case g.Scope&ScopeChildren != 0:
			children, err := c.GetChildren(target.ID, target.Site, target.IsDraft)
			if err != nil {
				return NodeSet{}, err
			}
			for _, n := range children {
				ids[n.ID] = struct{}{}
			}
		}
	}

	return NodeSet{IDs: ids}, nil
}

// AddGrant validates and stores a node grant.
func (c *CoreDB) AddGrant(g *Grant) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if g.NodeID == 0 {
		return errors.New("grant needs a target node")
	}
	return c.InsertGrant(g)
}

// AddGlobalGrant validates and stores a global grant.
func (c *CoreDB) AddGlobalGrant(g *GlobalGrant) error {
	if err := g.Validate(); err != nil {
		return err
	}
	return c.InsertGlobalGrant(g)
}
