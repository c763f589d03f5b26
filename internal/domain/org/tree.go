package org

import "sort"

// Position is one node of the reporting hierarchy. ReportsTo is the id
// of the superior position, or 0 for a root. Hierarchy is defined
// between positions, never between employees directly.
type Position struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	DepartmentID int64  `json:"departmentId"`
	ReportsTo    int64  `json:"reportsTo"`
	RoleTag      string `json:"roleTag"`
}

// TreeNode is a display-oriented view of the forest.
type TreeNode struct {
	Position Position    `json:"position"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Snapshot is a read-only view over one fetch of the position table.
// Callers build a fresh snapshot per request; nothing here is shared or
// mutated after construction.
type Snapshot struct {
	byID     map[int64]Position
	children map[int64][]int64
}

// BuildSnapshot indexes a flat position list. Cyclic reports_to chains
// are quarantined up front: every position on a cycle has its parent
// link dropped and becomes a root, so traversal always terminates.
func BuildSnapshot(positions []Position) *Snapshot {
	byID := make(map[int64]Position, len(positions))
	for _, p := range positions {
		byID[p.ID] = p
	}

	for _, id := range cycleMembers(byID) {
		p := byID[id]
		p.ReportsTo = 0
		byID[id] = p
	}

	children := make(map[int64][]int64)
	for _, p := range byID {
		if p.ReportsTo == 0 {
			continue
		}
		if _, ok := byID[p.ReportsTo]; !ok {
			continue
		}
		children[p.ReportsTo] = append(children[p.ReportsTo], p.ID)
	}
	for parent := range children {
		ids := children[parent]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return &Snapshot{byID: byID, children: children}
}

// cycleMembers walks each parent chain with three-state marking and
// returns every position id that sits on a reports_to cycle.
func cycleMembers(byID map[int64]Position) []int64 {
	const (
		unvisited = 0
		inChain   = 1
		resolved  = 2
	)
	state := make(map[int64]int, len(byID))
	var cyclic []int64

	for start := range byID {
		if state[start] != unvisited {
			continue
		}
		var chain []int64
		current := start
		for {
			if current == 0 {
				break
			}
			p, ok := byID[current]
			if !ok {
				break
			}
			if state[current] == resolved {
				break
			}
			if state[current] == inChain {
				// Everything from the first occurrence of current in
				// the chain is on the cycle.
				for i := len(chain) - 1; i >= 0; i-- {
					cyclic = append(cyclic, chain[i])
					if chain[i] == current {
						break
					}
				}
				break
			}
			state[current] = inChain
			chain = append(chain, current)
			current = p.ReportsTo
		}
		for _, id := range chain {
			state[id] = resolved
		}
	}
	return cyclic
}

func (s *Snapshot) Position(id int64) (Position, bool) {
	p, ok := s.byID[id]
	return p, ok
}

func (s *Snapshot) Positions() []Position {
	out := make([]Position, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SubordinatePositionIDs returns every position whose superior chain
// includes positionID, excluding positionID itself. Unknown ids yield
// an empty set.
func (s *Snapshot) SubordinatePositionIDs(positionID int64) []int64 {
	var out []int64
	queue := append([]int64(nil), s.children[positionID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)
		queue = append(queue, s.children[id]...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DirectSubordinatePositionIDs returns positions reporting to
// positionID exactly one level down.
func (s *Snapshot) DirectSubordinatePositionIDs(positionID int64) []int64 {
	return append([]int64(nil), s.children[positionID]...)
}

func (s *Snapshot) HasAnySubordinates(positionID int64) bool {
	return len(s.children[positionID]) > 0
}

func (s *Snapshot) HasDirectSubordinates(positionID int64) bool {
	return len(s.children[positionID]) > 0
}

// IsSubordinate reports whether candidate sits anywhere below
// positionID in the hierarchy.
func (s *Snapshot) IsSubordinate(positionID, candidate int64) bool {
	for _, id := range s.SubordinatePositionIDs(positionID) {
		if id == candidate {
			return true
		}
	}
	return false
}

// Tree builds the display forest. Positions with no parent, or with a
// parent id missing from the snapshot, become roots.
func (s *Snapshot) Tree() []*TreeNode {
	var roots []*TreeNode
	for _, p := range s.Positions() {
		if p.ReportsTo == 0 {
			roots = append(roots, s.subtree(p))
			continue
		}
		if _, ok := s.byID[p.ReportsTo]; !ok {
			roots = append(roots, s.subtree(p))
		}
	}
	return roots
}

func (s *Snapshot) subtree(p Position) *TreeNode {
	node := &TreeNode{Position: p}
	for _, childID := range s.children[p.ID] {
		node.Children = append(node.Children, s.subtree(s.byID[childID]))
	}
	return node
}
