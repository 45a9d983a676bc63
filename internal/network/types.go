// Package network implements the directed multigraph of nodes and links that
// trains move over: ingestion from external records, shortest-path expansion
// of a sparse user path, cumulative-length precomputation, position
// interpolation along a link's polyline, and conflict-zone detection for
// signal grouping.
//
// Nodes and links live in dense arenas (Network.Nodes, Network.Links)
// addressed by slice index; every cross-reference (adjacency, signal
// membership, per-train occupancy) stores an index into one of those arenas
// rather than a pointer, so there is no ownership cycle to reason about (see
// SPEC_FULL.md §9 / §3).
package network

import "fmt"

// Point is a planar coordinate.
type Point struct {
	X, Y float64
}

// Node is a stable network vertex: a junction, a terminal, or a waypoint.
type Node struct {
	ID         int
	Pos        Point
	IsTerminal bool
	DwellTime  float64 // seconds, only meaningful when IsTerminal

	// Out maps a destination node's arena index to the link indices usable
	// to reach it directly (parallel links keep their own entry order).
	Out map[int][]int
}

// Link is a stable directed (or bidirectional) edge between two nodes.
type Link struct {
	ID            int
	FromNode      int // arena index
	ToNode        int // arena index
	Length        float64
	FreeFlowSpeed float64
	Directions    int // 1 = one-way From->To, 2 = bidirectional
	Grade         map[int]float64 // node arena index -> signed grade at that end
	Curvature     float64         // unsigned
	HasCatenary   bool
	Points        []Point // intermediate polyline points, From..To order
	SignalGroupID int     // traffic-signal membership id; 0 = none
	SignalNodes   map[int]bool // arena indices of end nodes where a signal applies
	Region        string

	CurrentTrains map[int]bool // train ids currently occupying this link
}

// OtherEnd returns the node index at the opposite end of node idx on this
// link. Panics if idx is neither endpoint (a programmer error, never an
// input-data error).
func (l *Link) OtherEnd(nodeIdx int) int {
	switch nodeIdx {
	case l.FromNode:
		return l.ToNode
	case l.ToNode:
		return l.FromNode
	default:
		panic(fmt.Sprintf("link %d: node %d is not an endpoint", l.ID, nodeIdx))
	}
}

// UsableFrom reports whether this link can be traversed starting at node
// index `from`.
func (l *Link) UsableFrom(from int) bool {
	if from == l.FromNode {
		return true
	}
	return from == l.ToNode && l.Directions == 2
}

// Signal belongs to one link and one oriented (previous-node, current-node)
// pair. Green/red state is mutable; ProximityDistance is the precomputed
// activation distance from §4.6.
type Signal struct {
	LinkIndex         int
	FromNode          int // arena index: the oriented "previous" node
	ToNode            int // arena index: the oriented "current"/approach node
	Green             bool
	ProximityDistance float64
}
