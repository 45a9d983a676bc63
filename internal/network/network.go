package network

import "fmt"

// Network owns the arenas of Nodes and Links plus the signals attached to
// them. All occupancy back-references (Link.CurrentTrains) are non-owning and
// cleared by the simulator on train removal; Network itself never reaches
// into a Train.
type Network struct {
	Nodes   []Node
	Links   []Link
	Signals []Signal

	userIDToNode map[int]int
	userIDToLink map[int]int
}

// NodeIndex returns the arena index of the node with the given external id.
func (n *Network) NodeIndex(userID int) (int, bool) {
	idx, ok := n.userIDToNode[userID]
	return idx, ok
}

// LinkIndex returns the arena index of the link with the given external id.
func (n *Network) LinkIndex(userID int) (int, bool) {
	idx, ok := n.userIDToLink[userID]
	return idx, ok
}

// linksBetween returns every link usable directly from node index `from` to
// node index `to` (both directions combined when the link is bidirectional),
// in arena insertion order.
func (n *Network) linksBetween(from, to int) []int {
	var out []int
	for _, li := range n.Nodes[from].Out[to] {
		out = append(out, li)
	}
	return out
}

// linkCost is the tie-break cost used to pick among parallel links: length /
// free-flow speed for a one-way link, squared for a two-way link (spec.md
// §4.1).
func (n *Network) linkCost(li int) float64 {
	l := &n.Links[li]
	if l.FreeFlowSpeed <= 0 {
		return l.Length
	}
	c := l.Length / l.FreeFlowSpeed
	if l.Directions == 2 {
		return c * c
	}
	return c
}

// SelectLink picks a concrete link for the (from,to) hop of a train's path:
// the link currently containing trainID if one qualifies, else the
// minimum-cost link among the parallels (spec.md §4.1).
func (n *Network) SelectLink(from, to, trainID int) (int, error) {
	candidates := n.linksBetween(from, to)
	if len(candidates) == 0 {
		return 0, fmt.Errorf("no link from node %d to node %d", n.Nodes[from].ID, n.Nodes[to].ID)
	}
	for _, li := range candidates {
		if n.Links[li].CurrentTrains[trainID] {
			return li, nil
		}
	}
	best := candidates[0]
	bestCost := n.linkCost(best)
	for _, li := range candidates[1:] {
		if c := n.linkCost(li); c < bestCost {
			best, bestCost = li, c
		}
	}
	return best, nil
}
