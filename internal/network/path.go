package network

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"netrailsim/internal/errs"
)

const tieBreakEpsilon = 1e-9

type pqItem struct {
	node int
	dist float64
}

type pq []pqItem

func (p pq) Len() int            { return len(p) }
func (p pq) Less(i, j int) bool  { return p[i].dist < p[j].dist }
func (p pq) Swap(i, j int)       { p[i], p[j] = p[j], p[i] }
func (p *pq) Push(x interface{}) { *p = append(*p, x.(pqItem)) }
func (p *pq) Pop() interface{} {
	old := *p
	n := len(old)
	item := old[n-1]
	*p = old[:n-1]
	return item
}

// ShortestPath runs a standard unvisited-min-distance relaxation over link
// lengths from fromUserID to toUserID, tie-breaking on lowest node id, and
// returns the full node-id sequence of the minimum-length simple path.
func (n *Network) ShortestPath(fromUserID, toUserID int) ([]int, error) {
	from, ok := n.userIDToNode[fromUserID]
	if !ok {
		return nil, fmt.Errorf("shortest path: unknown node %d: %w", fromUserID, errs.ErrPathNotFound)
	}
	to, ok := n.userIDToNode[toUserID]
	if !ok {
		return nil, fmt.Errorf("shortest path: unknown node %d: %w", toUserID, errs.ErrPathNotFound)
	}
	if from == to {
		return []int{n.Nodes[from].ID}, nil
	}

	dist := make([]float64, len(n.Nodes))
	prev := make([]int, len(n.Nodes))
	visited := make([]bool, len(n.Nodes))
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	dist[from] = 0

	q := &pq{{node: from, dist: 0}}
	heap.Init(q)
	for q.Len() > 0 {
		cur := heap.Pop(q).(pqItem)
		u := cur.node
		if visited[u] {
			continue
		}
		visited[u] = true
		if u == to {
			break
		}

		// Visit neighbors in ascending node-id order so that the
		// lowest-node-id tie-break is deterministic regardless of map
		// iteration order.
		neighbors := make([]int, 0, len(n.Nodes[u].Out))
		for v := range n.Nodes[u].Out {
			neighbors = append(neighbors, v)
		}
		sort.Slice(neighbors, func(i, j int) bool { return n.Nodes[neighbors[i]].ID < n.Nodes[neighbors[j]].ID })

		for _, v := range neighbors {
			if visited[v] {
				continue
			}
			w := math.Inf(1)
			for _, li := range n.Nodes[u].Out[v] {
				if c := n.Links[li].Length; c < w {
					w = c
				}
			}
			nd := dist[u] + w
			if nd < dist[v]-tieBreakEpsilon {
				dist[v] = nd
				prev[v] = u
				heap.Push(q, pqItem{node: v, dist: nd})
			} else if math.Abs(nd-dist[v]) <= tieBreakEpsilon && (prev[v] == -1 || n.Nodes[u].ID < n.Nodes[prev[v]].ID) {
				prev[v] = u
			}
		}
	}

	if math.IsInf(dist[to], 1) {
		return nil, fmt.Errorf("no path from node %d to node %d: %w", fromUserID, toUserID, errs.ErrPathNotFound)
	}

	var revIdx []int
	for at := to; at != -1; at = prev[at] {
		revIdx = append(revIdx, at)
		if at == from {
			break
		}
	}
	path := make([]int, 0, len(revIdx))
	for i := len(revIdx) - 1; i >= 0; i-- {
		path = append(path, n.Nodes[revIdx[i]].ID)
	}
	return path, nil
}

// ExpandPath closes gaps in a sparse user-supplied path by splicing in the
// shortest path between each consecutive pair that isn't already directly
// connected. Expanding an already-complete path returns it unchanged
// (idempotent, per spec.md §8).
func (n *Network) ExpandPath(sparse []int) ([]int, error) {
	if len(sparse) == 0 {
		return nil, fmt.Errorf("empty path: %w", errs.ErrPathNotFound)
	}
	if len(sparse) == 1 {
		if _, ok := n.userIDToNode[sparse[0]]; !ok {
			return nil, fmt.Errorf("unknown node %d: %w", sparse[0], errs.ErrPathNotFound)
		}
		return []int{sparse[0]}, nil
	}

	full := []int{sparse[0]}
	for i := 0; i+1 < len(sparse); i++ {
		a, okA := n.userIDToNode[sparse[i]]
		b, okB := n.userIDToNode[sparse[i+1]]
		if okA && okB && len(n.Nodes[a].Out[b]) > 0 {
			full = append(full, sparse[i+1])
			continue
		}
		seg, err := n.ShortestPath(sparse[i], sparse[i+1])
		if err != nil {
			return nil, err
		}
		full = append(full, seg[1:]...)
	}
	return full, nil
}

// combinedLinks returns, as a set of arena indices, every distinct link
// connecting node index a and node index b, counting both directions as one
// set (a bidirectional link appears once even though it is reachable from
// both ends).
func (n *Network) combinedLinks(a, b int) map[int]bool {
	set := make(map[int]bool)
	for _, li := range n.Nodes[a].Out[b] {
		set[li] = true
	}
	for _, li := range n.Nodes[b].Out[a] {
		set[li] = true
	}
	return set
}

// ConflictZone reports whether the sub-path path[a:b+1] is a conflict zone:
// every consecutive node pair on it is connected by exactly one distinct
// link (spec.md §4.1).
func (n *Network) ConflictZone(pathNodeIdx []int, a, b int) bool {
	if a >= b {
		return false
	}
	for i := a; i < b; i++ {
		if len(n.combinedLinks(pathNodeIdx[i], pathNodeIdx[i+1])) != 1 {
			return false
		}
	}
	return true
}

// CumulativeLengths precomputes cum[i] = distance from path start to node i,
// plus the concrete link arena index used for each hop, selecting among
// parallel links per Network.SelectLink.
func (n *Network) CumulativeLengths(pathUserIDs []int, trainID int) (cum []float64, pathNodeIdx []int, linkIdx []int, err error) {
	pathNodeIdx = make([]int, len(pathUserIDs))
	for i, uid := range pathUserIDs {
		idx, ok := n.userIDToNode[uid]
		if !ok {
			return nil, nil, nil, fmt.Errorf("unknown node %d: %w", uid, errs.ErrPathNotFound)
		}
		pathNodeIdx[i] = idx
	}

	cum = make([]float64, len(pathNodeIdx))
	linkIdx = make([]int, 0, len(pathNodeIdx)-1)
	for i := 1; i < len(pathNodeIdx); i++ {
		li, serr := n.SelectLink(pathNodeIdx[i-1], pathNodeIdx[i], trainID)
		if serr != nil {
			return nil, nil, nil, fmt.Errorf("cumulative lengths: %w", serr)
		}
		linkIdx = append(linkIdx, li)
		cum[i] = cum[i-1] + n.Links[li].Length
	}
	return cum, pathNodeIdx, linkIdx, nil
}

// polyline returns the ordered sequence of points along link li as travelled
// from node index `from` (one of the link's endpoints) to the other end,
// together with the cumulative along-polyline distance to each point
// (cumDist[0] is 0 at the start node). When travelling in reverse (from ==
// l.ToNode on a bidirectional link) the intermediate points are walked back
// to front: cumDist[1] is the length from the link's ToNode to its last
// intermediate point, each following entry adds one intermediate segment in
// that reversed order, and the last entry adds the segment from the first
// intermediate point to the FromNode.
func (n *Network) polyline(li, from int) (points []Point, cumDist []float64) {
	l := &n.Links[li]
	forward := from == l.FromNode

	fromPt := n.Nodes[l.FromNode].Pos
	toPt := n.Nodes[l.ToNode].Pos

	if forward {
		points = append(points, fromPt)
		points = append(points, l.Points...)
		points = append(points, toPt)
	} else {
		points = append(points, toPt)
		for i := len(l.Points) - 1; i >= 0; i-- {
			points = append(points, l.Points[i])
		}
		points = append(points, fromPt)
	}

	cumDist = make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		dx := points[i].X - points[i-1].X
		dy := points[i].Y - points[i-1].Y
		cumDist[i] = cumDist[i-1] + math.Hypot(dx, dy)
	}
	return points, cumDist
}

// PositionFromDistance maps a train's travelled distance along its expanded
// path to a plane position, walking segment-by-segment through the current
// link's intermediate points via binary search over segment-cumulative
// lengths. travelledLength is measured against simulatorLength (Link.Length)
// directly, per spec.md §9's resolution of the findPositionOnLink ambiguity.
func (n *Network) PositionFromDistance(cum []float64, pathNodeIdx []int, linkIdx []int, distance float64) (Point, int, error) {
	if len(cum) == 0 {
		return Point{}, 0, fmt.Errorf("empty path")
	}
	total := cum[len(cum)-1]
	if distance < 0 {
		distance = 0
	}
	if distance > total {
		distance = total
	}

	// Binary search cum for the hop containing `distance`.
	seg := sort.Search(len(cum)-1, func(i int) bool { return cum[i+1] >= distance })
	if seg >= len(linkIdx) {
		seg = len(linkIdx) - 1
	}
	li := linkIdx[seg]
	within := distance - cum[seg]

	points, segCum := n.polyline(li, pathNodeIdx[seg])
	linkLen := segCum[len(segCum)-1]
	if linkLen <= 0 {
		return points[0], li, nil
	}
	if within > linkLen {
		within = linkLen
	}

	k := sort.Search(len(segCum)-1, func(i int) bool { return segCum[i+1] >= within })
	if k >= len(points)-1 {
		k = len(points) - 2
	}
	segLen := segCum[k+1] - segCum[k]
	t := 0.0
	if segLen > 0 {
		t = (within - segCum[k]) / segLen
	}
	p := Point{
		X: points[k].X + (points[k+1].X-points[k].X)*t,
		Y: points[k].Y + (points[k+1].Y-points[k].Y)*t,
	}
	return p, li, nil
}
