package sim

import (
	"math"

	"netrailsim/internal/model"
	"netrailsim/internal/network"
	"netrailsim/internal/signalctl"
)

// unionFind merges node arena indices into coalesced signal groups.
type unionFind struct {
	parent map[int]int
}

func newUnionFind() *unionFind { return &unionFind{parent: make(map[int]int)} }

func (u *unionFind) find(x int) int {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
	if u.parent[x] != x {
		u.parent[x] = u.find(u.parent[x])
	}
	return u.parent[x]
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// buildSignalGroups implements spec.md §4.6's grouping-policy setup
// algorithm: for every ordered pair of trains, the signal-bearing nodes
// their paths share are walked pairwise and merged whenever the
// between-distance is under one train-length or the intervening sub-path is
// a conflict zone; the resulting node sets are then union-coalesced to a
// fixed point via the union-find itself. One Controller is built per
// resulting group (a never-merged signal node still gets its own singleton
// controller), grounded on NeTrainSim's netsignalgroupcontrollerwithqueuing
// group-assembly pass.
func buildSignalGroups(net *network.Network, trains []*model.Train, paths map[int]*trainPath, timeout float64) ([]*signalctl.Controller, map[int]*signalctl.Controller) {
	signalNodes := make(map[int]bool, len(net.Signals))
	for _, sig := range net.Signals {
		signalNodes[sig.ToNode] = true
	}

	uf := newUnionFind()
	seen := make(map[int]bool)
	for n := range signalNodes {
		seen[n] = true
	}

	for _, a := range trains {
		tpA, ok := paths[a.ID]
		if !ok {
			continue
		}
		posInA := make(map[int]int, len(tpA.nodeIdx))
		for p, n := range tpA.nodeIdx {
			posInA[n] = p
		}
		for _, b := range trains {
			if a.ID == b.ID {
				continue
			}
			tpB, ok := paths[b.ID]
			if !ok {
				continue
			}
			bSet := make(map[int]bool, len(tpB.nodeIdx))
			for _, n := range tpB.nodeIdx {
				bSet[n] = true
			}

			var common []int
			for _, n := range tpA.nodeIdx {
				if signalNodes[n] && bSet[n] {
					common = append(common, n)
				}
			}

			trainLen := a.TotalLengthM
			if b.TotalLengthM > trainLen {
				trainLen = b.TotalLengthM
			}
			for k := 0; k+1 < len(common); k++ {
				n0, n1 := common[k], common[k+1]
				p0, p1 := posInA[n0], posInA[n1]
				between := tpA.cum[p1] - tpA.cum[p0]
				conflict := net.ConflictZone(tpA.nodeIdx, p0, p1)
				if between < trainLen || conflict {
					uf.union(n0, n1)
				}
			}
		}
	}

	groupsByRoot := make(map[int][]int)
	for n := range seen {
		groupsByRoot[uf.find(n)] = append(groupsByRoot[uf.find(n)], n)
	}

	var controllers []*signalctl.Controller
	nodeController := make(map[int]*signalctl.Controller)
	for _, nodes := range groupsByRoot {
		memberNodes := make(map[int]bool, len(nodes))
		for _, n := range nodes {
			memberNodes[n] = true
		}
		var memberSignals []int
		for si, sig := range net.Signals {
			if memberNodes[sig.ToNode] {
				memberSignals = append(memberSignals, si)
			}
		}
		ctrl := signalctl.New(memberNodes, memberSignals, timeout)
		controllers = append(controllers, ctrl)
		for n := range memberNodes {
			nodeController[n] = ctrl
		}
	}
	return controllers, nodeController
}

// computeProximityDistances implements spec.md §4.6's activation-distance
// rule: for every signal, the max over all trains whose path uses it of
// max(initialGap, minGap + Ts*v + v^2/(2*d_des)), evaluated at the link's
// free-flow speed.
func computeProximityDistances(net *network.Network, trains []*model.Train, paths map[int]*trainPath) {
	for si := range net.Signals {
		sig := &net.Signals[si]
		v := net.Links[sig.LinkIndex].FreeFlowSpeed
		best := 0.0
		for _, tr := range trains {
			tp, ok := paths[tr.ID]
			if !ok || !trainUsesSignal(tp, sig.LinkIndex, sig.FromNode, sig.ToNode) {
				continue
			}
			ts := tr.Dynamics.PerceptionReactionS + tr.TotalLengthM/speedOfSoundMS
			cand := tr.Dynamics.InitialGapM
			alt := tr.Dynamics.MinGapM + ts*v + v*v/(2*tr.Dynamics.DesiredDecelMS2)
			if alt > cand {
				cand = alt
			}
			if cand > best {
				best = cand
			}
		}
		sig.ProximityDistance = best
	}
}

func trainUsesSignal(tp *trainPath, linkIdx, fromNode, toNode int) bool {
	for i, li := range tp.linkIdx {
		if li == linkIdx && tp.nodeIdx[i] == fromNode && tp.nodeIdx[i+1] == toNode {
			return true
		}
	}
	return false
}

// runSignalArbitration implements spec.md §4.6's per-tick controller
// protocol: every active train with a member node still ahead on its path
// joins that group's FIFO, and once within the group's activation distance of
// that node it also requests passage for the signals it would cross in its
// own direction; stale FIFO entries are cleared, and the
// resulting green/red partition is written back onto the network's signals
// for the next tick's critical-point assembly to read.
func (s *Simulator) runSignalArbitration() {
	for _, tr := range s.Trains {
		if !tr.Loaded || tr.ReachedDestination {
			continue
		}
		tp := s.paths[tr.ID]
		for _, ctrl := range s.trainGroupsOnPath(tp) {
			gap, ok := s.nearestMemberNodeGap(tr, tp, ctrl)
			if !ok {
				continue
			}
			ctrl.AddTrain(tr.ID, s.Now)
			if gap <= s.maxProximity(ctrl) {
				ctrl.RequestPass(tr.ID, s.Now, s.signalsInTrainDirection(tp, ctrl))
			}
		}
	}
	for _, ctrl := range s.groups {
		ctrl.ClearTimeouts(s.Now)
		green, red := ctrl.GetFeedback()
		for _, si := range green {
			s.Net.Signals[si].Green = true
		}
		for _, si := range red {
			s.Net.Signals[si].Green = false
		}
	}
}

func (s *Simulator) trainGroupsOnPath(tp *trainPath) []*signalctl.Controller {
	var out []*signalctl.Controller
	seen := make(map[*signalctl.Controller]bool)
	for _, n := range tp.nodeIdx {
		ctrl, ok := s.nodeController[n]
		if ok && !seen[ctrl] {
			seen[ctrl] = true
			out = append(out, ctrl)
		}
	}
	return out
}

func (s *Simulator) nearestMemberNodeGap(tr *model.Train, tp *trainPath, ctrl *signalctl.Controller) (float64, bool) {
	d := tr.TravelledDistanceM
	best := math.Inf(1)
	found := false
	for j, n := range tp.nodeIdx {
		if !ctrl.MemberNodes[n] {
			continue
		}
		gap := tp.cum[j] - d
		if gap < 0 {
			continue
		}
		if gap < best {
			best, found = gap, true
		}
	}
	return best, found
}

func (s *Simulator) maxProximity(ctrl *signalctl.Controller) float64 {
	best := 0.0
	for _, si := range ctrl.MemberSignals {
		if p := s.Net.Signals[si].ProximityDistance; p > best {
			best = p
		}
	}
	return best
}

func (s *Simulator) signalsInTrainDirection(tp *trainPath, ctrl *signalctl.Controller) []int {
	var out []int
	for i := 0; i+1 < len(tp.nodeIdx); i++ {
		from, to := tp.nodeIdx[i], tp.nodeIdx[i+1]
		for _, si := range ctrl.MemberSignals {
			sig := s.Net.Signals[si]
			if sig.FromNode == from && sig.ToNode == to {
				out = append(out, si)
			}
		}
	}
	return out
}
