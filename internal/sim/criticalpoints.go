package sim

import "netrailsim/internal/model"

// geometryAtDistance samples the grade/curvature a vehicle centred at
// travelled-distance d would experience, clamped to the path's extent.
func (s *Simulator) geometryAtDistance(tp *trainPath, d float64) model.VehicleGeometry {
	if d < 0 {
		d = 0
	}
	total := tp.cum[len(tp.cum)-1]
	if d > total {
		d = total
	}
	hop := hopIndexAtClamped(tp, d)
	if len(tp.linkIdx) == 0 {
		return model.VehicleGeometry{}
	}
	l := &s.Net.Links[tp.linkIdx[hop]]
	return model.VehicleGeometry{Grade: l.Grade[tp.nodeIdx[hop]], Curvature: l.Curvature}
}

// vehicleGeometries samples geometry at every vehicle's own centroid offset
// from the train's head (spec.md §3's per-vehicle grade/curvature sampling).
func (s *Simulator) vehicleGeometries(tr *model.Train, tp *trainPath) []model.VehicleGeometry {
	offsets := tr.VehicleCentroidOffsets()
	out := make([]model.VehicleGeometry, len(offsets))
	for i, off := range offsets {
		out[i] = s.geometryAtDistance(tp, tr.TravelledDistanceM-off)
	}
	return out
}

// isSignalRed reports whether the oriented approach (li, fromNode->toNode)
// carries a signal that is currently red. No signal on that approach is not
// a stopping condition.
func (s *Simulator) isSignalRed(li, fromNode, toNode int) bool {
	si, ok := s.signalByLinkNode[[2]int{li, toNode}]
	if !ok {
		return false
	}
	sig := s.Net.Signals[si]
	if sig.FromNode != fromNode {
		return false
	}
	return !sig.Green
}

// assembleCriticalPoints implements spec.md §4.5.1: a lower-speed-segment
// point for every upcoming hop whose link is slower than the current one, a
// stop point at the next terminal or red-signal node, and a leading-train
// point for the nearest train ahead on the identical path.
func (s *Simulator) assembleCriticalPoints(tr *model.Train, tp *trainPath, snaps map[int]trainSnapshot) tickContext {
	var ctx tickContext
	d := tr.TravelledDistanceM

	startHop := hopIndexAt(tp, d)
	if startHop < 0 {
		startHop = 0
	}
	if len(tp.linkIdx) > 0 {
		ctx.freeFlowSpeedMS = s.Net.Links[tp.linkIdx[startHop]].FreeFlowSpeed
	}

	for j := startHop; j+1 < len(tp.linkIdx); j++ {
		curFF := s.Net.Links[tp.linkIdx[j]].FreeFlowSpeed
		nextFF := s.Net.Links[tp.linkIdx[j+1]].FreeFlowSpeed
		gap := tp.cum[j+1] - d
		if gap <= 0 {
			continue
		}
		if nextFF < curFF {
			ctx.criticalPoints = append(ctx.criticalPoints, model.CriticalPoint{GapM: gap, LeaderSpeedMS: nextFF})
		}
	}

	for j := startHop; j+1 < len(tp.nodeIdx); j++ {
		nodeIdx := tp.nodeIdx[j+1]
		gap := tp.cum[j+1] - d
		if gap < 0 {
			continue
		}
		isTerminal := s.Net.Nodes[nodeIdx].IsTerminal
		isRed := s.isSignalRed(tp.linkIdx[j], tp.nodeIdx[j], nodeIdx)
		if isTerminal || isRed {
			ctx.criticalPoints = append(ctx.criticalPoints, model.CriticalPoint{GapM: gap, LeaderSpeedMS: 0})
			if isRed {
				ctx.nextIsRedSignalAhead = true
			}
			break
		}
	}

	if gap, leaderSpeed, ok := s.nearestAheadTrain(tr, snaps); ok {
		ctx.criticalPoints = append(ctx.criticalPoints, model.CriticalPoint{GapM: gap, IsLeadingTrain: true, LeaderSpeedMS: leaderSpeed})
	}

	return ctx
}

// nearestAheadTrain finds the train on the identical expanded path strictly
// ahead of tr with the smallest head-to-{head,tail} Euclidean gap (spec.md
// §9's resolved intent for "nearest train ahead").
func (s *Simulator) nearestAheadTrain(tr *model.Train, snaps map[int]trainSnapshot) (gap, leaderSpeed float64, ok bool) {
	mySnap, present := snaps[tr.ID]
	if !present {
		return 0, 0, false
	}
	best := -1.0
	for _, other := range s.Trains {
		if other.ID == tr.ID || !other.Loaded || other.ReachedDestination {
			continue
		}
		if !samePath(tr.Path, other.Path) {
			continue
		}
		otherSnap, present := snaps[other.ID]
		if !present || otherSnap.travelled <= mySnap.travelled {
			continue
		}
		g := dist(mySnap.head, otherSnap.head)
		if gt := dist(mySnap.head, otherSnap.tail); gt < g {
			g = gt
		}
		if best < 0 || g < best {
			best, leaderSpeed, ok = g, otherSnap.speed, true
		}
	}
	return best, leaderSpeed, ok
}
