package sim

import (
	"fmt"
	"math"

	"netrailsim/internal/errs"
	"netrailsim/internal/model"
	"netrailsim/internal/network"
	"netrailsim/internal/telemetry"
)

// detectCollisions implements spec.md §4.5 step 5: every unordered pair of
// active trains that share at least one current link and whose
// head-to-tail segments intersect geometrically is reported.
func (s *Simulator) detectCollisions(active []*model.Train) {
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			a, b := active[i], active[j]
			li, shared := sharedLink(a.CurrentLinks, b.CurrentLinks)
			if !shared {
				continue
			}
			tpA, tpB := s.paths[a.ID], s.paths[b.ID]
			ah, _, _ := s.Net.PositionFromDistance(tpA.cum, tpA.nodeIdx, tpA.linkIdx, a.TravelledDistanceM)
			at, _, _ := s.Net.PositionFromDistance(tpA.cum, tpA.nodeIdx, tpA.linkIdx, math.Max(0, a.TravelledDistanceM-a.TotalLengthM))
			bh, _, _ := s.Net.PositionFromDistance(tpB.cum, tpB.nodeIdx, tpB.linkIdx, b.TravelledDistanceM)
			bt, _, _ := s.Net.PositionFromDistance(tpB.cum, tpB.nodeIdx, tpB.linkIdx, math.Max(0, b.TravelledDistanceM-b.TotalLengthM))

			if segmentsIntersect(at, ah, bt, bh) {
				s.hub.Publish(telemetry.CollisionEvent{Tick: s.tick, TrainA: a.ID, TrainB: b.ID, LinkID: s.Net.Links[li].ID})
				s.Warnings = append(s.Warnings, errs.Warning{
					Kind: errs.ErrCollision, TrainID: a.ID, Tick: s.tick,
					Detail: fmt.Sprintf("with train %d on link %d", b.ID, s.Net.Links[li].ID),
				})
			}
		}
	}
}

func sharedLink(a, b map[int]bool) (int, bool) {
	for li := range a {
		if b[li] {
			return li, true
		}
	}
	return 0, false
}

// segmentsIntersect is the standard orientation + on-segment test for two
// planar segments p1-p2 and p3-p4 (collinear overlap counts as intersecting,
// since two trains overlapping on the same straight stretch of track is
// exactly the collision spec.md §4.5 step 5 means to catch).
func segmentsIntersect(p1, p2, p3, p4 network.Point) bool {
	d1 := orientation(p3, p4, p1)
	d2 := orientation(p3, p4, p2)
	d3 := orientation(p1, p2, p3)
	d4 := orientation(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	if d1 == 0 && onSegment(p3, p4, p1) {
		return true
	}
	if d2 == 0 && onSegment(p3, p4, p2) {
		return true
	}
	if d3 == 0 && onSegment(p1, p2, p3) {
		return true
	}
	if d4 == 0 && onSegment(p1, p2, p4) {
		return true
	}
	return false
}

func orientation(a, b, c network.Point) float64 {
	val := (b.Y-a.Y)*(c.X-b.X) - (b.X-a.X)*(c.Y-b.Y)
	const eps = 1e-9
	if val > eps {
		return 1
	}
	if val < -eps {
		return -1
	}
	return 0
}

func onSegment(a, b, p network.Point) bool {
	return p.X >= math.Min(a.X, b.X)-1e-9 && p.X <= math.Max(a.X, b.X)+1e-9 &&
		p.Y >= math.Min(a.Y, b.Y)-1e-9 && p.Y <= math.Max(a.Y, b.Y)+1e-9
}
