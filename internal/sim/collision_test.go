package sim

import (
	"testing"

	"netrailsim/internal/network"

	"github.com/stretchr/testify/require"
)

func TestSharedLink_FindsCommonLink(t *testing.T) {
	a := map[int]bool{1: true, 2: true}
	b := map[int]bool{2: true, 3: true}
	li, ok := sharedLink(a, b)
	require.True(t, ok)
	require.Equal(t, 2, li)
}

func TestSharedLink_NoneInCommon(t *testing.T) {
	_, ok := sharedLink(map[int]bool{1: true}, map[int]bool{2: true})
	require.False(t, ok)
}

func TestSegmentsIntersect_CrossingSegments(t *testing.T) {
	p1 := network.Point{X: 0, Y: 0}
	p2 := network.Point{X: 10, Y: 10}
	p3 := network.Point{X: 0, Y: 10}
	p4 := network.Point{X: 10, Y: 0}
	require.True(t, segmentsIntersect(p1, p2, p3, p4))
}

func TestSegmentsIntersect_ParallelNonOverlapping(t *testing.T) {
	p1 := network.Point{X: 0, Y: 0}
	p2 := network.Point{X: 10, Y: 0}
	p3 := network.Point{X: 0, Y: 5}
	p4 := network.Point{X: 10, Y: 5}
	require.False(t, segmentsIntersect(p1, p2, p3, p4))
}

func TestSegmentsIntersect_CollinearOverlapCounts(t *testing.T) {
	// Two trains on the identical straight stretch of track, one's head
	// inside the other's span: this is exactly the head-to-tail overlap
	// spec.md §4.5 step 5 means to catch, not just a crossing-X collision.
	p1 := network.Point{X: 0, Y: 0}
	p2 := network.Point{X: 10, Y: 0}
	p3 := network.Point{X: 5, Y: 0}
	p4 := network.Point{X: 15, Y: 0}
	require.True(t, segmentsIntersect(p1, p2, p3, p4))
}

func TestSegmentsIntersect_CollinearDisjointDoesNotCount(t *testing.T) {
	p1 := network.Point{X: 0, Y: 0}
	p2 := network.Point{X: 10, Y: 0}
	p3 := network.Point{X: 20, Y: 0}
	p4 := network.Point{X: 30, Y: 0}
	require.False(t, segmentsIntersect(p1, p2, p3, p4))
}

func TestOrientation_SignMatchesTurnDirection(t *testing.T) {
	a := network.Point{X: 0, Y: 0}
	b := network.Point{X: 10, Y: 0}
	left := network.Point{X: 10, Y: 10}
	right := network.Point{X: 10, Y: -10}
	collinear := network.Point{X: 20, Y: 0}

	require.NotEqual(t, 0.0, orientation(a, b, left))
	require.Equal(t, -orientation(a, b, left), orientation(a, b, right))
	require.Equal(t, 0.0, orientation(a, b, collinear))
}

func TestOnSegment_InsideAndOutsideBoundingBox(t *testing.T) {
	a := network.Point{X: 0, Y: 0}
	b := network.Point{X: 10, Y: 0}
	require.True(t, onSegment(a, b, network.Point{X: 5, Y: 0}))
	require.False(t, onSegment(a, b, network.Point{X: 15, Y: 0}))
}
