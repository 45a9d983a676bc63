package network

import (
	"fmt"

	"netrailsim/internal/errs"
)

// NodeRecord is the external Node input record (spec.md §6). Parsing it off
// disk is out of scope; constructing one and handing it to NewNetwork is not.
type NodeRecord struct {
	UserID           int
	X, Y             float64
	Desc             string
	IsTerminal       bool
	TerminalDwellTime float64
	XScale, YScale   float64
}

// LinkRecord is the external Link input record (spec.md §6).
type LinkRecord struct {
	UserID         int
	FromNodeUserID int
	ToNodeUserID   int
	Length         float64
	FreeFlowSpeed  float64
	SignalID       int // 0 = no signal, 10001 = marks ToNode as a depot
	Grade          float64
	Curvature      float64
	Directions     int
	SpeedVariation float64
	HasCatenary    bool
	SignalsAtNodes []int // node userIds; empty slice = "apply the default rule"
	Region         string
	LengthScale    float64
	SpeedScale     float64
	Points         []Point
}

const depotSignalID = 10001

// NewNetwork ingests node and link records into a Network, applying the
// scale-factor and signal-placement rules from spec.md §6.
func NewNetwork(nodeRecs []NodeRecord, linkRecs []LinkRecord) (*Network, error) {
	n := &Network{
		userIDToNode: make(map[int]int, len(nodeRecs)),
		userIDToLink: make(map[int]int, len(linkRecs)),
	}

	for _, r := range nodeRecs {
		xs, ys := r.XScale, r.YScale
		if xs == 0 {
			xs = 1
		}
		if ys == 0 {
			ys = 1
		}
		idx := len(n.Nodes)
		n.Nodes = append(n.Nodes, Node{
			ID:         r.UserID,
			Pos:        Point{X: r.X * xs, Y: r.Y * ys},
			IsTerminal: r.IsTerminal,
			DwellTime:  r.TerminalDwellTime,
			Out:        make(map[int][]int),
		})
		n.userIDToNode[r.UserID] = idx
	}

	for _, r := range linkRecs {
		fromIdx, ok := n.userIDToNode[r.FromNodeUserID]
		if !ok {
			return nil, fmt.Errorf("link %d: unknown from-node %d: %w", r.UserID, r.FromNodeUserID, errs.ErrInvalidGeometry)
		}
		toIdx, ok := n.userIDToNode[r.ToNodeUserID]
		if !ok {
			return nil, fmt.Errorf("link %d: unknown to-node %d: %w", r.UserID, r.ToNodeUserID, errs.ErrInvalidGeometry)
		}
		ls, ss := r.LengthScale, r.SpeedScale
		if ls == 0 {
			ls = 1
		}
		if ss == 0 {
			ss = 1
		}
		length := r.Length * ls
		if length <= 0 {
			return nil, fmt.Errorf("link %d: length %.3f <= 0: %w", r.UserID, length, errs.ErrInvalidGeometry)
		}
		dirs := r.Directions
		if dirs != 1 && dirs != 2 {
			dirs = 1
		}

		grade := map[int]float64{fromIdx: r.Grade, toIdx: -r.Grade}

		signalNodes := make(map[int]bool)
		isDepotMarker := r.SignalID == depotSignalID
		hasSignal := r.SignalID != 0 && r.SignalID != depotSignalID
		if hasSignal {
			if len(r.SignalsAtNodes) > 0 {
				for _, uid := range r.SignalsAtNodes {
					if idx, ok := n.userIDToNode[uid]; ok {
						signalNodes[idx] = true
					}
				}
			} else if dirs == 2 {
				signalNodes[fromIdx] = true
				signalNodes[toIdx] = true
			} else {
				signalNodes[toIdx] = true
			}
		}
		if isDepotMarker {
			nd := n.Nodes[toIdx]
			nd.IsTerminal = true
			n.Nodes[toIdx] = nd
		}

		idx := len(n.Links)
		n.Links = append(n.Links, Link{
			ID:            r.UserID,
			FromNode:      fromIdx,
			ToNode:        toIdx,
			Length:        length,
			FreeFlowSpeed: r.FreeFlowSpeed * ss,
			Directions:    dirs,
			Grade:         grade,
			Curvature:     r.Curvature,
			HasCatenary:   r.HasCatenary,
			Points:        append([]Point(nil), r.Points...),
			SignalGroupID: r.SignalID,
			SignalNodes:   signalNodes,
			Region:        r.Region,
			CurrentTrains: make(map[int]bool),
		})
		n.userIDToLink[r.UserID] = idx

		n.Nodes[fromIdx].Out[toIdx] = append(n.Nodes[fromIdx].Out[toIdx], idx)
		if dirs == 2 {
			n.Nodes[toIdx].Out[fromIdx] = append(n.Nodes[toIdx].Out[fromIdx], idx)
		}

		if hasSignal {
			for nodeIdx := range signalNodes {
				approach := n.Links[idx].OtherEnd(nodeIdx)
				n.Signals = append(n.Signals, Signal{
					LinkIndex: idx,
					FromNode:  approach,
					ToNode:    nodeIdx,
					Green:     false,
				})
			}
		}
	}

	return n, nil
}
