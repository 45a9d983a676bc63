// Package sim drives the discrete-time tick loop over a fixed Network and
// fleet of Trains: departure gating, critical-point assembly, per-train
// dynamics and energy accounting, signal-group arbitration, and collision
// detection (spec.md §4.5). Grounded on brt08/backend/sim/runner.go's
// single-producer event-channel shape and simulator.go's per-tick ordering.
package sim

import (
	"context"
	"math"
	"sort"
	"sync"

	"netrailsim/internal/errs"
	"netrailsim/internal/model"
	"netrailsim/internal/network"
	"netrailsim/internal/policy"
	"netrailsim/internal/signalctl"
	"netrailsim/internal/telemetry"
)

const speedOfSoundMS = 343.0

// trainPath caches a train's expanded-path geometry resolved once against
// the network at simulator construction: node/link arena indices and
// cumulative length to each path node (spec.md §4.1).
type trainPath struct {
	nodeIdx []int
	linkIdx []int
	cum     []float64
}

// trainSnapshot is one train's pre-movement position/speed for a tick,
// frozen before any train moves so critical-point assembly for every train
// observes the same start-of-tick state (spec.md §5's read-then-write
// discipline).
type trainSnapshot struct {
	head, tail network.Point
	speed      float64
	travelled  float64
}

// tickContext is what critical-point assembly derives for one train ahead of
// its movement phase.
type tickContext struct {
	criticalPoints       []model.CriticalPoint
	freeFlowSpeedMS      float64
	nextIsRedSignalAhead bool
}

// Simulator owns the Network, the fleet, and the coalesced signal-group
// controllers, and drives spec.md §4.5's tick loop.
type Simulator struct {
	Net      *network.Network
	Trains   []*model.Train
	Throttle policy.ThrottlePolicy

	Dt   float64
	Now  float64
	tick int64

	paths map[int]*trainPath

	groups           []*signalctl.Controller
	nodeController   map[int]*signalctl.Controller
	signalByLinkNode map[[2]int]int // [link arena idx, to-node arena idx] -> signal arena idx

	hub *telemetry.Hub

	mu     sync.Mutex
	cond   *sync.Cond
	paused bool

	Warnings []errs.Warning
}

// NewSimulator constructs a Simulator over net and trains, precomputing each
// train's path geometry and running the signal-grouping setup algorithm
// (spec.md §4.6) once up front.
func NewSimulator(net *network.Network, trains []*model.Train, throttle policy.ThrottlePolicy, dt float64) *Simulator {
	if throttle == nil {
		throttle = policy.Constant{}
	}
	s := &Simulator{
		Net:      net,
		Trains:   append([]*model.Train(nil), trains...),
		Throttle: throttle,
		Dt:       dt,
		paths:    make(map[int]*trainPath, len(trains)),
		hub:      telemetry.NewHub(),
	}
	s.cond = sync.NewCond(&s.mu)
	sort.Slice(s.Trains, func(i, j int) bool { return s.Trains[i].ID < s.Trains[j].ID })

	s.signalByLinkNode = make(map[[2]int]int, len(net.Signals))
	for si, sig := range net.Signals {
		s.signalByLinkNode[[2]int{sig.LinkIndex, sig.ToNode}] = si
	}

	for _, tr := range s.Trains {
		cum, nodeIdx, linkIdx, err := net.CumulativeLengths(tr.Path, tr.ID)
		if err != nil {
			// PathNotFound: fatal for this train only (spec.md §7); it never
			// loads and is excluded from the paths cache.
			s.Warnings = append(s.Warnings, errs.Warning{Kind: errs.ErrPathNotFound, TrainID: tr.ID, Detail: err.Error()})
			continue
		}
		s.paths[tr.ID] = &trainPath{nodeIdx: nodeIdx, linkIdx: linkIdx, cum: cum}
	}

	timeout := 5 * dt
	s.groups, s.nodeController = buildSignalGroups(net, s.Trains, s.paths, timeout)
	computeProximityDistances(net, s.Trains, s.paths)

	return s
}

// Events returns a per-subscriber event channel scoped to ctx (spec.md §5:
// "published through a side channel; those emissions... may be dropped").
func (s *Simulator) Events(ctx context.Context) <-chan telemetry.Event {
	return s.hub.Subscribe(ctx)
}

// Pause blocks the tick loop before its next tick (spec.md §5: "a
// mutex-protected boolean + condvar").
func (s *Simulator) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume wakes a paused tick loop.
func (s *Simulator) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *Simulator) waitIfPaused() {
	s.mu.Lock()
	for s.paused {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// Run executes the tick loop until every train has reached its destination
// or ctx is cancelled (checked at the top of each tick, spec.md §5).
func (s *Simulator) Run(ctx context.Context) error {
	s.hub.Publish(telemetry.InitEvent{TrainCount: len(s.Trains), LinkCount: len(s.Net.Links), NodeCount: len(s.Net.Nodes)})
	for {
		select {
		case <-ctx.Done():
			s.hub.Publish(telemetry.DoneEvent{Tick: s.tick, Cancelled: true})
			return ctx.Err()
		default:
		}
		s.waitIfPaused()

		if s.allReachedDestination() {
			s.hub.Publish(telemetry.DoneEvent{Tick: s.tick, Cancelled: false})
			return nil
		}

		s.loadEligibleTrains()

		active := s.activeTrains()
		if len(active) > 0 {
			s.stepTick(active)
			s.runSignalArbitration()
			s.detectCollisions(active)
		} else {
			s.fastForward()
		}

		s.Now += s.Dt
		s.tick++
	}
}

func (s *Simulator) allReachedDestination() bool {
	for _, tr := range s.Trains {
		if !tr.ReachedDestination {
			return false
		}
	}
	return true
}

func (s *Simulator) activeTrains() []*model.Train {
	var out []*model.Train
	for _, tr := range s.Trains {
		if tr.Loaded && !tr.ReachedDestination {
			out = append(out, tr)
		}
	}
	return out
}

// loadEligibleTrains implements spec.md §4.5 step 2: a not-yet-reached,
// not-yet-loaded train whose start time has arrived loads once no other
// loaded train sharing its start node is still within one train-length of
// it (spec.md §8's "departure gating" boundary case resolves the wording
// here: the blocking train is the earlier, already-loaded one).
func (s *Simulator) loadEligibleTrains() {
	for _, tr := range s.Trains {
		if tr.Loaded || tr.ReachedDestination {
			continue
		}
		tp, ok := s.paths[tr.ID]
		if !ok || len(tp.nodeIdx) == 0 {
			continue
		}
		if s.Now < tr.StartTimeS {
			continue
		}
		if s.blockedByDeparture(tr) {
			continue
		}
		tr.Loaded = true
		tr.TravelledDistanceM = 0
		s.updateOccupancy(tr, occupiedLinks(tp, 0, 0))
		s.hub.Publish(telemetry.ArriveEvent{TrainID: tr.ID, Tick: s.tick, NodeID: s.Net.Nodes[tp.nodeIdx[0]].ID})
	}
}

func (s *Simulator) blockedByDeparture(tr *model.Train) bool {
	startNode := tr.Path[0]
	for _, other := range s.Trains {
		if other.ID == tr.ID || !other.Loaded || other.ReachedDestination {
			continue
		}
		if other.Path[0] != startNode {
			continue
		}
		if other.TravelledDistanceM < other.TotalLengthM {
			return true
		}
	}
	return false
}

// fastForward implements spec.md §4.5 step 6: advance the clock to the
// earliest not-yet-loaded train's start time when nothing is currently
// loaded and running.
func (s *Simulator) fastForward() {
	earliest := math.Inf(1)
	for _, tr := range s.Trains {
		if tr.Loaded || tr.ReachedDestination {
			continue
		}
		if _, ok := s.paths[tr.ID]; !ok {
			continue
		}
		if tr.StartTimeS < earliest {
			earliest = tr.StartTimeS
		}
	}
	if math.IsInf(earliest, 1) {
		return
	}
	if earliest > s.Now {
		s.Now = earliest - s.Dt
	}
}

// stepTick runs spec.md §4.5 step 3 for every currently active train: a
// read phase (snapshot positions, assemble critical points) followed by a
// write phase (move, account energy, update occupancy), so no train's
// critical-point assembly observes another train's in-tick movement.
func (s *Simulator) stepTick(active []*model.Train) {
	snaps := make(map[int]trainSnapshot, len(active))
	for _, tr := range active {
		snaps[tr.ID] = s.snapshotTrain(tr, s.paths[tr.ID])
	}

	ctxs := make(map[int]tickContext, len(active))
	for _, tr := range active {
		ctxs[tr.ID] = s.assembleCriticalPoints(tr, s.paths[tr.ID], snaps)
	}

	for _, tr := range active {
		tp := s.paths[tr.ID]
		tctx := ctxs[tr.ID]

		geoms := s.vehicleGeometries(tr, tp)
		maxAccel, totalResistance, _, perVehicleResistance := tr.AggregateDynamics(geoms)

		var tractiveAtZero float64
		for _, l := range tr.Locomotives {
			tractiveAtZero += l.TractiveForce(0, tr.FrictionCoef, 1.0)
		}

		var optimum []float64
		if tr.Optimize {
			optimum = s.Throttle.PlanThrottle(model.TrainDynamicsState{
				SpeedMS:       tr.CurrentSpeedMS,
				AccelMS2:      tr.CurrentAccelMS2,
				NotchThrottle: tr.Locomotives[0].CurrentThrottle,
				PositionM:     tr.TravelledDistanceM,
			}, s.buildLookahead(tr, tp))
		}

		result := tr.Step(model.TrainStepInput{
			Dt:                   s.Dt,
			CriticalPoints:       tctx.criticalPoints,
			FreeFlowSpeedMS:      tctx.freeFlowSpeedMS,
			TotalPathLengthM:     tp.cum[len(tp.cum)-1],
			NextIsRedSignalAhead: tctx.nextIsRedSignalAhead,
			MaxAccelMS2:          maxAccel,
			TractiveForceAtZeroN: tractiveAtZero,
			TotalResistanceN:     totalResistance,
		})

		region, hasCatenary := "", false
		if len(tp.linkIdx) > 0 {
			li := tp.linkIdx[hopIndexAtClamped(tp, tr.TravelledDistanceM)]
			region, hasCatenary = s.Net.Links[li].Region, s.Net.Links[li].HasCatenary
		}
		tr.AccountEnergy(s.Dt, tctx.freeFlowSpeedMS, region, hasCatenary, geoms, perVehicleResistance, optimum)

		tailD := math.Max(0, tr.TravelledDistanceM-tr.TotalLengthM)
		s.updateOccupancy(tr, occupiedLinks(tp, tailD, tr.TravelledDistanceM))

		s.emitMoveAndWarnings(tr, tp, result)
	}
}

func (s *Simulator) snapshotTrain(tr *model.Train, tp *trainPath) trainSnapshot {
	head, _, _ := s.Net.PositionFromDistance(tp.cum, tp.nodeIdx, tp.linkIdx, tr.TravelledDistanceM)
	tailD := math.Max(0, tr.TravelledDistanceM-tr.TotalLengthM)
	tail, _, _ := s.Net.PositionFromDistance(tp.cum, tp.nodeIdx, tp.linkIdx, tailD)
	return trainSnapshot{head: head, tail: tail, speed: tr.CurrentSpeedMS, travelled: tr.TravelledDistanceM}
}

func (s *Simulator) updateOccupancy(tr *model.Train, newLinks map[int]bool) {
	for li := range tr.CurrentLinks {
		if !newLinks[li] {
			delete(s.Net.Links[li].CurrentTrains, tr.ID)
		}
	}
	for li := range newLinks {
		s.Net.Links[li].CurrentTrains[tr.ID] = true
	}
	tr.PreviousLinks = tr.CurrentLinks
	tr.CurrentLinks = newLinks
}

// occupiedLinks returns the set of link arena indices a train spans between
// tailD and headD travelled distance.
func occupiedLinks(tp *trainPath, tailD, headD float64) map[int]bool {
	out := make(map[int]bool)
	for i, li := range tp.linkIdx {
		segStart, segEnd := tp.cum[i], tp.cum[i+1]
		if segEnd > tailD && segStart < headD {
			out[li] = true
		}
	}
	return out
}

func hopIndexAt(tp *trainPath, d float64) int {
	if len(tp.linkIdx) == 0 {
		return -1
	}
	i := sort.Search(len(tp.cum)-1, func(i int) bool { return tp.cum[i+1] >= d })
	if i >= len(tp.linkIdx) {
		i = len(tp.linkIdx) - 1
	}
	return i
}

func hopIndexAtClamped(tp *trainPath, d float64) int {
	if h := hopIndexAt(tp, d); h >= 0 {
		return h
	}
	return 0
}

func (s *Simulator) emitMoveAndWarnings(tr *model.Train, tp *trainPath, res model.TrainStepResult) {
	head, _, _ := s.Net.PositionFromDistance(tp.cum, tp.nodeIdx, tp.linkIdx, tr.TravelledDistanceM)
	tailD := math.Max(0, tr.TravelledDistanceM-tr.TotalLengthM)
	tail, _, _ := s.Net.PositionFromDistance(tp.cum, tp.nodeIdx, tp.linkIdx, tailD)
	s.hub.Publish(telemetry.MoveEvent{
		TrainID: tr.ID, Tick: s.tick,
		HeadX: head.X, HeadY: head.Y, TailX: tail.X, TailY: tail.Y,
		SpeedMS: tr.CurrentSpeedMS, AccelMS2: tr.CurrentAccelMS2,
	})

	if res.JerkLimited {
		s.warn(tr.ID, errs.ErrSuddenAcceleration, "jerk clamp applied")
	}
	if res.ResistanceExceedsTraction {
		s.warn(tr.ID, errs.ErrResistanceExceedsTraction, "")
	}
	if tr.OutOfEnergy {
		s.warn(tr.ID, errs.ErrOutOfEnergy, "")
	}
	if res.ReachedDestination {
		s.hub.Publish(telemetry.CompletionEvent{
			TrainID:                   tr.ID,
			TripTimeS:                 tr.TripTimeS,
			TravelledDistanceM:        tr.TravelledDistanceM,
			TotalEnergyConsumedKWh:    tr.TotalEnergyConsumedKWh,
			TotalEnergyRegeneratedKWh: tr.TotalEnergyRegeneratedKWh,
			TotalEnergyNetKWh:         tr.TotalEnergyNetKWh,
			EnergyByRegion:            tr.EnergyByRegion,
			FinalSpeedMS:              tr.CurrentSpeedMS,
		})
	}
}

func (s *Simulator) warn(trainID int, kind error, detail string) {
	w := errs.Warning{Kind: kind, TrainID: trainID, Tick: s.tick, Detail: detail}
	s.Warnings = append(s.Warnings, w)
	s.hub.Publish(telemetry.WarningEvent{TrainID: trainID, Tick: s.tick, Kind: kind.Error(), Detail: detail})
}

func (s *Simulator) buildLookahead(tr *model.Train, tp *trainPath) []policy.Lookahead {
	const horizon = 5
	out := make([]policy.Lookahead, 0, horizon)
	step := tr.CurrentSpeedMS * s.Dt
	if step <= 0 {
		step = 1
	}
	total := tp.cum[len(tp.cum)-1]
	for i := 1; i <= horizon; i++ {
		d := tr.TravelledDistanceM + float64(i)*step
		if d > total {
			d = total
		}
		g := s.geometryAtDistance(tp, d)
		ff := 0.0
		if hop := hopIndexAt(tp, d); hop >= 0 {
			ff = s.Net.Links[tp.linkIdx[hop]].FreeFlowSpeed
		}
		out = append(out, policy.Lookahead{Grade: g.Grade, Curvature: g.Curvature, FreeFlowSpeed: ff})
	}
	return out
}

func dist(a, b network.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func samePath(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
