// Package signalctl implements the signal-group controller with FIFO
// queuing that arbitrates mutually-exclusive passage through a group of
// junctions (spec.md §4.6), grounded on NeTrainSim's
// netsignalgroupcontrollerwithqueuing.cpp and, for the directional-queue
// shape, brt08's BusStop (internal/model.EnqueuePassenger /
// internal/model.BoardAtStop).
package signalctl

// waitEntry is one FIFO member: a waiting train and its arrival timestamp.
type waitEntry struct {
	trainID int
	arrival float64
}

// Controller coordinates a group of signals spanning a set of member nodes
// as one mutual-exclusion unit (spec.md §4.6).
type Controller struct {
	MemberNodes   map[int]bool // node arena indices
	MemberSignals []int        // signal arena indices

	movements map[int]bool // signal arena index -> green(true)/red(false)
	fifo      []waitEntry
	lastSync  float64
	timeout   float64

	clearedAt float64
	hasCleared bool
}

// New constructs a Controller over the given member nodes/signals. timeout
// is 5*Δt per spec.md §4.6.
func New(memberNodes map[int]bool, memberSignals []int, timeout float64) *Controller {
	c := &Controller{
		MemberNodes:   memberNodes,
		MemberSignals: append([]int(nil), memberSignals...),
		movements:     make(map[int]bool, len(memberSignals)),
		timeout:       timeout,
		lastSync:      -1,
	}
	for _, s := range memberSignals {
		c.movements[s] = false
	}
	return c
}

// AddTrain appends trainID to the FIFO iff it is not already present.
func (c *Controller) AddTrain(trainID int, now float64) {
	for _, e := range c.fifo {
		if e.trainID == trainID {
			return
		}
	}
	c.fifo = append(c.fifo, waitEntry{trainID: trainID, arrival: now})
}

func (c *Controller) clearMovements() {
	for s := range c.movements {
		c.movements[s] = false
	}
}

func (c *Controller) setOpen(signals []int) {
	for _, s := range signals {
		if _, ok := c.movements[s]; ok {
			c.movements[s] = true
		}
	}
}

// RequestPass implements spec.md §4.6's request_pass protocol.
func (c *Controller) RequestPass(trainID int, now float64, signalsInTrainDirection []int) {
	if len(c.fifo) == 0 {
		return
	}
	head := c.fifo[0]
	if head.trainID == trainID {
		c.lastSync = now
		for i := range c.fifo {
			c.fifo[i].arrival = now
		}
		c.clearMovements()
		c.setOpen(signalsInTrainDirection)
		return
	}

	// Not the FIFO head: must wait, unless the head has starved the queue
	// past the timeout, in which case it is dropped and the queue gets a
	// fresh chance next tick (handled locally; SignalStarvation never
	// surfaces per spec.md §7).
	if now-c.lastSync > c.timeout {
		c.fifo = c.fifo[1:]
		c.lastSync = now
		c.clearMovements()
	}
}

// GetFeedback partitions member signals by their movement bit; with no
// waiting trains, every signal is reported green.
func (c *Controller) GetFeedback() (green, red []int) {
	if len(c.fifo) == 0 {
		for _, s := range c.MemberSignals {
			green = append(green, s)
		}
		return green, nil
	}
	for _, s := range c.MemberSignals {
		if c.movements[s] {
			green = append(green, s)
		} else {
			red = append(red, s)
		}
	}
	return green, red
}

// ClearTimeouts drops FIFO entries whose arrival-age exceeds the timeout, at
// most once per simulator time (spec.md §4.6).
func (c *Controller) ClearTimeouts(now float64) {
	if c.hasCleared && c.clearedAt == now {
		return
	}
	kept := c.fifo[:0]
	for _, e := range c.fifo {
		if now-e.arrival <= c.timeout {
			kept = append(kept, e)
		}
	}
	c.fifo = kept
	c.clearedAt = now
	c.hasCleared = true
}

// Waiting reports the current FIFO train ids, head first.
func (c *Controller) Waiting() []int {
	out := make([]int, len(c.fifo))
	for i, e := range c.fifo {
		out[i] = e.trainID
	}
	return out
}
