// Package driver runs one or more simulations headlessly (no HTTP, no
// websocket) and reports a summary, grounded on
// jwmdev-brt08/backend/driver/batch.go's headless-batch shape: its bare
// sync.WaitGroup over bus goroutines becomes an errgroup.Group over
// Simulator runs here, and its container/heap of bus-arrival events
// becomes a per-job heap of per-train CompletionEvents, kept so the
// console/CSV report lists each job's trains in completion order.
package driver

import (
	"container/heap"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"netrailsim/internal/model"
	"netrailsim/internal/network"
	"netrailsim/internal/policy"
	"netrailsim/internal/sim"
	"netrailsim/internal/telemetry"

	"golang.org/x/sync/errgroup"
)

// Job is one simulation run to execute as part of a batch.
type Job struct {
	Name     string
	Net      *network.Network
	Trains   []*model.Train
	Throttle policy.ThrottlePolicy
	Dt       float64
}

// Options configures a batch run.
type Options struct {
	// Concurrency bounds how many jobs run at once; 0 means unbounded.
	Concurrency int
	// ReportPath, if non-empty, is a file or directory CSV reports are
	// written to (mirroring the teacher's report-%s.csv naming).
	ReportPath string
}

// TrainCompletion is one train's completion record, ordered by Tick for
// reporting.
type TrainCompletion struct {
	Job                    string
	TrainID                int
	Tick                   int64
	TripTimeS              float64
	TravelledDistanceM     float64
	TotalEnergyConsumedKWh float64
	TotalEnergyNetKWh      float64
}

// JobSummary is one job's aggregate result.
type JobSummary struct {
	Name        string
	FinalTick   int64
	Completions []TrainCompletion
	Collisions  int
	Warnings    int
	Cancelled   bool
}

// completionHeap orders TrainCompletion by Tick, grounded on the teacher's
// eventPQ (container/heap.Interface over a time-ordered slice).
type completionHeap []TrainCompletion

func (h completionHeap) Len() int            { return len(h) }
func (h completionHeap) Less(i, j int) bool  { return h[i].Tick < h[j].Tick }
func (h completionHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *completionHeap) Push(x any)         { *h = append(*h, x.(TrainCompletion)) }
func (h *completionHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Run executes every job concurrently (bounded by opt.Concurrency),
// draining each job's event stream into a JobSummary, then writes the
// console and (if requested) CSV report.
func Run(ctx context.Context, jobs []Job, opt Options) ([]JobSummary, error) {
	summaries := make([]JobSummary, len(jobs))
	g, gctx := errgroup.WithContext(ctx)

	var sem chan struct{}
	if opt.Concurrency > 0 {
		sem = make(chan struct{}, opt.Concurrency)
	}

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			summary, err := runOne(gctx, job)
			if err != nil {
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
			summaries[i] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := writeReport(summaries, opt.ReportPath); err != nil {
		return summaries, err
	}
	printReport(summaries)
	return summaries, nil
}

func runOne(ctx context.Context, job Job) (JobSummary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := sim.NewSimulator(job.Net, job.Trains, job.Throttle, job.Dt)
	events := s.Events(ctx)

	var h completionHeap
	summary := JobSummary{Name: job.Name}
	lastMoveTick := make(map[int]int64)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	draining := true
	for draining {
		select {
		case ev, ok := <-events:
			if !ok {
				draining = false
				continue
			}
			switch e := ev.(type) {
			case telemetry.MoveEvent:
				lastMoveTick[e.TrainID] = e.Tick
			case telemetry.CompletionEvent:
				heap.Push(&h, TrainCompletion{
					Job: job.Name, TrainID: e.TrainID, Tick: lastMoveTick[e.TrainID],
					TripTimeS: e.TripTimeS, TravelledDistanceM: e.TravelledDistanceM,
					TotalEnergyConsumedKWh: e.TotalEnergyConsumedKWh, TotalEnergyNetKWh: e.TotalEnergyNetKWh,
				})
			case telemetry.CollisionEvent:
				summary.Collisions++
				if e.Tick > summary.FinalTick {
					summary.FinalTick = e.Tick
				}
			case telemetry.WarningEvent:
				summary.Warnings++
			case telemetry.DoneEvent:
				summary.FinalTick = e.Tick
				summary.Cancelled = e.Cancelled
			}
		case err := <-done:
			draining = false
			if err != nil {
				return summary, err
			}
		}
	}

	for h.Len() > 0 {
		summary.Completions = append(summary.Completions, heap.Pop(&h).(TrainCompletion))
	}
	return summary, nil
}

func writeReport(summaries []JobSummary, reportPath string) error {
	if reportPath == "" {
		return nil
	}
	ts := time.Now().Format("20060102-150405")
	outPath := reportPath
	if fi, err := os.Stat(outPath); err == nil && fi.IsDir() {
		outPath = filepath.Join(outPath, fmt.Sprintf("report-%s.csv", ts))
	} else {
		ext := filepath.Ext(outPath)
		base := outPath[:len(outPath)-len(ext)]
		outPath = fmt.Sprintf("%s-%s%s", base, ts, ext)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("driver: report create failed: %w", err)
	}
	defer f.Close()
	return writeCSV(f, summaries)
}

func writeCSV(w io.Writer, summaries []JobSummary) error {
	fmt.Fprintln(w, "job,train_id,tick,trip_time_s,distance_m,energy_consumed_kwh,energy_net_kwh")
	for _, s := range summaries {
		for _, c := range s.Completions {
			fmt.Fprintf(w, "%s,%d,%d,%.2f,%.2f,%.3f,%.3f\n",
				s.Name, c.TrainID, c.Tick, c.TripTimeS, c.TravelledDistanceM, c.TotalEnergyConsumedKWh, c.TotalEnergyNetKWh)
		}
		fmt.Fprintf(w, "%s,summary,%d,,,,collisions=%d,warnings=%d\n", s.Name, s.FinalTick, s.Collisions, s.Warnings)
	}
	return nil
}

func printReport(summaries []JobSummary) {
	fmt.Println("=== Simulation Report (batch) ===")
	for _, s := range summaries {
		fmt.Printf("job %s: final_tick=%d collisions=%d warnings=%d cancelled=%v\n",
			s.Name, s.FinalTick, s.Collisions, s.Warnings, s.Cancelled)
		for _, c := range s.Completions {
			fmt.Printf("  train %d: trip=%.1fs distance=%.1fm energy_net=%.2fkWh\n",
				c.TrainID, c.TripTimeS, c.TravelledDistanceM, c.TotalEnergyNetKWh)
		}
	}
}
