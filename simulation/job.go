package simulation

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vortexsim/vortex/datarecording"
	"github.com/vortexsim/vortex/monitoring"
	"github.com/vortexsim/vortex/sim"
	"github.com/vortexsim/vortex/transport"
)

// A Job is a built, runnable simulation: one Simulation per rank plus
// the shared transport hub and observers.
type Job struct {
	cfg *Config

	hub   *transport.Hub
	ranks []*sim.Simulation

	recorder datarecording.DataRecorder
	monitor  *monitoring.Monitor
	logger   *logrus.Logger
}

// Ranks returns the per-rank simulations of the job.
func (j *Job) Ranks() []*sim.Simulation {
	return j.ranks
}

// Rank returns one rank's simulation.
func (j *Job) Rank(i int) *sim.Simulation {
	return j.ranks[i]
}

// Run drives every rank through its lifecycle. Init phases and the main
// loops run concurrently, one goroutine per rank, because the init
// exchange and the sync barrier are collective operations. Setup and
// finish are sequential; they involve no cross-rank communication.
func (j *Job) Run() error {
	if err := j.initializeRanks(); err != nil {
		return err
	}

	for _, rank := range j.ranks {
		if err := rank.Setup(); err != nil {
			return err
		}
	}

	if err := j.runRanks(); err != nil {
		return err
	}

	for _, rank := range j.ranks {
		if err := rank.Finish(); err != nil {
			return err
		}
	}

	if j.recorder != nil {
		j.recorder.Flush()
	}

	return nil
}

func (j *Job) initializeRanks() error {
	return j.concurrently(func(rank *sim.Simulation) error {
		return rank.Initialize()
	})
}

func (j *Job) runRanks() error {
	return j.concurrently(func(rank *sim.Simulation) error {
		return rank.Run()
	})
}

// concurrently runs fn on every rank at once and collects the first
// failure. A panic on one rank is fatal to the whole job; it is
// reported as an error after every other rank has been aborted.
func (j *Job) concurrently(fn func(*sim.Simulation) error) error {
	var (
		wg       sync.WaitGroup
		errsLock sync.Mutex
		firstErr error
	)

	report := func(err error) {
		errsLock.Lock()
		defer errsLock.Unlock()

		if firstErr == nil {
			firstErr = err
		}
	}

	for _, rank := range j.ranks {
		rank := rank
		wg.Add(1)

		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					for _, other := range j.ranks {
						other.Abort()
					}
					report(fmt.Errorf(
						"rank %d aborted: %v", rank.Rank(), r))
				}
			}()

			if err := fn(rank); err != nil {
				report(err)
			}
		}()
	}

	wg.Wait()

	return firstErr
}

func (j *Job) writeCheckpoint(dir string, rank *sim.Simulation, now sim.SimTime) {
	name := filepath.Join(dir,
		fmt.Sprintf("rank-%d-cycle-%d.json", rank.Rank(), now))

	f, err := os.Create(name)
	if err != nil {
		j.logger.WithError(err).Error("cannot create checkpoint file")
		return
	}
	defer f.Close()

	if err := rank.WriteCheckpoint(f); err != nil {
		j.logger.WithError(err).Error("cannot write checkpoint")
	}
}

type activityRecord struct {
	Rank     int
	Cycle    uint64
	Kind     string
	Priority int
}

type exchangeRecord struct {
	Rank  int
	Cycle uint64
}

// recorderHook feeds the data recorder from the kernel's hook points.
type recorderHook struct {
	recorder datarecording.DataRecorder
	rank     int
}

func (h *recorderHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosAfterActivity:
		a, ok := ctx.Item.(sim.Activity)
		if !ok {
			return
		}

		h.recorder.InsertData("activities", activityRecord{
			Rank:     h.rank,
			Cycle:    uint64(a.DeliveryTime()),
			Kind:     reflect.TypeOf(a).String(),
			Priority: a.Priority(),
		})
	case sim.HookPosSyncExchange:
		sy, ok := ctx.Item.(*sim.Sync)
		if !ok {
			return
		}

		h.recorder.InsertData("sync_exchanges", exchangeRecord{
			Rank:  h.rank,
			Cycle: uint64(sy.DeliveryTime()),
		})
	}
}
