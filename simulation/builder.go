// Package simulation builds runnable jobs out of topology files: it
// creates one Simulation per rank, instantiates the configured
// components through the factory, and wires the links within and across
// ranks.
package simulation

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/vortexsim/vortex/datarecording"
	"github.com/vortexsim/vortex/factory"
	"github.com/vortexsim/vortex/monitoring"
	"github.com/vortexsim/vortex/sim"
	"github.com/vortexsim/vortex/transport"
)

// Builder can be used to build a job.
type Builder struct {
	cfg *Config

	activityLogging bool
	monitorOn       bool
	monitorPort     int
	recorderPath    string
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithConfig sets the topology the job is built from.
func (b Builder) WithConfig(cfg *Config) Builder {
	b.cfg = cfg
	return b
}

// WithActivityLogging makes every rank log the activities it executes.
func (b Builder) WithActivityLogging() Builder {
	b.activityLogging = true
	return b
}

// WithMonitor starts a monitoring server on the given port.
func (b Builder) WithMonitor(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port
	return b
}

// WithRecorderPath records run statistics into the given SQLite file.
func (b Builder) WithRecorderPath(path string) Builder {
	b.recorderPath = path
	return b
}

// Build creates the ranks, components, and links of the job. Every
// configuration error surfaces here, before any activity executes.
func (b Builder) Build() (*Job, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("no topology configured")
	}

	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	job := &Job{
		cfg:    b.cfg,
		logger: logrus.New(),
	}

	b.buildRanks(job)

	if err := b.buildComponents(job); err != nil {
		return nil, err
	}

	if err := b.buildLinks(job); err != nil {
		return nil, err
	}

	b.applyStopTime(job)

	if err := b.scheduleCheckpoints(job); err != nil {
		return nil, err
	}

	b.attachObservers(job)

	return job, nil
}

func (b Builder) buildRanks(job *Job) {
	cfg := job.cfg

	if cfg.Ranks == 1 {
		job.ranks = []*sim.Simulation{sim.NewSimulation()}
		return
	}

	job.hub = transport.NewHub(cfg.Ranks)
	period := sim.NewTimeConverter(sim.SimTime(cfg.Period))

	for r := 0; r < cfg.Ranks; r++ {
		job.ranks = append(job.ranks,
			sim.NewDistributedSimulation(job.hub.Comm(r), period))
	}
}

func (b Builder) buildComponents(job *Job) error {
	for i, cc := range job.cfg.Components {
		rank := job.ranks[cc.Rank]

		comp, err := factory.Create(
			cc.Type,
			rank,
			sim.NewComponentID(uint32(i)),
			cc.Name,
			cc.ComponentParams(),
		)
		if err != nil {
			return err
		}

		if err := rank.RegisterComponent(comp); err != nil {
			return err
		}
	}

	return nil
}

// outboundBinder is satisfied by every component embedding
// sim.BaseComponent.
type outboundBinder interface {
	BindOutbound(port string, link *sim.Link)
}

func (b Builder) buildLinks(job *Job) error {
	cfg := job.cfg

	compRank := make(map[string]int, len(cfg.Components))
	for _, cc := range cfg.Components {
		compRank[cc.Name] = cc.Rank
	}

	for i, lc := range cfg.Links {
		fromComp, fromPort, err := splitEndpoint(lc.From)
		if err != nil {
			return err
		}

		toComp, _, err := splitEndpoint(lc.To)
		if err != nil {
			return err
		}

		fromRank := compRank[fromComp]
		toRank := compRank[toComp]

		recvLink := job.ranks[toRank].FindLink(lc.To)
		if recvLink == nil {
			return fmt.Errorf(
				"link %q: component %s configures no link named %s",
				lc.Name, toComp, lc.To)
		}

		if lc.Latency > 0 {
			recvLink.SetDefaultLatency(sim.SimTime(lc.Latency))
		}

		sender, ok := job.ranks[fromRank].ComponentByName(fromComp).(outboundBinder)
		if !ok {
			return fmt.Errorf(
				"link %q: component %s cannot bind outbound links",
				lc.Name, fromComp)
		}

		if fromRank == toRank {
			sender.BindOutbound(fromPort, recvLink)
			continue
		}

		// The link id mirrors on both ranks because every rank derives
		// it from the same position in the same topology file.
		crossID := sim.LinkID(i)

		job.ranks[toRank].BindRemoteRecvLink(recvLink, crossID, fromRank)

		stub := job.ranks[fromRank].ConfigureRemoteSendLink(
			lc.Name, crossID, sim.SimTime(lc.Latency), toRank)
		sender.BindOutbound(fromPort, stub)
	}

	return nil
}

func (b Builder) applyStopTime(job *Job) {
	if job.cfg.StopTime == 0 {
		return
	}

	for _, rank := range job.ranks {
		rank.EndSimulationAt(sim.SimTime(job.cfg.StopTime))
	}
}

// checkpointPriority places the checkpoint action between the sync
// barrier and the clocks, so a saved window state includes the events
// the last exchange delivered.
const checkpointPriority = 30

func (b Builder) scheduleCheckpoints(job *Job) error {
	interval := job.cfg.Checkpoint.Interval
	if interval == 0 {
		return nil
	}

	dir := job.cfg.Checkpoint.Dir
	if dir == "" {
		dir = "checkpoints"
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating checkpoint dir: %w", err)
	}

	for _, rank := range job.ranks {
		rank := rank
		rank.ScheduleRecurringAction(
			sim.SimTime(interval), checkpointPriority,
			func(now sim.SimTime) {
				job.writeCheckpoint(dir, rank, now)
			})
	}

	return nil
}

func (b Builder) attachObservers(job *Job) {
	if b.activityLogging {
		job.logger.SetLevel(logrus.DebugLevel)
		for _, rank := range job.ranks {
			rank.AcceptHook(sim.NewActivityLogger(job.logger))
		}
	}

	if b.recorderPath != "" {
		job.recorder = datarecording.New(b.recorderPath)
		job.recorder.CreateTable("activities", activityRecord{})
		job.recorder.CreateTable("sync_exchanges", exchangeRecord{})

		for _, rank := range job.ranks {
			rank.AcceptHook(&recorderHook{
				recorder: job.recorder,
				rank:     rank.Rank(),
			})
		}
	}

	if b.monitorOn {
		job.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			job.monitor.WithPortNumber(b.monitorPort)
		}
		for _, rank := range job.ranks {
			job.monitor.RegisterRank(rank)
		}
		job.monitor.StartServer()
	}
}
