package sim

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vortexsim/vortex/sim/serialization"
)

// Checkpointing serializes a rank at quiescence, between activities.
// The transport endpoint is never written; a restarted job rebuilds its
// communicator and the sync barrier from the topology.

type checkpointRecord struct {
	Rank           int                        `json:"rank"`
	CurrentCycle   SimTime                    `json:"current_cycle"`
	NextActivityID ActivityID                 `json:"next_activity_id"`
	Events         []checkpointEvent          `json:"events"`
	Components     map[string]json.RawMessage `json:"components"`
}

// checkpointEvent records a pending event by link name rather than id,
// so a rebuilt topology resolves it regardless of id assignment order.
type checkpointEvent struct {
	LinkName string          `json:"link"`
	Delivery SimTime         `json:"delivery_time"`
	Priority int             `json:"priority"`
	Polling  bool            `json:"polling"`
	Payload  json.RawMessage `json:"payload"`
}

// WriteCheckpoint saves the rank's state: the current cycle, every
// pending event in the time vortex and the polling queues, and the state
// of every component that is serializable. Clocks and the sync barrier
// are not saved; they are rebuilt on restore.
func (s *Simulation) WriteCheckpoint(w io.Writer) error {
	record := checkpointRecord{
		Rank:           s.rank,
		CurrentCycle:   s.CurrentCycle(),
		NextActivityID: s.nextID,
		Components:     make(map[string]json.RawMessage),
	}

	for _, a := range s.vortex.activities.items {
		ev, ok := a.(*Event)
		if !ok {
			continue
		}

		ce, err := makeCheckpointEvent(ev, false)
		if err != nil {
			return err
		}
		record.Events = append(record.Events, ce)
	}

	for _, l := range s.links {
		if l.pollingQueue == nil {
			continue
		}

		for _, a := range l.pollingQueue.activities.items {
			ce, err := makeCheckpointEvent(a.(*Event), true)
			if err != nil {
				return err
			}
			record.Events = append(record.Events, ce)
		}
	}

	for _, c := range s.components {
		state, ok := c.(serialization.Serializable)
		if !ok {
			continue
		}

		data, err := serialization.Marshal(state)
		if err != nil {
			return fmt.Errorf("component %s: %w", c.Name(), err)
		}
		record.Components[c.Name()] = data
	}

	return json.NewEncoder(w).Encode(record)
}

func makeCheckpointEvent(ev *Event, polling bool) (checkpointEvent, error) {
	payload, err := serialization.Marshal(ev.payload)
	if err != nil {
		return checkpointEvent{}, fmt.Errorf(
			"event on link %s: %w", ev.link.name, err)
	}

	return checkpointEvent{
		LinkName: ev.link.name,
		Delivery: ev.DeliveryTime(),
		Priority: ev.Priority(),
		Polling:  polling,
		Payload:  payload,
	}, nil
}

// RestoreCheckpoint loads a saved state into a rank whose topology has
// been rebuilt: components registered and links configured, but neither
// Initialize nor Setup called. It re-inserts the pending events, applies
// the saved component states, and schedules the clocks and the sync
// barrier relative to the restored cycle.
func (s *Simulation) RestoreCheckpoint(r io.Reader) error {
	if s.initialized || s.setUp {
		return fmt.Errorf(
			"rank %d cannot restore into a started simulation", s.rank)
	}

	var record checkpointRecord
	if err := json.NewDecoder(r).Decode(&record); err != nil {
		return err
	}

	if record.Rank != s.rank {
		return fmt.Errorf(
			"checkpoint of rank %d restored on rank %d",
			record.Rank, s.rank)
	}

	s.advanceTo(record.CurrentCycle)
	s.nextID = record.NextActivityID

	for _, ce := range record.Events {
		link, found := s.linkByName[ce.LinkName]
		if !found {
			return fmt.Errorf(
				"checkpoint names link %s, absent from the rebuilt "+
					"topology", ce.LinkName)
		}

		payload, err := serialization.Unmarshal(ce.Payload)
		if err != nil {
			return fmt.Errorf("event on link %s: %w", ce.LinkName, err)
		}

		ev := NewEvent(payload)
		ev.SetDeliveryTime(ce.Delivery)
		ev.setPriority(ce.Priority)
		ev.setID(s.nextActivityID())
		ev.linkID = link.id
		ev.link = link

		if ce.Polling {
			link.pollingQueue.Insert(ev)
		} else {
			s.vortex.Insert(ev)
		}
	}

	for name, data := range record.Components {
		c, found := s.componentByName[name]
		if !found {
			return fmt.Errorf(
				"checkpoint names component %s, absent from the "+
					"rebuilt topology", name)
		}

		state, ok := c.(serialization.Serializable)
		if !ok {
			return fmt.Errorf(
				"component %s is no longer serializable", name)
		}

		restored, err := serialization.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("component %s: %w", name, err)
		}

		fields, err := restored.(serialization.Serializable).Serialize()
		if err != nil {
			return fmt.Errorf("component %s: %w", name, err)
		}

		if err := state.Deserialize(fields); err != nil {
			return fmt.Errorf("component %s: %w", name, err)
		}
	}

	for _, c := range s.clocks {
		c.schedule()
	}

	if s.sync != nil {
		s.sync.schedule()
	}

	s.initialized = true
	s.setUp = true

	return nil
}
