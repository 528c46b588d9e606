package sim

import (
	"encoding/json"
	"fmt"

	"github.com/vortexsim/vortex/sim/serialization"
)

// A SyncQueue batches the outbound activities destined for one peer rank
// between barrier exchanges.
type SyncQueue struct {
	activities []Activity
}

// NewSyncQueue creates an empty SyncQueue.
func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// Insert appends an activity to the batch.
func (q *SyncQueue) Insert(a Activity) {
	q.activities = append(q.activities, a)
}

// Activities returns the batched activities in insertion order.
func (q *SyncQueue) Activities() []Activity {
	return q.activities
}

// Size returns the number of batched activities.
func (q *SyncQueue) Size() int {
	return len(q.activities)
}

// Empty tells if the batch holds no activities.
func (q *SyncQueue) Empty() bool {
	return len(q.activities) == 0
}

// Clear discards the batch after it has been shipped.
func (q *SyncQueue) Clear() {
	q.activities = nil
}

// wireItem is the on-the-wire form of an event or init datum. The
// payload travels through the serialization envelope so registered types
// survive the crossing.
type wireItem struct {
	LinkID   LinkID          `json:"link_id"`
	Delivery SimTime         `json:"delivery_time"`
	Priority int             `json:"priority"`
	Payload  json.RawMessage `json:"payload"`
}

func encodeEventBatch(activities []Activity) ([]byte, error) {
	items := make([]wireItem, 0, len(activities))
	for _, a := range activities {
		ev, ok := a.(*Event)
		if !ok {
			return nil, fmt.Errorf(
				"activity %d in a sync batch is not an event", a.ID())
		}

		payload, err := serialization.Marshal(ev.payload)
		if err != nil {
			return nil, fmt.Errorf(
				"event on link %d: %w", ev.linkID, err)
		}

		items = append(items, wireItem{
			LinkID:   ev.linkID,
			Delivery: ev.DeliveryTime(),
			Priority: ev.Priority(),
			Payload:  payload,
		})
	}

	return json.Marshal(items)
}

func decodeEventBatch(data []byte) ([]*Event, error) {
	var items []wireItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}

	events := make([]*Event, 0, len(items))
	for _, item := range items {
		payload, err := serialization.Unmarshal(item.Payload)
		if err != nil {
			return nil, fmt.Errorf(
				"event on link %d: %w", item.LinkID, err)
		}

		ev := NewEvent(payload)
		ev.SetDeliveryTime(item.Delivery)
		ev.setPriority(item.Priority)
		ev.linkID = item.LinkID

		events = append(events, ev)
	}

	return events, nil
}

func encodeInitBatch(data []*LinkInitData) ([]byte, error) {
	items := make([]wireItem, 0, len(data))
	for _, d := range data {
		payload, err := serialization.Marshal(d.payload)
		if err != nil {
			return nil, fmt.Errorf(
				"init data on link %d: %w", d.linkID, err)
		}

		items = append(items, wireItem{
			LinkID:  d.linkID,
			Payload: payload,
		})
	}

	return json.Marshal(items)
}

func decodeInitBatch(data []byte) ([]*LinkInitData, error) {
	var items []wireItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}

	decoded := make([]*LinkInitData, 0, len(items))
	for _, item := range items {
		payload, err := serialization.Unmarshal(item.Payload)
		if err != nil {
			return nil, fmt.Errorf(
				"init data on link %d: %w", item.LinkID, err)
		}

		d := NewLinkInitData(payload)
		d.linkID = item.LinkID

		decoded = append(decoded, d)
	}

	return decoded, nil
}
