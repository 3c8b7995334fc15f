package types

import "time"

// QueueBroadcast is the message shape pushed to websocket subscribers of
// the live queue-state dashboard channel. It carries a full QueueState
// snapshot rather than an incremental delta, matching the scheduler's
// emit-a-snapshot-after-every-mutation contract.
type QueueBroadcast struct {
	Type      string     `json:"type"` // "snapshot"
	State     QueueState `json:"state"`
	Timestamp time.Time  `json:"timestamp"`
}
