package types

import (
	"time"

	"github.com/google/uuid"
)

// WorkItem is one unit of caller work. The caller owns the item until it is
// accepted into a Batch; after acceptance only the Future handle remains with
// the caller.
type WorkItem struct {
	ID          string    `json:"id"`
	Payload     any       `json:"payload"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewWorkItem creates a work item with a fresh ID and submission timestamp.
func NewWorkItem(payload any) *WorkItem {
	return &WorkItem{
		ID:          uuid.NewString(),
		Payload:     payload,
		SubmittedAt: time.Now(),
	}
}

// Result is the outcome of one work item. Latency is the wall-clock duration
// of the batch execution that produced it, shared by all items of the batch.
type Result struct {
	ItemID  string        `json:"item_id"`
	Output  any           `json:"output"`
	Latency time.Duration `json:"latency"`
}

// Batch is an ordered, sealed group of work items executed by one worker
// invocation. Items[i] corresponds to Futures[i] for all i; every component
// that touches a batch preserves this pairing, including when individual
// items were cancelled before dispatch.
type Batch struct {
	ID        string      `json:"id"`
	Items     []*WorkItem `json:"items"`
	Futures   []*Future   `json:"-"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewBatch seals items and futures into a batch. Both slices must have equal
// length; the batch takes ownership of them.
func NewBatch(items []*WorkItem, futures []*Future) *Batch {
	return &Batch{
		ID:        uuid.NewString(),
		Items:     items,
		Futures:   futures,
		CreatedAt: time.Now(),
	}
}

// Size returns the number of items in the batch.
func (b *Batch) Size() int {
	return len(b.Items)
}

// FailAll fails every future of the batch with the same error. Futures
// already in a terminal state are left untouched.
func (b *Batch) FailAll(err error) {
	for _, f := range b.Futures {
		f.Fail(err)
	}
}
