package engine

import "sync/atomic"

// CommandKind tags a Command pushed from the control context.
type CommandKind int

const (
	// QueueOrder asks for a jump to an order at the next musically correct
	// boundary: immediately-next quantum in song mode, next pattern wrap in
	// pattern mode.
	QueueOrder CommandKind = iota
	// LoopTillRow pins a pattern and loops it from row 0 until the target
	// row is reached by natural playback.
	LoopTillRow
	// Retrigger jumps to (order, 0) at the next quantum regardless of mode.
	Retrigger
)

// Command is a performer intent. Immutable once pushed; consumed exactly
// once by the render context.
type Command struct {
	Kind  CommandKind
	Order int
	Row   int
}

const queueSize = 8

// CommandQueue is a single-producer single-consumer ring carrying Commands
// from the control context to the render context. The producer only
// advances tail, the consumer only advances head; both cursors are atomics
// so the slot write in Push is published before the tail store. Capacity is
// queueSize-1 live commands.
type CommandQueue struct {
	slots   [queueSize]Command
	head    atomic.Uint32
	tail    atomic.Uint32
	dropped atomic.Uint64
}

// Push enqueues cmd. Returns false and counts a drop if the ring is full; a
// full ring never overwrites pending commands. Never blocks, never
// allocates.
func (q *CommandQueue) Push(cmd Command) bool {
	tail := q.tail.Load()
	next := (tail + 1) % queueSize
	if next == q.head.Load() {
		q.dropped.Add(1)
		return false
	}
	q.slots[tail] = cmd
	q.tail.Store(next)
	return true
}

// Drain consumes every pending command in FIFO order, invoking apply for
// each. Called once per render quantum by the state machine.
func (q *CommandQueue) Drain(apply func(Command)) {
	head := q.head.Load()
	for head != q.tail.Load() {
		cmd := q.slots[head]
		head = (head + 1) % queueSize
		q.head.Store(head)
		apply(cmd)
	}
}

// Dropped reports how many pushes were rejected on a full ring.
func (q *CommandQueue) Dropped() uint64 {
	return q.dropped.Load()
}
