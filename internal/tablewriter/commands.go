package tablewriter

import "fmt"

// commandQueueDepth bounds the inbound structural-command queue a busy
// writer's entry can have published into it via ProcessCommandAsync. It is
// small on purpose: a queue backing up means the holding thread isn't
// calling Tick often enough, which the pool has no way to fix for it.
const commandQueueDepth = 64

// commandQueue is the bounded inbound queue of structural commands (e.g.
// ALTER TABLE) a writer accumulates while another thread holds it and a
// third thread publishes work via the pool's GetOrPublishCommand fallback
// (spec.md §4.6). It is kept as its own type, independent of the directio
// data file, so it can be exercised without a real commit log.
type commandQueue struct {
	ch chan func()
}

func newCommandQueue() *commandQueue {
	return &commandQueue{ch: make(chan func(), commandQueueDepth)}
}

// publish enqueues fn, returning an error if the queue is full.
func (q *commandQueue) publish(name string, fn func()) error {
	select {
	case q.ch <- fn:
		return nil
	default:
		return fmt.Errorf("tablewriter: command queue full for table %q", name)
	}
}

// drain runs every command currently queued, in order, and returns once the
// queue is empty. Commands published concurrently with a drain may or may
// not be observed by it; the caller is expected to drain again on its next
// tick.
func (q *commandQueue) drain() {
	for {
		select {
		case cmd := <-q.ch:
			cmd()
		default:
			return
		}
	}
}
