package notebook

import (
	"sync"

	"github.com/seantiz/cellbook/internal/model"
)

// subscriberBufferSize is the channel buffer for each cell subscriber.
// Cells are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// CellBroker fans appended cells out to subscribers.
// It is safe for concurrent use.
//
// Once closed, Subscribe returns an already closed channel so late
// subscribers never block.
type CellBroker struct {
	mu     sync.Mutex
	subs   map[int]chan model.Cell
	nextID int
	closed bool
}

// NewCellBroker creates a new cell broker.
func NewCellBroker() *CellBroker {
	return &CellBroker{subs: make(map[int]chan model.Cell)}
}

// Subscribe returns a channel that receives every cell published after the
// call, and an unsubscribe function.
func (b *CellBroker) Subscribe() (<-chan model.Cell, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.Cell, subscriberBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	cellSubscribers.Inc()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
			cellSubscribers.Dec()
		}
	}
}

// Publish sends cell to all subscribers. Cells are dropped for subscribers
// whose buffers are full.
func (b *CellBroker) Publish(cell model.Cell) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- cell:
		default:
			// Drop the cell for slow subscribers to avoid blocking execution.
		}
	}
}

// Subscribers reports the number of active subscribers.
func (b *CellBroker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every stream. Further publishes are ignored.
func (b *CellBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
		cellSubscribers.Dec()
	}
}
