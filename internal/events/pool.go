package events

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// DefaultCapacity is the window size when none is configured.
const DefaultCapacity = 1024

// Event is a snapshot of one slot.
type Event struct {
	ID         int
	Descriptor Descriptor
	Tag        string
	Start      int64
	Stop       int64
	Retained   bool
}

// Duration is Stop - Start.
func (e Event) Duration() int64 { return e.Stop - e.Start }

type slot struct {
	desc        Descriptor
	tag         string
	start, stop int64
	used        bool
}

// Pool is a fixed window of event slots.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Pool struct {
	mu       sync.Mutex
	slots    []slot
	retain   *bitset.BitSet
	cursor   int
	circular bool
}

// NewPool creates a window of capacity slots. When circular is set the
// cursor wraps to slot 0 after the last slot; otherwise registering past
// the end fails.
func NewPool(capacity int, circular bool) *Pool {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Pool{
		slots:    make([]slot, capacity),
		retain:   bitset.New(uint(capacity)),
		circular: circular,
	}
}

// Capacity returns the number of slots.
func (p *Pool) Capacity() int {
	return len(p.slots)
}

// Register stores an event in the next free slot and returns its id.
func (p *Pool) Register(desc Descriptor, tag string, start, stop int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.cursor
	if id >= len(p.slots) || p.retain.Test(uint(id)) {
		next, ok := p.nextClear(id)
		if !ok {
			return -1, &ResourceExhaustedError{Retained: int(p.retain.Count()), Capacity: len(p.slots)}
		}
		id = next
	}
	p.slots[id] = slot{desc: desc, tag: tag, start: start, stop: stop, used: true}
	p.cursor = id + 1
	if p.cursor >= len(p.slots) && p.circular {
		p.cursor = 0
	}
	return id, nil
}

// nextClear finds the first unretained slot at or after from, wrapping to
// the start of the window when circular.
func (p *Pool) nextClear(from int) (int, bool) {
	if from < len(p.slots) {
		if i, ok := p.retain.NextClear(uint(from)); ok {
			return int(i), true
		}
	}
	if !p.circular {
		return 0, false
	}
	if i, ok := p.retain.NextClear(0); ok && int(i) < min(from, len(p.slots)) {
		return int(i), true
	}
	return 0, false
}

// Timers returns the timestamps of event id.
func (p *Pool) Timers(id int) (start, stop int64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.valid(id) {
		return 0, 0, false
	}
	s := p.slots[id]
	return s.start, s.stop, true
}

// Descriptor returns the descriptor of event id.
func (p *Pool) Descriptor(id int) (Descriptor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.valid(id) {
		return DescNone, false
	}
	return p.slots[id].desc, true
}

// Get returns a snapshot of event id.
func (p *Pool) Get(id int) (Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.valid(id) {
		return Event{}, false
	}
	return p.event(id), true
}

// Retain protects event id from being overwritten when the window wraps.
func (p *Pool) Retain(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.valid(id) {
		return false
	}
	p.retain.Set(uint(id))
	return true
}

// Release undoes Retain.
func (p *Pool) Release(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id >= 0 && id < len(p.slots) {
		p.retain.Clear(uint(id))
	}
}

// Retained returns the number of retained slots.
func (p *Pool) Retained() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.retain.Count())
}

// Reset empties the window and releases every slot.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.slots)
	p.retain.ClearAll()
	p.cursor = 0
}

// Events returns snapshots of every occupied slot in id order.
func (p *Pool) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for id := range p.slots {
		if p.slots[id].used {
			out = append(out, p.event(id))
		}
	}
	return out
}

func (p *Pool) valid(id int) bool {
	return id >= 0 && id < len(p.slots) && p.slots[id].used
}

func (p *Pool) event(id int) Event {
	s := p.slots[id]
	return Event{
		ID:         id,
		Descriptor: s.desc,
		Tag:        s.tag,
		Start:      s.start,
		Stop:       s.stop,
		Retained:   p.retain.Test(uint(id)),
	}
}
