// Package clockx implements CLOCK (second-chance) replacement for a
// fixed number of slots, tracking ref bits and evictable state for slot
// IDs [0..capacity).
package clockx

type slotState struct {
	present   bool
	ref       bool
	evictable bool
}

type Clock struct {
	slots []slotState
	hand  int
	size  int // number of evictable slots
}

func New(capacity int) *Clock {
	if capacity <= 0 {
		capacity = 1
	}
	return &Clock{slots: make([]slotState, capacity)}
}

func (c *Clock) Capacity() int { return len(c.slots) }

func (c *Clock) Size() int { return c.size }

// Touch marks slot as recently accessed.
func (c *Clock) Touch(id int) {
	if id < 0 || id >= len(c.slots) {
		return
	}
	c.slots[id].present = true
	c.slots[id].ref = true
}

// SetEvictable marks whether slot can be evicted (e.g., pin==0).
func (c *Clock) SetEvictable(id int, evictable bool) {
	if id < 0 || id >= len(c.slots) {
		return
	}
	s := &c.slots[id]
	if !s.present || s.evictable == evictable {
		return
	}
	s.evictable = evictable
	if evictable {
		c.size++
	} else {
		c.size--
	}
}

// Evict returns a victim slot id and removes it from tracking. The hand
// sweeps at most twice: the first pass clears ref bits, the second must
// find a victim if any slot is evictable.
func (c *Clock) Evict() (id int, ok bool) {
	n := len(c.slots)
	if n == 0 || c.size == 0 {
		return -1, false
	}

	for i := 0; i < 2*n; i++ {
		s := &c.slots[c.hand]
		idx := c.hand
		c.hand = (c.hand + 1) % n

		if !s.present || !s.evictable {
			continue
		}
		if s.ref {
			// second chance
			s.ref = false
			continue
		}
		*s = slotState{}
		c.size--
		return idx, true
	}

	return -1, false
}

// Remove drops slot from tracking without treating it as an eviction.
func (c *Clock) Remove(id int) {
	if id < 0 || id >= len(c.slots) {
		return
	}
	s := &c.slots[id]
	if !s.present {
		return
	}
	if s.evictable {
		c.size--
	}
	*s = slotState{}
}
