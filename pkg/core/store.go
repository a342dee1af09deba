package core

import (
	"sync"
	"sync/atomic"
)

const defaultStoreCapacity = 16

// Slot indexes a memoized transition chain in a ChainStore
type Slot int

// slot holds one memoized chain. It is written once, by compare-and-swap.
type slot struct {
	chain atomic.Pointer[Chain]
}

// ChainStore holds the memoized transition chains of one concrete machine
// type. Slots are reserved while the type is built; after that the store is
// sealed and only populated.
type ChainStore struct {
	mu     sync.RWMutex
	items  []*slot
	size   int
	sealed bool
}

// NewChainStore creates a store whose slot numbering starts after all slots
// reserved by the inherited stores.
func NewChainStore(inherited ...*ChainStore) *ChainStore {
	base := 0
	for _, store := range inherited {
		if store != nil {
			base += store.Size()
		}
	}

	capacity := defaultStoreCapacity
	if base > 0 {
		capacity = 2 * base
	}

	s := &ChainStore{
		items: make([]*slot, capacity),
		size:  base,
	}
	for i := range s.items {
		s.items[i] = &slot{}
	}
	return s
}

// OpenSlot reserves the next unused slot
func (s *ChainStore) OpenSlot() (Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return 0, ErrStoreSealed
	}
	if s.size >= len(s.items) {
		s.increaseCapacity()
	}
	index := s.size
	s.size++
	return Slot(index), nil
}

// increaseCapacity doubles the slot array. Callers hold s.mu.
func (s *ChainStore) increaseCapacity() {
	capacity := len(s.items) * 2
	if capacity == 0 {
		capacity = defaultStoreCapacity
	}
	items := make([]*slot, capacity)
	copy(items, s.items)
	for i := len(s.items); i < capacity; i++ {
		items[i] = &slot{}
	}
	s.items = items
}

// ShrinkToActualSize drops the unused capacity and seals the store
func (s *ChainStore) ShrinkToActualSize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*slot, s.size)
	copy(items, s.items[:s.size])
	s.items = items
	s.sealed = true
}

// Seal stops further slot reservations
func (s *ChainStore) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
}

// Size returns the number of reserved slots, inherited ones included
func (s *ChainStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Cap returns the current slot capacity
func (s *ChainStore) Cap() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *ChainStore) slot(index Slot) *slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || int(index) >= s.size {
		return nil
	}
	return s.items[index]
}

// Load returns the chain memoized in the slot, or nil
func (s *ChainStore) Load(index Slot) *Chain {
	item := s.slot(index)
	if item == nil {
		return nil
	}
	return item.chain.Load()
}

// Populate memoizes the chain produced by compute unless the slot already
// holds one. It returns the chain in the slot and whether this call stored it.
// compute runs without any lock held, so concurrent first uses may each
// compute a chain; the first one published wins and the others are discarded.
func (s *ChainStore) Populate(index Slot, compute func() *Chain) (*Chain, bool) {
	item := s.slot(index)
	if item == nil {
		panic(&HierarchyError{Reason: "transition chain slot out of range"})
	}

	if chain := item.chain.Load(); chain != nil {
		return chain, false
	}

	chain := compute()
	if item.chain.CompareAndSwap(nil, chain) {
		return chain, true
	}
	return item.chain.Load(), false
}

// Reset clears every memoized chain while keeping the reserved slots
func (s *ChainStore) Reset() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items[:s.size] {
		item.chain.Store(nil)
	}
}
