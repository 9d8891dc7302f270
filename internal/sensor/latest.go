package sensor

import "sync/atomic"

// latestStore holds the most recent encoded frame per data characteristic.
// Frames are overwritten, never queued: readers always see the newest value
// and missed intermediate samples are not redelivered. The key set is fixed
// at construction so concurrent map reads need no locking; per-slot updates
// are atomic pointer swaps on the tracker callback goroutine.
type latestStore struct {
	slots map[string]*atomic.Pointer[Frame]
}

func newLatestStore(charUUIDs []string) *latestStore {
	slots := make(map[string]*atomic.Pointer[Frame], len(charUUIDs))
	for _, id := range charUUIDs {
		slots[id] = &atomic.Pointer[Frame]{}
	}
	return &latestStore{slots: slots}
}

// Update replaces the slot for the frame's characteristic. Frames for
// unknown characteristics are dropped.
func (l *latestStore) Update(f Frame) {
	if slot, ok := l.slots[f.CharUUID]; ok {
		slot.Store(&f)
	}
}

// Get returns the newest frame for a characteristic, or nil when no sample
// has arrived yet (or the store was reset).
func (l *latestStore) Get(charUUID string) *Frame {
	slot, ok := l.slots[charUUID]
	if !ok {
		return nil
	}
	return slot.Load()
}

// Reset overwrites every slot with the given neutral frames and clears
// slots no neutral frame was supplied for.
func (l *latestStore) Reset(neutral []Frame) {
	for _, slot := range l.slots {
		slot.Store(nil)
	}
	for _, f := range neutral {
		l.Update(f)
	}
}
