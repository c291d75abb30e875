package state

import "time"

// snapshot is a deep copy of the event-mutated state, taken just before
// a mutation that is worth rewinding past.
type snapshot struct {
	takenAt time.Time
	reason  string
	state   core
}

// SnapshotMeta describes one ring entry for the ops surface.
type SnapshotMeta struct {
	Index       int       `json:"index"`
	TakenAt     time.Time `json:"takenAt"`
	Reason      string    `json:"reason"`
	CurrentPick int       `json:"currentPick"`
	PickCount   int       `json:"pickCount"`
}

// takeSnapshot pushes a copy of the current state onto the ring,
// evicting the oldest entry once the ring is full. Callers hold the
// write lock.
func (s *Store) takeSnapshot(reason string) {
	snap := snapshot{
		takenAt: s.now(),
		reason:  reason,
		state:   s.core.clone(),
	}
	if len(s.snapshots) >= s.snapshotCap {
		s.snapshots = append(s.snapshots[1:], snap)
		return
	}
	s.snapshots = append(s.snapshots, snap)
}

// normalizeSnapshotIndex maps an index in [-N, N-1] onto [0, N-1].
// Negative indexes count back from the newest snapshot: -1 is the most
// recent, -N the oldest.
func normalizeSnapshotIndex(index, n int) (int, bool) {
	if index >= n || index < -n {
		return 0, false
	}
	if index < 0 {
		index += n
	}
	return index, true
}

// SnapshotCount reports how many snapshots the ring currently holds.
func (s *Store) SnapshotCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// SnapshotMetas lists the ring oldest-first.
func (s *Store) SnapshotMetas() []SnapshotMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]SnapshotMeta, len(s.snapshots))
	for i, snap := range s.snapshots {
		metas[i] = SnapshotMeta{
			Index:       i,
			TakenAt:     snap.takenAt,
			Reason:      snap.reason,
			CurrentPick: snap.state.currentPick,
			PickCount:   len(snap.state.history),
		}
	}
	return metas
}

// SnapshotAt returns a read-only view of the snapshot at index without
// mutating anything. Index follows the ring convention: 0 is the
// oldest, -1 the newest. Out-of-range indexes report false.
func (s *Store) SnapshotAt(index int) (View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := normalizeSnapshotIndex(index, len(s.snapshots))
	if !ok {
		return View{}, false
	}
	return s.viewOf(s.snapshots[idx].state), true
}

// RollbackToSnapshot restores the state captured at index and discards
// every snapshot taken after it. The restored snapshot itself stays in
// the ring so repeated rollbacks to the same point keep working.
// Out-of-range indexes report false and mutate nothing.
func (s *Store) RollbackToSnapshot(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := normalizeSnapshotIndex(index, len(s.snapshots))
	if !ok {
		return false
	}

	s.core = s.snapshots[idx].state.clone()
	s.snapshots = s.snapshots[:idx+1]

	s.logger.Warn("state rolled back",
		"snapshot_index", idx,
		"reason", s.snapshots[idx].reason,
		"current_pick", s.core.currentPick,
		"picks", len(s.core.history),
	)
	return true
}
