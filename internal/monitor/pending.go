package monitor

import "sync"

type outcome struct {
	frame Frame
	err   error
}

type pendingEntry struct {
	expected byte
	done     chan outcome
}

// pendingTable is the single-fulfillment completion table correlating
// responses to in-flight requests by id. Each entry is removed exactly once:
// on resolve, on reject, or by RejectAll during connection teardown.
type pendingTable struct {
	mu      sync.Mutex
	entries map[uint32]*pendingEntry
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[uint32]*pendingEntry)}
}

func (t *pendingTable) add(id uint32, expected byte) (*pendingEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[id]; exists {
		return nil, ErrDuplicateRequestID
	}
	entry := &pendingEntry{expected: expected, done: make(chan outcome, 1)}
	t.entries[id] = entry
	return entry, nil
}

// take removes and returns the entry for id, or nil for late/duplicate
// responses.
func (t *pendingTable) take(id uint32) *pendingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.entries[id]
	delete(t.entries, id)
	return entry
}

func (t *pendingTable) resolve(id uint32, f Frame) bool {
	entry := t.take(id)
	if entry == nil {
		return false
	}
	entry.done <- outcome{frame: f}
	return true
}

func (t *pendingTable) reject(id uint32, err error) bool {
	entry := t.take(id)
	if entry == nil {
		return false
	}
	entry.done <- outcome{err: err}
	return true
}

// rejectAll fails every pending request atomically and clears the table.
// Invoked on connection teardown; no partial success survives it.
func (t *pendingTable) rejectAll(err error) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[uint32]*pendingEntry)
	t.mu.Unlock()
	for _, entry := range entries {
		entry.done <- outcome{err: err}
	}
}

func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
