package monitor

import (
	"errors"
	"testing"
)

func TestPendingTableSingleFulfillment(t *testing.T) {
	table := newPendingTable()
	entry, err := table.add(1, CmdInfo)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !table.resolve(1, Frame{Type: CmdInfo, RequestID: 1}) {
		t.Fatal("resolve reported missing entry")
	}
	if table.resolve(1, Frame{}) {
		t.Fatal("second resolve should find nothing")
	}
	out := <-entry.done
	if out.err != nil || out.frame.RequestID != 1 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if table.size() != 0 {
		t.Fatalf("entry leaked: size=%d", table.size())
	}
}

func TestPendingTableDuplicateID(t *testing.T) {
	table := newPendingTable()
	if _, err := table.add(5, CmdInfo); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := table.add(5, CmdInfo); !errors.Is(err, ErrDuplicateRequestID) {
		t.Fatalf("expected ErrDuplicateRequestID, got %v", err)
	}
}

func TestPendingTableRejectAll(t *testing.T) {
	table := newPendingTable()
	var entries []*pendingEntry
	for id := uint32(1); id <= 4; id++ {
		entry, err := table.add(id, CmdMemGet)
		if err != nil {
			t.Fatalf("add %d: %v", id, err)
		}
		entries = append(entries, entry)
	}

	cause := &ConnectionError{Err: errors.New("broken pipe")}
	table.rejectAll(cause)

	for i, entry := range entries {
		out := <-entry.done
		var connErr *ConnectionError
		if !errors.As(out.err, &connErr) {
			t.Fatalf("entry %d: expected ConnectionError, got %v", i, out.err)
		}
	}
	if table.size() != 0 {
		t.Fatalf("table not cleared: size=%d", table.size())
	}
}
