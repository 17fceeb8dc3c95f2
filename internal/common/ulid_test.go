package common

import (
	"sort"
	"testing"
	"time"
)

func TestNewULIDIsSortableByIssuance(t *testing.T) {
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := NewULID()
		if err != nil {
			t.Fatalf("NewULID: %v", err)
		}
		if len(id) != 26 {
			t.Fatalf("id %q has length %d, want 26", id, len(id))
		}
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatalf("ids not sorted by issuance: %q", ids)
	}
}
