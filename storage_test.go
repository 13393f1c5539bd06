package paxos

import (
	"bytes"
	"fmt"
	"testing"
)

func TestDurableLogAccept(t *testing.T) {
	l := NewDurableLog(NewMemoryBackend())
	for i := int64(1); i <= 5; i++ {
		err := l.Accept(i, []byte(fmt.Sprintf("value-%d", i)))
		if err != nil {
			t.Error("Error Accepting Entry:", err)
			return
		}
		high, err := l.HighestProposalID()
		if err != nil {
			t.Error("Error Reading Highest Proposal:", err)
			return
		}
		if high != i {
			t.Errorf("Highest Proposal: got %d, want %d", high, i)
		}
	}
	entries, err := l.Retrieve(2)
	if err != nil {
		t.Error("Error Retrieving Entries:", err)
		return
	}
	if len(entries) != 3 {
		t.Fatalf("Retrieved %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		want := int64(3 + i)
		if e.ProposalID != want {
			t.Errorf("Entry %d: proposal id %d, want %d", i, e.ProposalID, want)
		}
		if !bytes.Equal(e.Value, []byte(fmt.Sprintf("value-%d", want))) {
			t.Errorf("Entry %d: wrong value %q", i, e.Value)
		}
	}
}

func TestDurableLogRetention(t *testing.T) {
	l := NewDurableLog(NewMemoryBackend())
	l.SetHistorySize(2)
	for i := int64(1); i <= 4; i++ {
		if err := l.Accept(i, []byte{byte(i)}); err != nil {
			t.Error("Error Accepting Entry:", err)
			return
		}
	}
	high, err := l.HighestProposalID()
	if err != nil {
		t.Error("Error Reading Highest Proposal:", err)
		return
	}
	if high != 4 {
		t.Errorf("Highest Proposal: got %d, want 4", high)
	}
	entries, err := l.Retrieve(0)
	if err != nil {
		t.Error("Error Retrieving Entries:", err)
		return
	}
	if len(entries) != 2 || entries[0].ProposalID != 3 || entries[1].ProposalID != 4 {
		t.Errorf("Retained Entries: %v, want ids 3 and 4", entries)
	}
	entries, err = l.Retrieve(2)
	if err != nil {
		t.Error("Error Retrieving Entries:", err)
		return
	}
	if len(entries) != 2 {
		t.Errorf("Retrieve(2) returned %d entries, want 2", len(entries))
	}
}

func TestRemoveAbsentPivot(t *testing.T) {
	b := NewMemoryBackend()
	for i := int64(1); i <= 3; i++ {
		if err := b.Store(i, []byte{byte(i)}); err != nil {
			t.Error("Error Storing Entry:", err)
			return
		}
	}
	// 7 was never stored: the remove must leave everything in place
	if err := b.Remove(7); err != nil {
		t.Error("Error Removing:", err)
		return
	}
	entries, err := b.Retrieve(0)
	if err != nil {
		t.Error("Error Retrieving Entries:", err)
		return
	}
	if len(entries) != 3 {
		t.Errorf("Entries After Absent Pivot Remove: %d, want 3", len(entries))
	}
	if err := b.Remove(3); err != nil {
		t.Error("Error Removing:", err)
		return
	}
	entries, err = b.Retrieve(0)
	if err != nil {
		t.Error("Error Retrieving Entries:", err)
		return
	}
	if len(entries) != 1 || entries[0].ProposalID != 3 {
		t.Errorf("Entries After Remove(3): %v, want only id 3", entries)
	}
}

func TestStoreOutOfOrderPanics(t *testing.T) {
	b := NewMemoryBackend()
	defer func() {
		if recover() == nil {
			t.Error("Store With a Gap Did Not Panic")
		}
	}()
	b.Store(2, []byte("skipped ahead"))
}

func TestRetrieveIsRepeatable(t *testing.T) {
	b := NewMemoryBackend()
	if err := b.Store(1, []byte("one")); err != nil {
		t.Error("Error Storing Entry:", err)
		return
	}
	for i := 0; i < 3; i++ {
		entries, err := b.Retrieve(0)
		if err != nil {
			t.Error("Error Retrieving Entries:", err)
			return
		}
		if len(entries) != 1 || entries[0].ProposalID != 1 || !bytes.Equal(entries[0].Value, []byte("one")) {
			t.Errorf("Retrieve %d: got %v", i, entries)
		}
	}
}

// batchBackend returns at most one entry per Retrieve, the way a
// provider doing gradual catch-up would.
type batchBackend struct {
	*MemoryBackend
}

func (b *batchBackend) Retrieve(proposalID int64) ([]Entry, error) {
	entries, err := b.MemoryBackend.Retrieve(proposalID)
	if err != nil || len(entries) == 0 {
		return entries, err
	}
	return entries[:1], nil
}

func TestReplayGradualCatchup(t *testing.T) {
	b := &batchBackend{NewMemoryBackend()}
	for i := int64(1); i <= 6; i++ {
		if err := b.Store(i, []byte{byte(i)}); err != nil {
			t.Error("Error Storing Entry:", err)
			return
		}
	}
	var visited []int64
	last, err := Replay(b, 2, func(e Entry) error {
		visited = append(visited, e.ProposalID)
		return nil
	})
	if err != nil {
		t.Error("Error Replaying:", err)
		return
	}
	if last != 6 {
		t.Errorf("Replay Stopped at %d, want 6", last)
	}
	want := []int64{3, 4, 5, 6}
	if len(visited) != len(want) {
		t.Fatalf("Visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("Visited %v, want %v", visited, want)
			return
		}
	}
}
