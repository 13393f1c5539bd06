package paxos

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestDiskBackendStoreRetrieve(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "durable.log")
	b, err := OpenDiskBackend(fpath)
	if err != nil {
		t.Fatal("Error Opening Backend:", err)
	}
	defer b.Close()
	if err := b.Store(1, []byte("first")); err != nil {
		t.Error("Error Storing Entry:", err)
		return
	}
	if err := b.Store(2, []byte("second")); err != nil {
		t.Error("Error Storing Entry:", err)
		return
	}
	entries, err := b.Retrieve(0)
	if err != nil {
		t.Error("Error Retrieving Entries:", err)
		return
	}
	if len(entries) != 2 || !bytes.Equal(entries[1].Value, []byte("second")) {
		t.Errorf("Retrieved %v", entries)
	}
}

func TestDiskBackendRecover(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "durable.log")
	b, err := OpenDiskBackend(fpath)
	if err != nil {
		t.Fatal("Error Opening Backend:", err)
	}
	for i := int64(1); i <= 4; i++ {
		if err := b.Store(i, []byte{'v', byte('0' + i)}); err != nil {
			t.Error("Error Storing Entry:", err)
			return
		}
	}
	if err := b.Remove(3); err != nil {
		t.Error("Error Removing:", err)
		return
	}
	if err := b.Close(); err != nil {
		t.Error("Error Closing Backend:", err)
		return
	}

	r, err := OpenDiskBackend(fpath)
	if err != nil {
		t.Fatal("Error Reopening Backend:", err)
	}
	defer r.Close()
	high, err := r.HighestProposalID()
	if err != nil {
		t.Error("Error Reading Highest Proposal:", err)
		return
	}
	if high != 4 {
		t.Errorf("Recovered Highest Proposal: got %d, want 4", high)
	}
	entries, err := r.Retrieve(0)
	if err != nil {
		t.Error("Error Retrieving Entries:", err)
		return
	}
	if len(entries) != 2 || entries[0].ProposalID != 3 || entries[1].ProposalID != 4 {
		t.Errorf("Recovered Entries: %v, want ids 3 and 4", entries)
	}
	if !bytes.Equal(entries[0].Value, []byte("v3")) {
		t.Errorf("Recovered Value: %q, want v3", entries[0].Value)
	}
}

func TestDiskBackendRemoveAbsentPivot(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "durable.log")
	b, err := OpenDiskBackend(fpath)
	if err != nil {
		t.Fatal("Error Opening Backend:", err)
	}
	defer b.Close()
	if err := b.Store(1, []byte("one")); err != nil {
		t.Error("Error Storing Entry:", err)
		return
	}
	if err := b.Remove(9); err != nil {
		t.Error("Error Removing:", err)
		return
	}
	entries, err := b.Retrieve(0)
	if err != nil {
		t.Error("Error Retrieving Entries:", err)
		return
	}
	if len(entries) != 1 {
		t.Errorf("Entries After Absent Pivot Remove: %d, want 1", len(entries))
	}
}
