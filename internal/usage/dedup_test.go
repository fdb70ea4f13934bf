package usage

import "testing"

func entryWithID(id string) Entry {
	return Entry{ID: id, InputTokens: 1}
}

func TestFilterNewDropsSeenAndInBatchDuplicates(t *testing.T) {
	s := NewDedupStore()

	batch := []Entry{entryWithID("a:1"), entryWithID("b:2"), entryWithID("a:1")}
	got := s.FilterNew(batch)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].ID != "a:1" || got[1].ID != "b:2" {
		t.Errorf("order not preserved: %v", got)
	}

	again := s.FilterNew(batch)
	if len(again) != 0 {
		t.Errorf("second pass accepted %d entries, want 0", len(again))
	}
}

// filterNew(filterNew(xs) ++ xs) == filterNew(xs) on a fresh store.
func TestFilterNewIdempotent(t *testing.T) {
	xs := []Entry{entryWithID("a:1"), entryWithID("b:2"), entryWithID("c:3")}

	fresh := NewDedupStore()
	want := fresh.FilterNew(xs)

	other := NewDedupStore()
	first := other.FilterNew(xs)
	combined := append(append([]Entry{}, first...), xs...)

	third := NewDedupStore()
	got := third.FilterNew(combined)

	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i].ID != want[i].ID {
			t.Errorf("entry %d: got %q, want %q", i, got[i].ID, want[i].ID)
		}
	}
}

func TestEmptyDedupKeyAlwaysUnique(t *testing.T) {
	s := NewDedupStore()

	batch := []Entry{entryWithID(":"), entryWithID(":")}
	if got := s.FilterNew(batch); len(got) != 2 {
		t.Errorf("got %d entries, want 2 (degenerate keys never dedup)", len(got))
	}
	if got := s.FilterNew(batch); len(got) != 2 {
		t.Errorf("repeat: got %d entries, want 2", len(got))
	}
	if s.Len() != 0 {
		t.Errorf("degenerate keys were marked seen: Len = %d", s.Len())
	}
}

func TestSingleEntryVariants(t *testing.T) {
	s := NewDedupStore()
	e := entryWithID("m:r")

	if s.IsDuplicate(e) {
		t.Error("fresh store reported duplicate")
	}
	s.MarkProcessed(e)
	if !s.IsDuplicate(e) {
		t.Error("marked entry not reported duplicate")
	}

	s.Reset()
	if s.IsDuplicate(e) || s.Len() != 0 {
		t.Error("reset did not clear state")
	}
}
