package event

import "testing"

func testStore() *MemoryStore {
	store := NewMemoryStore()
	store.Add(
		Event{ID: "1", Camera: "front_door", Label: "person", Zones: []string{"porch"}, StartTime: 1000},
		Event{ID: "2", Camera: "front_door", Label: "car", Zones: []string{"driveway"}, StartTime: 2000},
		Event{ID: "3", Camera: "back_deck", Label: "person", SubLabel: "Alice", StartTime: 3000},
		Event{ID: "4", Camera: "back_deck", Label: "dog", StartTime: 4000},
	)
	return store
}

func ids(events []Event) []string {
	result := make([]string, len(events))
	for i, ev := range events {
		result[i] = ev.ID
	}
	return result
}

func TestSearchNewestFirst(t *testing.T) {
	events := testStore().Search(SearchFilters{}, nil)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	got := ids(events)
	want := []string{"4", "3", "2", "1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestSearchAllMeansUnrestricted(t *testing.T) {
	events := testStore().Search(SearchFilters{Camera: "all", Label: "ALL", Zones: "all"}, nil)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
}

func TestSearchCameraAllowList(t *testing.T) {
	events := testStore().Search(SearchFilters{}, []string{"front_door"})
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Camera != "front_door" {
			t.Fatalf("unexpected camera %s", ev.Camera)
		}
	}
}

func TestSearchEmptyAllowListDeniesAll(t *testing.T) {
	events := testStore().Search(SearchFilters{}, []string{})
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestSearchZonesAnyOf(t *testing.T) {
	events := testStore().Search(SearchFilters{Zones: "porch, driveway"}, nil)
	if len(events) != 2 {
		t.Fatalf("expected 2 zoned events, got %d", len(events))
	}
}

func TestSearchSubLabelCaseInsensitive(t *testing.T) {
	events := testStore().Search(SearchFilters{SubLabel: "ALICE"}, nil)
	if len(events) != 1 || events[0].ID != "3" {
		t.Fatalf("expected event 3, got %v", ids(events))
	}
}

func TestSearchTimeBounds(t *testing.T) {
	events := testStore().Search(SearchFilters{After: 1500, Before: 3500}, nil)
	got := ids(events)
	if len(got) != 2 || got[0] != "3" || got[1] != "2" {
		t.Fatalf("expected events 3,2, got %v", got)
	}
}

func TestSearchLimit(t *testing.T) {
	events := testStore().Search(SearchFilters{Limit: 2}, nil)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID != "4" {
		t.Fatalf("expected newest event first, got %s", events[0].ID)
	}
}
