package fakeapi

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "fake.db"))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreLists(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetList(1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetList() error = %v, want ErrNotFound", err)
	}

	if err := store.PutList(&List{ID: 1, Name: "Newsletter", Count: 10}); err != nil {
		t.Fatalf("PutList() error = %v", err)
	}
	if err := store.PutList(&List{ID: 1, Name: "Newsletter", Count: 12}); err != nil {
		t.Fatalf("PutList() error = %v", err)
	}

	l, err := store.GetList(1)
	if err != nil {
		t.Fatalf("GetList() error = %v", err)
	}
	if l.Name != "Newsletter" || l.Count != 12 {
		t.Errorf("GetList() = %+v", l)
	}
}

func TestStoreCreateSegment(t *testing.T) {
	store := newTestStore(t)

	seg := &Segment{ListID: 1, Name: "orphan"}
	if err := store.CreateSegment(seg); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CreateSegment() without list error = %v, want ErrNotFound", err)
	}

	store.PutList(&List{ID: 1, Name: "Newsletter"})

	first := &Segment{ListID: 1, Name: "first"}
	if err := store.CreateSegment(first); err != nil {
		t.Fatalf("CreateSegment() error = %v", err)
	}
	if first.ID != 1 {
		t.Errorf("first.ID = %d, want 1", first.ID)
	}
	if first.CreatedOn.IsZero() {
		t.Error("CreatedOn not set")
	}

	fixed := &Segment{ID: 50, ListID: 1, Name: "fixed"}
	if err := store.CreateSegment(fixed); err != nil {
		t.Fatalf("CreateSegment() error = %v", err)
	}

	next := &Segment{ListID: 1, Name: "next"}
	if err := store.CreateSegment(next); err != nil {
		t.Fatalf("CreateSegment() error = %v", err)
	}
	if next.ID != 51 {
		t.Errorf("next.ID = %d, want 51", next.ID)
	}

	got, err := store.GetSegment(50)
	if err != nil {
		t.Fatalf("GetSegment() error = %v", err)
	}
	if got.Name != "fixed" || got.ListID != 1 {
		t.Errorf("GetSegment() = %+v", got)
	}
	if !got.CreatedOn.Equal(fixed.CreatedOn) {
		t.Errorf("CreatedOn = %v, want %v", got.CreatedOn, fixed.CreatedOn)
	}
}

func TestStoreUpdateDeleteSegment(t *testing.T) {
	store := newTestStore(t)
	store.PutList(&List{ID: 1, Name: "Newsletter"})

	seg := &Segment{ListID: 1, Name: "before"}
	store.CreateSegment(seg)

	err := store.UpdateSegment(seg.ID, func(s *Segment) error {
		s.Name = "after"
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateSegment() error = %v", err)
	}

	boom := errors.New("boom")
	if err := store.UpdateSegment(seg.ID, func(s *Segment) error {
		s.Name = "discarded"
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("UpdateSegment() error = %v, want boom", err)
	}

	got, _ := store.GetSegment(seg.ID)
	if got.Name != "after" {
		t.Errorf("Name = %q, want after", got.Name)
	}

	if err := store.UpdateSegment(999, func(*Segment) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateSegment(999) error = %v, want ErrNotFound", err)
	}

	if err := store.DeleteSegment(seg.ID); err != nil {
		t.Fatalf("DeleteSegment() error = %v", err)
	}
	if err := store.DeleteSegment(seg.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteSegment() error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetSegment(seg.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSegment() after delete error = %v, want ErrNotFound", err)
	}
}

func TestStoreListSegments(t *testing.T) {
	store := newTestStore(t)
	store.PutList(&List{ID: 1, Name: "one"})
	store.PutList(&List{ID: 2, Name: "two"})

	store.CreateSegment(&Segment{ID: 7, ListID: 1, Name: "c"})
	store.CreateSegment(&Segment{ID: 3, ListID: 1, Name: "a"})
	store.CreateSegment(&Segment{ID: 5, ListID: 2, Name: "other"})

	segs, err := store.ListSegments(1)
	if err != nil {
		t.Fatalf("ListSegments() error = %v", err)
	}
	if len(segs) != 2 || segs[0].ID != 3 || segs[1].ID != 7 {
		t.Errorf("ListSegments(1) = %v, want IDs [3 7]", segs)
	}

	if _, err := store.ListSegments(9); !errors.Is(err, ErrNotFound) {
		t.Errorf("ListSegments(9) error = %v, want ErrNotFound", err)
	}
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fake.db")

	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	store.PutList(&List{ID: 1, Name: "kept"})
	store.Close()

	store, err = OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore() again error = %v", err)
	}
	defer store.Close()

	if _, err := store.GetList(1); err != nil {
		t.Errorf("GetList() after reopen error = %v", err)
	}
}
