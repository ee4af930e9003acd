package client

import (
	"errors"
	"testing"
)

type event struct {
	id   EntityID
	kind ChangeKind
	e    Entity
}

// recorder 收集 Store 发出的通知
type recorder struct {
	events []event
	boards [][2]int
}

func (r *recorder) EntityChanged(id EntityID, kind ChangeKind, e Entity) {
	r.events = append(r.events, event{id: id, kind: kind, e: e})
}

func (r *recorder) BoardResized(width, height int) {
	r.boards = append(r.boards, [2]int{width, height})
}

func (r *recorder) count(id EntityID, kind ChangeKind) int {
	n := 0
	for _, ev := range r.events {
		if ev.id == id && ev.kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) reset() { r.events, r.boards = nil, nil }

func newTestStore() (*Store, *recorder) {
	s := NewStore(nil)
	rec := &recorder{}
	s.Subscribe(rec)
	return s, rec
}

func TestStoreUpsertThenRemove(t *testing.T) {
	s, rec := newTestStore()

	e, err := s.Upsert("1", EntityFields{Health: intp(100), X: f64p(1)})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if e.ID != "1" || e.Health != 100 || e.MaxHealth != 100 || e.Display != DisplayVisible {
		t.Errorf("unexpected entity %+v", e)
	}
	if rec.count("1", Created) != 1 {
		t.Errorf("expected one Created, got %+v", rec.events)
	}

	e, _ = s.Upsert("1", EntityFields{ID: "999", X: f64p(2)})
	if e.ID != "1" || e.X != 2 || e.Health != 100 {
		t.Errorf("merge changed id or lost fields: %+v", e)
	}
	if rec.count("1", Updated) != 1 {
		t.Errorf("expected one Updated, got %+v", rec.events)
	}

	if !s.Remove("1") {
		t.Fatal("remove returned false for present id")
	}
	if _, ok := s.Get("1"); ok {
		t.Error("entity still present after remove")
	}
	if rec.count("1", Removed) != 1 {
		t.Errorf("expected one Removed, got %+v", rec.events)
	}
	if s.Remove("1") {
		t.Error("second remove should be a no-op")
	}
	if rec.count("1", Removed) != 1 {
		t.Error("removing an absent id emitted a notification")
	}
}

func TestStoreUpsertNoChangeIsSilent(t *testing.T) {
	s, rec := newTestStore()
	s.Upsert("1", EntityFields{X: f64p(1)})
	rec.reset()
	s.Upsert("1", EntityFields{X: f64p(1)})
	if len(rec.events) != 0 {
		t.Errorf("identical upsert emitted %+v", rec.events)
	}
}

func TestStoreMergeNotifyMask(t *testing.T) {
	s, rec := newTestStore()
	s.Upsert("2", EntityFields{X: f64p(0), Action: actp(ActionIdle)})
	rec.reset()

	_, ch, _ := s.Merge("2", EntityFields{X: f64p(5)}, AnimationFields)
	if !ch.Suppressed || ch.Fields != FieldPosition {
		t.Errorf("position-only change: %+v", ch)
	}
	if len(rec.events) != 0 {
		t.Errorf("position-only change notified: %+v", rec.events)
	}
	if e, _ := s.Get("2"); e.X != 5 {
		t.Errorf("position not recorded, x=%v", e.X)
	}

	s.Merge("2", EntityFields{Action: actp(ActionWalk)}, AnimationFields)
	if rec.count("2", Updated) != 1 {
		t.Errorf("action change not notified: %+v", rec.events)
	}
}

func TestStoreDeadEntityOnlyRecordsHealth(t *testing.T) {
	s, rec := newTestStore()
	s.Upsert("1", EntityFields{Health: intp(100), X: f64p(1)})
	rec.reset()

	e, ch, _ := s.Merge("1", EntityFields{Health: intp(0), X: f64p(9)}, AllFields)
	if !e.Dead || ch.Fields&FieldDead == 0 {
		t.Fatalf("expected death, got %+v %+v", e, ch)
	}
	if e.X != 1 {
		t.Errorf("position written on the killing update: %v", e.X)
	}
	if rec.count("1", Updated) != 1 {
		t.Errorf("death should notify once, got %+v", rec.events)
	}

	rec.reset()
	e, ch, _ = s.Merge("1", EntityFields{Health: intp(30), X: f64p(9), Action: actp(ActionWalk)}, AllFields)
	if !ch.Suppressed || len(rec.events) != 0 {
		t.Errorf("dead entity update notified: %+v %+v", ch, rec.events)
	}
	if e.X != 1 || e.Action != "" {
		t.Errorf("dead entity position/action written: %+v", e)
	}
	if e.Health != 30 {
		t.Errorf("health not kept for record, got %d", e.Health)
	}
}

func TestStoreLoweredMaxHealthClampsHealth(t *testing.T) {
	s, rec := newTestStore()
	s.Upsert("2", EntityFields{Health: intp(100)})
	rec.reset()

	e, _ := s.Upsert("2", EntityFields{MaxHealth: intp(50)})
	if e.Health != 50 || e.MaxHealth != 50 {
		t.Fatalf("health=%d maxHealth=%d, want 50/50", e.Health, e.MaxHealth)
	}
	if e.Dead {
		t.Error("clamped entity marked dead")
	}
	if rec.count("2", Updated) != 1 {
		t.Errorf("clamp not notified: %+v", rec.events)
	}

	e, _ = s.Upsert("2", EntityFields{MaxHealth: intp(-1)})
	if e.MaxHealth != 50 {
		t.Errorf("negative max health accepted: %d", e.MaxHealth)
	}

	e, _ = s.Upsert("2", EntityFields{MaxHealth: intp(0)})
	if e.Health != 0 || !e.Dead {
		t.Errorf("max health 0 should kill, got %+v", e)
	}
}

func TestStoreDeadLocalKeepsMarkerUntilClear(t *testing.T) {
	s, _ := newTestStore()
	if _, err := s.Register(EntityFields{ID: "1", Health: intp(10)}); err != nil {
		t.Fatal(err)
	}
	s.Upsert("1", EntityFields{Health: intp(0)})
	if e, ok := s.Local(); !ok || !e.Dead {
		t.Fatalf("dead local entity lost: %+v %v", e, ok)
	}
	s.Clear()
	if _, ok := s.Local(); ok {
		t.Error("local marker survived Clear")
	}
}

func TestStoreSetLocal(t *testing.T) {
	s, _ := newTestStore()
	if err := s.SetLocal("nope"); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
	s.Upsert("1", EntityFields{})
	s.Upsert("2", EntityFields{})
	if err := s.SetLocal("1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLocal("2"); err != nil {
		t.Fatal(err)
	}
	locals := 0
	for _, e := range s.All() {
		if e.IsLocal {
			locals++
		}
	}
	if locals != 1 {
		t.Errorf("%d local entities", locals)
	}
	if l, ok := s.Local(); !ok || l.ID != "2" {
		t.Errorf("local = %+v, %v", l, ok)
	}
}

func TestStoreClear(t *testing.T) {
	s, rec := newTestStore()
	s.Register(EntityFields{ID: "1"})
	s.Upsert("2", EntityFields{})
	rec.reset()

	if n := s.Clear(); n != 2 {
		t.Errorf("cleared %d", n)
	}
	if s.Len() != 0 || s.LocalID() != "" {
		t.Errorf("store not empty: len=%d local=%q", s.Len(), s.LocalID())
	}
	if rec.count("1", Removed) != 1 || rec.count("2", Removed) != 1 {
		t.Errorf("missing Removed events: %+v", rec.events)
	}
}

func TestStoreResizeNotifiesOnChange(t *testing.T) {
	s, rec := newTestStore()
	s.Resize(100, 50)
	s.Resize(100, 50)
	s.Resize(200, 50)
	if len(rec.boards) != 2 {
		t.Errorf("boards = %v", rec.boards)
	}
	if b := s.Board(); b.Width != 200 || b.Height != 50 {
		t.Errorf("board = %+v", b)
	}
}

func TestStoreUnsubscribe(t *testing.T) {
	s := NewStore(nil)
	rec := &recorder{}
	cancel := s.Subscribe(rec)
	s.Upsert("1", EntityFields{})
	cancel()
	s.Upsert("2", EntityFields{})
	if len(rec.events) != 1 {
		t.Errorf("events after unsubscribe: %+v", rec.events)
	}
}
