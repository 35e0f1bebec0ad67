package store

import (
	"context"
	"errors"
	"testing"
)

func newNoteGateway(t *testing.T) (*Gateway[*note], *MemoryBackend) {
	t.Helper()
	be := NewMemoryBackend()
	gw, err := NewGateway[*note](NewEngine(), noteDescriptor(), be)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return gw, be
}

func asActor(subject string) context.Context {
	return WithIdentity(context.Background(), Identity{Subject: subject, Role: "user"})
}

func TestGateway_OwnershipScoping(t *testing.T) {
	gw, _ := newNoteGateway(t)

	if err := gw.Insert(asActor("alice"), &note{Body: "alice's"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := gw.Insert(asActor("bob"), &note{Body: "bob's"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	mine, err := gw.List(asActor("alice"), All())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine) != 1 || mine[0].Body != "alice's" {
		t.Fatalf("alice sees %d notes, want only her own", len(mine))
	}

	// Reads without a scope see only sentinel-owned rows, i.e. none here.
	unowned, err := gw.List(context.Background(), All())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(unowned) != 0 {
		t.Fatalf("unscoped read sees %d notes, want 0", len(unowned))
	}
}

func TestGateway_ReadScopeFailsOnEmptySubject(t *testing.T) {
	gw, _ := newNoteGateway(t)
	ctx := WithIdentity(context.Background(), Identity{Subject: ""})
	if _, err := gw.List(ctx, All()); !errors.Is(err, ErrOwnerUnresolved) {
		t.Fatalf("err = %v, want ErrOwnerUnresolved", err)
	}
}

func TestGateway_SoftDeleteRewrite(t *testing.T) {
	gw, _ := newNoteGateway(t)
	ctx := asActor("alice")

	n := &note{Body: "ephemeral"}
	if err := gw.Insert(ctx, n); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := gw.Delete(ctx, n); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	// Filtered reads no longer see the row.
	if _, err := gw.First(ctx, Eq(ColID, n.ID)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("First after delete: err = %v, want ErrNotFound", err)
	}

	// The unfiltered path still does, with the flag set.
	kept, err := gw.FirstUnfiltered(ctx, Eq(ColID, n.ID))
	if err != nil {
		t.Fatalf("FirstUnfiltered: %v", err)
	}
	if !kept.IsDeleted {
		t.Error("soft-deleted row should keep is_deleted=true")
	}
}

func TestGateway_DeleteWithoutSoftDeleteIsPhysical(t *testing.T) {
	be := NewMemoryBackend()
	gw, err := NewGateway[*tag](NewEngine(), tagDescriptor(), be)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	ctx := context.Background()

	g := &tag{Label: "temp"}
	if err := gw.Insert(ctx, g); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := gw.Delete(ctx, g); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := gw.First(ctx, Eq(ColID, g.ID)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after physical delete", err)
	}
}

func TestGateway_UpdateMissingRow(t *testing.T) {
	gw, _ := newNoteGateway(t)
	n := &note{ID: "never-inserted", Body: "x"}
	if err := gw.Update(asActor("alice"), n); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGateway_UpdateGuarded(t *testing.T) {
	gw, _ := newNoteGateway(t)
	ctx := asActor("alice")

	n := &note{Body: "v1"}
	if err := gw.Insert(ctx, n); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Guard holds: the write lands.
	n.Body = "v2"
	if err := gw.UpdateGuarded(ctx, n, Eq("body", "v1")); err != nil {
		t.Fatalf("UpdateGuarded: %v", err)
	}

	// Guard now stale: the write is rejected as a conflict.
	n.Body = "v3"
	if err := gw.UpdateGuarded(ctx, n, Eq("body", "v1")); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	got, err := gw.First(ctx, Eq(ColID, n.ID))
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if got.Body != "v2" {
		t.Errorf("Body = %q, conflicting write must not land", got.Body)
	}
}

func TestGateway_HardDeleteWhere(t *testing.T) {
	gw, _ := newNoteGateway(t)
	ctx := asActor("alice")

	for _, body := range []string{"a", "b", "keep"} {
		if err := gw.Insert(ctx, &note{Body: body}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	n, err := gw.HardDeleteWhere(ctx, Eq("owner", "alice"))
	if err != nil {
		t.Fatalf("HardDeleteWhere: %v", err)
	}
	if n != 3 {
		t.Errorf("removed %d rows, want 3", n)
	}
}

func TestMemoryBackend_DuplicateInsert(t *testing.T) {
	gw, _ := newNoteGateway(t)
	ctx := asActor("alice")

	n := &note{ID: "dup", Body: "first"}
	if err := gw.Insert(ctx, n); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := gw.Insert(ctx, &note{ID: "dup", Body: "second"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict for duplicate id", err)
	}
}

func TestMemoryBackend_ReturnsDetachedClones(t *testing.T) {
	gw, _ := newNoteGateway(t)
	ctx := asActor("alice")

	n := &note{Body: "original"}
	if err := gw.Insert(ctx, n); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := gw.First(ctx, Eq(ColID, n.ID))
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	got.Body = "mutated locally"

	again, err := gw.First(ctx, Eq(ColID, n.ID))
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if again.Body != "original" {
		t.Error("mutating a returned entity must not change the stored row")
	}
}

func TestGateway_CancelledContext(t *testing.T) {
	gw, _ := newNoteGateway(t)
	ctx, cancel := context.WithCancel(asActor("alice"))
	cancel()

	if err := gw.Insert(ctx, &note{Body: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Insert err = %v, want context.Canceled", err)
	}
	if _, err := gw.List(ctx, All()); !errors.Is(err, context.Canceled) {
		t.Errorf("List err = %v, want context.Canceled", err)
	}
}
