package client

import (
	"testing"

	"github.com/fluxbase/flux-go/pkg/protocol"
)

func TestQuerySetAddVersioning(t *testing.T) {
	qs := newQuerySet()

	first := qs.add(&queryEntry{udfPath: "messages:list", args: protocol.EmptyObject()})
	if first.BaseVersion != 0 || first.NewVersion != 1 {
		t.Errorf("first add versions = (%d, %d); want (0, 1)", first.BaseVersion, first.NewVersion)
	}
	second := qs.add(&queryEntry{udfPath: "users:me", args: protocol.EmptyObject()})
	if second.BaseVersion != 1 || second.NewVersion != 2 {
		t.Errorf("second add versions = (%d, %d); want (1, 2)", second.BaseVersion, second.NewVersion)
	}

	if len(first.Modifications) != 1 {
		t.Fatalf("add produced %d modifications; want 1", len(first.Modifications))
	}
	mod := first.Modifications[0]
	if mod.Type != protocol.ModificationAdd {
		t.Errorf("modification type = %q; want %q", mod.Type, protocol.ModificationAdd)
	}
	if mod.QueryID != 0 {
		t.Errorf("first query id = %d; want 0", mod.QueryID)
	}
	if len(mod.Args) != 1 {
		t.Errorf("args wrapped in %d-element array; want 1", len(mod.Args))
	}
}

func TestQuerySetRemove(t *testing.T) {
	qs := newQuerySet()
	entry := &queryEntry{udfPath: "messages:list", args: protocol.EmptyObject()}
	qs.add(entry)

	msg, removed := qs.remove(entry.id)
	if removed != entry {
		t.Fatal("remove returned a different entry")
	}
	if msg.BaseVersion != 1 || msg.NewVersion != 2 {
		t.Errorf("remove versions = (%d, %d); want (1, 2)", msg.BaseVersion, msg.NewVersion)
	}
	if msg.Modifications[0].Type != protocol.ModificationRemove {
		t.Errorf("modification type = %q; want %q", msg.Modifications[0].Type, protocol.ModificationRemove)
	}
	if qs.size() != 0 {
		t.Errorf("size() after remove = %d; want 0", qs.size())
	}
}

func TestQuerySetRemoveUnknownIDIdempotent(t *testing.T) {
	qs := newQuerySet()
	qs.add(&queryEntry{udfPath: "messages:list", args: protocol.EmptyObject()})

	msg, entry := qs.remove(99)
	if msg != nil || entry != nil {
		t.Error("remove of unknown id produced a message; want nil")
	}
	if qs.version != 1 {
		t.Errorf("version after no-op remove = %d; want 1", qs.version)
	}
}

func TestQuerySetIDsNeverReused(t *testing.T) {
	qs := newQuerySet()
	a := &queryEntry{udfPath: "a", args: protocol.EmptyObject()}
	qs.add(a)
	qs.remove(a.id)
	b := &queryEntry{udfPath: "b", args: protocol.EmptyObject()}
	qs.add(b)

	if b.id == a.id {
		t.Errorf("query id %d was reused after removal", a.id)
	}
}

func TestQuerySetRebuild(t *testing.T) {
	qs := newQuerySet()
	a := &queryEntry{udfPath: "messages:list", args: protocol.EmptyObject()}
	b := &queryEntry{udfPath: "users:me", args: protocol.EmptyObject()}
	c := &queryEntry{udfPath: "rooms:get", args: protocol.EmptyObject()}
	qs.add(a)
	qs.add(b)
	qs.add(c)
	qs.remove(b.id)

	batch := qs.rebuild()
	if batch.BaseVersion != 0 {
		t.Errorf("rebuild baseVersion = %d; want 0", batch.BaseVersion)
	}
	if batch.NewVersion != 2 {
		t.Errorf("rebuild newVersion = %d; want 2", batch.NewVersion)
	}
	if len(batch.Modifications) != 2 {
		t.Fatalf("rebuild carries %d modifications; want 2", len(batch.Modifications))
	}
	// Insertion order survives the rebuild, with original ids.
	if batch.Modifications[0].QueryID != a.id || batch.Modifications[1].QueryID != c.id {
		t.Errorf("rebuild ids = (%d, %d); want (%d, %d)",
			batch.Modifications[0].QueryID, batch.Modifications[1].QueryID, a.id, c.id)
	}

	// The version counter continues from the rebuilt set.
	next := qs.add(&queryEntry{udfPath: "d", args: protocol.EmptyObject()})
	if next.BaseVersion != 2 || next.NewVersion != 3 {
		t.Errorf("post-rebuild add versions = (%d, %d); want (2, 3)", next.BaseVersion, next.NewVersion)
	}
}

func TestQuerySetRebuildEmpty(t *testing.T) {
	qs := newQuerySet()
	a := &queryEntry{udfPath: "a", args: protocol.EmptyObject()}
	qs.add(a)
	qs.remove(a.id)

	if batch := qs.rebuild(); batch != nil {
		t.Errorf("rebuild of empty set = %+v; want nil", batch)
	}
	if qs.version != 0 {
		t.Errorf("version after empty rebuild = %d; want 0", qs.version)
	}
}
