package client

import (
	"github.com/benbjohnson/clock"

	"github.com/fluxbase/flux-go/pkg/protocol"
)

// queryEntry is one live entry in the query set: either a durable
// subscription or a one-shot query waiter.
type queryEntry struct {
	id      uint32
	udfPath string
	args    protocol.Value

	// Exactly one of sub and oneShot is set.
	sub     *Subscription
	oneShot chan requestResult

	// timer is the one-shot query deadline, nil for durable subscriptions.
	timer *clock.Timer
}

// querySet is the authoritative mapping from query id to UDF path and args,
// versioned as a unit. Every change is expressed as a ModifyQuerySet message
// whose newVersion is baseVersion+1; on reconnect the version resets to zero
// and the whole set is replayed as one Add batch, because the server has no
// memory of a previous session's subscriptions.
//
// Owned by the client's event loop; no locking.
type querySet struct {
	nextID  uint32
	version uint32
	entries map[uint32]*queryEntry
	order   []uint32 // insertion order, for deterministic rebuild batches
}

func newQuerySet() *querySet {
	return &querySet{entries: make(map[uint32]*queryEntry)}
}

// add inserts a new entry, bumps the version, and returns the Add message to
// put on the wire. The caller sends it only while connected; an unsent Add is
// fine because the next rebuild replays the whole set.
func (qs *querySet) add(entry *queryEntry) *protocol.ModifyQuerySet {
	entry.id = qs.nextID
	qs.nextID++
	qs.entries[entry.id] = entry
	qs.order = append(qs.order, entry.id)

	base := qs.version
	qs.version++
	return protocol.NewModifyQuerySet(base, qs.version, []protocol.QuerySetModification{
		protocol.AddModification(entry.id, entry.udfPath, entry.args),
	})
}

// remove deletes the entry, bumps the version, and returns the Remove
// message. Removing an unknown id returns nil; cancellation is idempotent.
func (qs *querySet) remove(id uint32) (*protocol.ModifyQuerySet, *queryEntry) {
	entry, ok := qs.entries[id]
	if !ok {
		return nil, nil
	}
	delete(qs.entries, id)
	for i, oid := range qs.order {
		if oid == id {
			qs.order = append(qs.order[:i], qs.order[i+1:]...)
			break
		}
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}

	base := qs.version
	qs.version++
	return protocol.NewModifyQuerySet(base, qs.version, []protocol.QuerySetModification{
		protocol.RemoveModification(id),
	}), entry
}

// get returns the live entry for id, if any. Transitions for ids that are no
// longer live are ignored by the caller.
func (qs *querySet) get(id uint32) (*queryEntry, bool) {
	entry, ok := qs.entries[id]
	return entry, ok
}

// rebuild resets the version to zero and returns one batch re-adding every
// live entry, baseVersion 0 and newVersion N. It must be the first
// query-set traffic on a fresh connection. Returns nil when the set is
// empty.
func (qs *querySet) rebuild() *protocol.ModifyQuerySet {
	if len(qs.order) == 0 {
		qs.version = 0
		return nil
	}
	mods := make([]protocol.QuerySetModification, 0, len(qs.order))
	for _, id := range qs.order {
		entry := qs.entries[id]
		mods = append(mods, protocol.AddModification(entry.id, entry.udfPath, entry.args))
	}
	qs.version = uint32(len(mods))
	return protocol.NewModifyQuerySet(0, qs.version, mods)
}

// size returns the number of live entries.
func (qs *querySet) size() int {
	return len(qs.entries)
}

// all returns the live entries in insertion order.
func (qs *querySet) all() []*queryEntry {
	out := make([]*queryEntry, 0, len(qs.order))
	for _, id := range qs.order {
		out = append(out, qs.entries[id])
	}
	return out
}
