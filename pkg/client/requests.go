package client

import (
	"sort"

	"github.com/benbjohnson/clock"

	"github.com/fluxbase/flux-go/pkg/protocol"
)

// requestKind tags an outstanding one-shot operation.
type requestKind string

const (
	kindMutation requestKind = "mutation"
	kindAction   requestKind = "action"
)

// requestResult is what a pending request completes with: a value or an
// error, never both.
type requestResult struct {
	value protocol.Value
	err   error
}

// pendingRequest is one outstanding one-shot operation. The caller holds
// only the result channel; the table owns the entry. msg keeps the encoded
// request so it can be retransmitted after a reconnect.
type pendingRequest struct {
	id      int64
	kind    requestKind
	udfPath string
	result  chan requestResult
	msg     protocol.ClientMessage
	timer   *clock.Timer
}

// requestTable correlates one-shot request ids with their pending result
// slots. Request ids are process-unique and monotonically increasing; they
// are never reused across reconnects within a client's lifetime.
//
// The table is owned by the client's event loop and is never accessed
// concurrently, so it needs no locking.
type requestTable struct {
	nextID  int64
	pending map[int64]*pendingRequest
}

func newRequestTable() *requestTable {
	return &requestTable{pending: make(map[int64]*pendingRequest)}
}

// register allocates the next request id and a pending slot for it.
// At most one entry per id can ever exist because ids are never reused.
func (t *requestTable) register(kind requestKind, udfPath string, result chan requestResult) *pendingRequest {
	req := &pendingRequest{
		id:      t.nextID,
		kind:    kind,
		udfPath: udfPath,
		result:  result,
	}
	t.nextID++
	t.pending[req.id] = req
	return req
}

// lookup returns the entry without removing it.
func (t *requestTable) lookup(id int64) (*pendingRequest, bool) {
	req, ok := t.pending[id]
	return req, ok
}

// inFlight returns the pending entries ordered by request id, oldest first.
func (t *requestTable) inFlight() []*pendingRequest {
	ids := make([]int64, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*pendingRequest, len(ids))
	for i, id := range ids {
		out[i] = t.pending[id]
	}
	return out
}

// resolve completes the request with a value. Resolving an unknown id is a
// no-op; duplicate or late server responses are silently dropped.
func (t *requestTable) resolve(id int64, value protocol.Value) bool {
	req, ok := t.take(id)
	if !ok {
		return false
	}
	req.result <- requestResult{value: value}
	return true
}

// fail completes the request with an error. Failing an unknown id is a
// no-op.
func (t *requestTable) fail(id int64, err error) bool {
	req, ok := t.take(id)
	if !ok {
		return false
	}
	req.result <- requestResult{err: err}
	return true
}

// cancelAll fails every pending request with the given error. Used on
// dispose.
func (t *requestTable) cancelAll(err error) {
	for id := range t.pending {
		t.fail(id, err)
	}
}

// take removes and returns the entry, stopping its deadline timer.
func (t *requestTable) take(id int64) (*pendingRequest, bool) {
	req, ok := t.pending[id]
	if !ok {
		return nil, false
	}
	delete(t.pending, id)
	if req.timer != nil {
		req.timer.Stop()
	}
	return req, true
}

// size returns the number of outstanding requests.
func (t *requestTable) size() int {
	return len(t.pending)
}
