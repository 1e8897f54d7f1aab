package client

import (
	"errors"
	"testing"

	"github.com/fluxbase/flux-go/pkg/protocol"
)

func TestRequestTableRegisterAssignsMonotonicIDs(t *testing.T) {
	table := newRequestTable()

	for want := int64(0); want < 5; want++ {
		req := table.register(kindMutation, "messages:send", make(chan requestResult, 1))
		if req.id != want {
			t.Errorf("register id = %d; want %d", req.id, want)
		}
	}
	if table.size() != 5 {
		t.Errorf("size() = %d; want 5", table.size())
	}
}

func TestRequestTableResolve(t *testing.T) {
	table := newRequestTable()
	result := make(chan requestResult, 1)
	req := table.register(kindMutation, "messages:send", result)

	if !table.resolve(req.id, protocol.String("ok")) {
		t.Fatal("resolve returned false for a live request")
	}
	r := <-result
	if r.err != nil {
		t.Fatalf("result err = %v; want nil", r.err)
	}
	if got := r.value.AsString(); got != "ok" {
		t.Errorf("result value = %q; want %q", got, "ok")
	}
	if table.size() != 0 {
		t.Errorf("size() after resolve = %d; want 0", table.size())
	}
}

func TestRequestTableUnknownIDIsNoOp(t *testing.T) {
	table := newRequestTable()

	if table.resolve(42, protocol.Null()) {
		t.Error("resolve(42) = true; want false for unknown id")
	}
	if table.fail(42, ErrTimeout) {
		t.Error("fail(42) = true; want false for unknown id")
	}
}

func TestRequestTableDuplicateResponseDropped(t *testing.T) {
	table := newRequestTable()
	result := make(chan requestResult, 1)
	req := table.register(kindAction, "jobs:run", result)

	table.resolve(req.id, protocol.Number(1))
	if table.resolve(req.id, protocol.Number(2)) {
		t.Error("second resolve = true; want false")
	}
	r := <-result
	if got := r.value.AsNumber(); got != 1 {
		t.Errorf("delivered value = %v; want 1", got)
	}
}

func TestRequestTableFail(t *testing.T) {
	table := newRequestTable()
	result := make(chan requestResult, 1)
	req := table.register(kindMutation, "messages:send", result)

	table.fail(req.id, ErrTimeout)
	r := <-result
	if !errors.Is(r.err, ErrTimeout) {
		t.Errorf("result err = %v; want ErrTimeout", r.err)
	}
}

func TestRequestTableCancelAll(t *testing.T) {
	table := newRequestTable()
	var results []chan requestResult
	for i := 0; i < 3; i++ {
		ch := make(chan requestResult, 1)
		table.register(kindMutation, "messages:send", ch)
		results = append(results, ch)
	}

	table.cancelAll(ErrClientClosed)

	if table.size() != 0 {
		t.Errorf("size() after cancelAll = %d; want 0", table.size())
	}
	for i, ch := range results {
		r := <-ch
		if !errors.Is(r.err, ErrClientClosed) {
			t.Errorf("request %d err = %v; want ErrClientClosed", i, r.err)
		}
	}
}

func TestRequestTableInFlightOrdered(t *testing.T) {
	table := newRequestTable()
	for i := 0; i < 4; i++ {
		table.register(kindMutation, "messages:send", make(chan requestResult, 1))
	}
	table.resolve(1, protocol.Null())

	pending := table.inFlight()
	want := []int64{0, 2, 3}
	if len(pending) != len(want) {
		t.Fatalf("inFlight() returned %d entries; want %d", len(pending), len(want))
	}
	for i, req := range pending {
		if req.id != want[i] {
			t.Errorf("inFlight()[%d].id = %d; want %d", i, req.id, want[i])
		}
	}
}
