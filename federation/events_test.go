package federation

import "testing"

func TestEmitterDeliversInSubscriptionOrder(t *testing.T) {
	e := newEmitter()

	var got []int
	e.On("ping", func(payload interface{}) { got = append(got, 1) })
	e.On("ping", func(payload interface{}) { got = append(got, 2) })
	e.On("ping", func(payload interface{}) { got = append(got, 3) })

	e.Emit("ping", nil)

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("expected handlers in subscription order, got %v", got)
	}
}

func TestEmitterOff(t *testing.T) {
	e := newEmitter()

	calls := 0
	sub := e.On("ping", func(payload interface{}) { calls++ })
	keep := 0
	e.On("ping", func(payload interface{}) { keep++ })

	e.Emit("ping", nil)
	e.Off(sub)
	e.Emit("ping", nil)

	if calls != 1 {
		t.Fatalf("expected removed handler to run once, ran %d times", calls)
	}
	if keep != 2 {
		t.Fatalf("expected remaining handler to run twice, ran %d times", keep)
	}

	// Off on an already-removed or nil handle must be harmless.
	e.Off(sub)
	e.Off(nil)
}

func TestEmitterSynchronousDelivery(t *testing.T) {
	e := newEmitter()

	delivered := false
	e.On("ping", func(payload interface{}) {
		if payload != "payload" {
			t.Fatalf("unexpected payload %v", payload)
		}
		delivered = true
	})

	e.Emit("ping", "payload")
	if !delivered {
		t.Fatal("expected delivery before Emit returned")
	}
}

func TestEmitterEventsAreIndependent(t *testing.T) {
	e := newEmitter()

	pings := 0
	e.On("ping", func(payload interface{}) { pings++ })
	e.Emit("pong", nil)

	if pings != 0 {
		t.Fatalf("handler for ping ran on pong: %d", pings)
	}
}
