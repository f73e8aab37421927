package status

import "testing"

func TestLegalPath(t *testing.T) {
	steps := []struct {
		from  Status
		event Event
		want  Status
	}{
		{Created, EventOpenAuction, InAuction},
		{InAuction, EventAssign, Assigned},
		{Assigned, EventStart, InProgress},
		{InProgress, EventComplete, Complete},
	}
	for _, s := range steps {
		got, ok := Transition(s.from, s.event)
		if !ok {
			t.Fatalf("%s --%s--> expected legal", s.from, s.event)
		}
		if got != s.want {
			t.Fatalf("%s --%s--> got %s want %s", s.from, s.event, got, s.want)
		}
	}
}

func TestTerminalStatesOnlyAllowDelete(t *testing.T) {
	terminals := []Status{Complete, Cancelled, ErrorOnCreate, ErrorOnMux, ErrorOnAccept, ErrorUnknown}
	lifecycleEvents := []Event{EventOpenAuction, EventAssign, EventStart, EventComplete, EventCancel, EventFailUnknown}
	for _, st := range terminals {
		if !st.IsTerminal() {
			t.Fatalf("%s should be terminal", st)
		}
		for _, ev := range lifecycleEvents {
			if _, ok := Transition(st, ev); ok {
				t.Fatalf("transition out of terminal %s via %s should be illegal", st, ev)
			}
		}
		if next, ok := Transition(st, EventDelete); !ok || next != Deleted {
			t.Fatalf("delete from settled %s should be legal", st)
		}
	}
}

func TestDeleteIllegalWhileEscrowAttached(t *testing.T) {
	for _, st := range []Status{Created, InAuction, Assigned, InProgress} {
		if _, ok := Transition(st, EventDelete); ok {
			t.Fatalf("delete from active %s should be illegal", st)
		}
	}
	if _, ok := Transition(Deleted, EventDelete); ok {
		t.Fatal("delete from deleted should be illegal")
	}
}

func TestCancelOnlyBeforeComplete(t *testing.T) {
	for _, st := range []Status{InAuction, Assigned, InProgress} {
		if _, ok := Transition(st, EventCancel); !ok {
			t.Fatalf("cancel from %s should be legal", st)
		}
	}
	if _, ok := Transition(Complete, EventCancel); ok {
		t.Fatalf("cancel from complete should be illegal")
	}
}

func TestErrorPredicates(t *testing.T) {
	if Cancelled.IsError() || Complete.IsError() || Deleted.IsError() {
		t.Fatalf("non-error terminals flagged as error")
	}
	for _, st := range []Status{ErrorOnCreate, ErrorOnMux, ErrorOnAccept, ErrorUnknown} {
		if !st.IsError() || !st.IsTerminal() {
			t.Fatalf("%s should be an error terminal", st)
		}
	}
	if !InAuction.IsActive() || Complete.IsActive() {
		t.Fatalf("active predicate wrong")
	}
}

func TestAssignOnlyFromInAuction(t *testing.T) {
	for _, st := range []Status{Created, Assigned, InProgress, Complete, Cancelled} {
		if _, ok := Transition(st, EventAssign); ok {
			t.Fatalf("assign from %s should be illegal", st)
		}
	}
}

func TestKnownCodes(t *testing.T) {
	for _, code := range []int{0, 10, 20, 30, 50, 60, 70, 700, 800, 900, 999} {
		if !Known(code) {
			t.Fatalf("code %d should be known", code)
		}
	}
	if Known(40) || Known(-1) {
		t.Fatalf("unexpected known code")
	}
}
