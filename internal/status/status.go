package status

import "fmt"

// Status is the lifecycle state of an atelier. The numeric codes are the
// stored representation and must not be renumbered.
type Status int

const (
	Created       Status = 0
	InAuction     Status = 10
	Assigned      Status = 20
	InProgress    Status = 30
	Complete      Status = 50
	Cancelled     Status = 60
	Deleted       Status = 70
	ErrorOnCreate Status = 700
	ErrorOnMux    Status = 800
	ErrorOnAccept Status = 900
	ErrorUnknown  Status = 999
)

// Event is a lifecycle trigger fed to Transition.
type Event string

const (
	EventOpenAuction Event = "open_auction"
	EventAssign      Event = "assign"
	EventStart       Event = "start"
	EventComplete    Event = "complete"
	EventCancel      Event = "cancel"
	EventDelete      Event = "delete"
	EventFailCreate  Event = "fail_create"
	EventFailMux     Event = "fail_mux"
	EventFailAccept  Event = "fail_accept"
	EventFailUnknown Event = "fail_unknown"
)

var labels = map[Status]string{
	Created:       "created",
	InAuction:     "in_auction",
	Assigned:      "assigned",
	InProgress:    "in_progress",
	Complete:      "complete",
	Cancelled:     "cancelled",
	Deleted:       "deleted",
	ErrorOnCreate: "error_on_create",
	ErrorOnMux:    "error_on_mux",
	ErrorOnAccept: "error_on_accept",
	ErrorUnknown:  "error_unknown",
}

var errorStates = map[Status]struct{}{
	ErrorOnCreate: {},
	ErrorOnMux:    {},
	ErrorOnAccept: {},
	ErrorUnknown:  {},
}

var terminalStates = map[Status]struct{}{
	Complete:      {},
	Cancelled:     {},
	Deleted:       {},
	ErrorOnCreate: {},
	ErrorOnMux:    {},
	ErrorOnAccept: {},
	ErrorUnknown:  {},
}

// transitions enumerates every legal (state, event) pair. Anything absent is
// illegal. Soft-delete is only legal once escrow has been resolved, so the
// delete edges start from the settled states, not the active ones.
var transitions = map[Status]map[Event]Status{
	Created: {
		EventOpenAuction: InAuction,
		EventFailCreate:  ErrorOnCreate,
		EventFailMux:     ErrorOnMux,
		EventFailUnknown: ErrorUnknown,
	},
	InAuction: {
		EventAssign:      Assigned,
		EventCancel:      Cancelled,
		EventFailCreate:  ErrorOnCreate,
		EventFailMux:     ErrorOnMux,
		EventFailAccept:  ErrorOnAccept,
		EventFailUnknown: ErrorUnknown,
	},
	Assigned: {
		EventStart:       InProgress,
		EventComplete:    Complete,
		EventCancel:      Cancelled,
		EventFailMux:     ErrorOnMux,
		EventFailUnknown: ErrorUnknown,
	},
	InProgress: {
		EventComplete:    Complete,
		EventCancel:      Cancelled,
		EventFailMux:     ErrorOnMux,
		EventFailUnknown: ErrorUnknown,
	},
	Complete:      {EventDelete: Deleted},
	Cancelled:     {EventDelete: Deleted},
	ErrorOnCreate: {EventDelete: Deleted},
	ErrorOnMux:    {EventDelete: Deleted},
	ErrorOnAccept: {EventDelete: Deleted},
	ErrorUnknown:  {EventDelete: Deleted},
}

// Transition returns the successor state for (current, event) and whether the
// pair is legal. It is pure: callers persist the result and append history.
func Transition(current Status, event Event) (Status, bool) {
	edges, ok := transitions[current]
	if !ok {
		return current, false
	}
	next, ok := edges[event]
	return next, ok
}

// Known reports whether code is a defined status.
func Known(code int) bool {
	_, ok := labels[Status(code)]
	return ok
}

// IsTerminal reports whether the review lifecycle is over for s. Terminal
// states admit no lifecycle events; soft-delete for audit hiding is the one
// remaining edge.
func (s Status) IsTerminal() bool {
	_, ok := terminalStates[s]
	return ok
}

// IsError reports whether s is an error terminal.
func (s Status) IsError() bool {
	_, ok := errorStates[s]
	return ok
}

// IsActive reports whether s is a live, non-terminal state.
func (s Status) IsActive() bool {
	return !s.IsTerminal()
}

// Label returns the canonical lower_snake name for s.
func (s Status) Label() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

func (s Status) String() string { return s.Label() }
