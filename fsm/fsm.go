// Package fsm is a tiny table-driven finite state machine used to drive
// the sender and receiver sides of transport.HandshakeProto. An event that
// has no transition registered for the current state leaves the state
// unchanged, mirroring the catch-all arm of the original state-transition
// macro this is modeled on.
package fsm

// State and Event are opaque comparable identifiers supplied by the
// caller; transport defines its own concrete state/event constants.
type State string
type Event string

type key struct {
	state State
	event Event
}

// Table is a transition table: (state, event) -> next state.
type Table map[key]State

// NewTable returns an empty transition table.
func NewTable() Table {
	return make(Table)
}

// On registers a transition: being in `from` and ingesting `event` moves
// the machine to `to`.
func (t Table) On(from State, event Event, to State) Table {
	t[key{from, event}] = to
	return t
}

// Machine is a single running instance of a state machine bound to a
// Table.
type Machine struct {
	table   Table
	current State
}

// NewMachine constructs a Machine starting in initial.
func NewMachine(table Table, initial State) *Machine {
	return &Machine{table: table, current: initial}
}

// Current returns the machine's current state.
func (m *Machine) Current() State {
	return m.current
}

// Ingest processes event against the current state. If no transition is
// registered for (current, event), the state is left unchanged, and
// Ingest reports false.
func (m *Machine) Ingest(event Event) bool {
	next, ok := m.table[key{m.current, event}]
	if !ok {
		return false
	}
	m.current = next
	return true
}
