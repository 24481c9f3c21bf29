package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	stateOff     State = "Off"
	stateOn      State = "On"
	stateRunning State = "Running"

	eventPower Event = "Power"
	eventStart Event = "Start"
	eventStop  Event = "Stop"
)

func simpleTable() Table {
	return NewTable().
		On(stateOff, eventPower, stateOn).
		On(stateOn, eventPower, stateOff).
		On(stateOn, eventStart, stateRunning).
		On(stateRunning, eventStop, stateOn).
		On(stateRunning, eventPower, stateOff)
}

func TestMachineTransitions(t *testing.T) {
	m := NewMachine(simpleTable(), stateOff)

	require.True(t, m.Ingest(eventPower))
	require.Equal(t, stateOn, m.Current())

	require.True(t, m.Ingest(eventStart))
	require.Equal(t, stateRunning, m.Current())

	// Start again while Running has no transition registered: unchanged.
	require.False(t, m.Ingest(eventStart))
	require.Equal(t, stateRunning, m.Current())

	require.True(t, m.Ingest(eventStop))
	require.Equal(t, stateOn, m.Current())

	require.True(t, m.Ingest(eventPower))
	require.Equal(t, stateOff, m.Current())
}

func TestMachineWithNoTransitions(t *testing.T) {
	m := NewMachine(NewTable(), stateOff)
	require.False(t, m.Ingest(eventPower))
	require.Equal(t, stateOff, m.Current())
}
