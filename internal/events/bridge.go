package events

import "encoding/json"

// WireEvent is the JSON-over-the-wire rendering of an Event, used by any
// transport bridge (websocket, SSE, TUI) that needs a serializable form
// instead of the concrete Go type. Adapted from the teacher's
// event_bridge.go type-switch-to-message pattern, generalized from
// "convert to a Bubble Tea message" to "convert to a JSON envelope".
type WireEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ToWire converts an Event into its JSON envelope.
func ToWire(e Event) WireEvent {
	return WireEvent{Type: e.EventType(), Data: e}
}

// MarshalJSON renders the event as {"type": "...", "data": {...}}.
func MarshalJSON(e Event) ([]byte, error) {
	return json.Marshal(ToWire(e))
}

// JSONBridge is a Listener that forwards each event's wire form to a sink
// function. The websocket endpoint subscribes its own ListenerFunc around
// ToWire, and the trace log writes through Bus's trace writer, so neither
// goes through JSONBridge.
type JSONBridge struct {
	Sink func(WireEvent)
}

func (b *JSONBridge) OnEvent(e Event) {
	if b.Sink == nil {
		return
	}
	b.Sink(ToWire(e))
}
