package event

import (
	"encoding/json"
	"fmt"
)

// JSONCodec is the default codec. Its payloads are readable in the journal.
type JSONCodec struct{}

func (JSONCodec) Encode(ev *Event) ([]byte, error) {
	if ev == nil || !ev.Kind.valid() {
		return nil, fmt.Errorf("encode: %w", ErrMalformedEvent)
	}
	return json.Marshal(ev)
}

func (JSONCodec) Decode(payload []byte) (*Event, error) {
	ev := &Event{}
	if err := json.Unmarshal(payload, ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if !ev.Kind.valid() {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformedEvent, ev.Kind)
	}
	return ev, nil
}
