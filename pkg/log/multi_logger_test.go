package log

import (
	"testing"
)

func TestMultiLoggerFansOut(t *testing.T) {
	var a, b []Event
	m := NewMultiLogger(
		LoggerFunc(func(e Event) { a = append(a, e) }),
		nil,
		LoggerFunc(func(e Event) { b = append(b, e) }),
		NoopLogger{},
	)

	if m.Len() != 3 {
		t.Errorf("Len: got %d, want 3", m.Len())
	}

	m.Log(Event{ConnectionID: "one"})
	m.Log(Event{ConnectionID: "two"})

	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("got %d and %d events, want 2 each", len(a), len(b))
	}
	if a[1].ConnectionID != "two" || b[0].ConnectionID != "one" {
		t.Errorf("unexpected order: %v %v", a, b)
	}
}
