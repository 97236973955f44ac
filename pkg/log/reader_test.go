package log

import (
	"bytes"
	"io"
	"testing"
	"time"
)

func encodeStream(t *testing.T, events []Event) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}
	return &buf
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, e)
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, ConnectionID: "udp", Transport: "udp", Direction: DirectionIn, Layer: LayerPDU, Category: CategoryMessage,
			Message: &MessageEvent{Sequence: 1, Endpoint: 1}},
		{Timestamp: base.Add(time.Second), ConnectionID: "s1", Transport: "tcp", Direction: DirectionOut, Layer: LayerTransport, Category: CategoryControl,
			Heartbeat: &HeartbeatEvent{}},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "udp", Transport: "udp", Direction: DirectionOut, Layer: LayerPDU, Category: CategoryMessage,
			Message: &MessageEvent{Type: MessageTypeResponse, Sequence: 1, Endpoint: 2}},
		{Timestamp: base.Add(3 * time.Second), ConnectionID: "s1", Transport: "tcp", Layer: LayerDevice, Category: CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntityConnection, NewState: "CLOSED"}},
	}

	out := DirectionOut
	pdu := LayerPDU
	state := CategoryState
	ep := uint16(2)
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   []int
	}{
		{"all", Filter{}, []int{0, 1, 2, 3}},
		{"connection", Filter{ConnectionID: "s1"}, []int{1, 3}},
		{"direction", Filter{Direction: &out}, []int{1, 2}},
		{"layer", Filter{Layer: &pdu}, []int{0, 2}},
		{"category", Filter{Category: &state}, []int{3}},
		{"transport", Filter{Transport: "udp"}, []int{0, 2}},
		{"endpoint", Filter{Endpoint: &ep}, []int{2}},
		{"time window", Filter{TimeStart: &start, TimeEnd: &end}, []int{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewStreamReader(encodeStream(t, events), tt.filter)
			defer r.Close()
			got := readAll(t, r)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, idx := range tt.want {
				if !got[i].Timestamp.Equal(events[idx].Timestamp) {
					t.Errorf("event %d: got timestamp %v, want %v", i, got[i].Timestamp, events[idx].Timestamp)
				}
			}
		})
	}
}

func TestReaderCorruptStream(t *testing.T) {
	buf := encodeStream(t, []Event{{Timestamp: time.Now(), ConnectionID: "c"}})
	buf.Write([]byte{0xbf, 0x01})

	r := NewStreamReader(buf, Filter{})
	if _, err := r.Next(); err != nil {
		t.Fatalf("first Next failed: %v", err)
	}
	if _, err := r.Next(); err == nil || err == io.EOF {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestNewReaderMissingFile(t *testing.T) {
	if _, err := NewReader("/nonexistent/capture.elog"); err == nil {
		t.Error("expected error for missing file")
	}
}
