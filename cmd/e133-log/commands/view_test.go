package commands

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e133-protocol/e133-go/pkg/log"
)

func TestRunViewFormatsEvents(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	require.NoError(t, RunView(path, log.Filter{}, &buf))
	out := buf.String()

	assert.Contains(t, out, "2026-03-14T09:26:53.589793Z [conn:5f0c2e1a] IN  DEVICE State 192.168.1.20:40112")
	assert.Contains(t, out, "  -> CONNECTED")
	assert.Contains(t, out, "[conn:5f0c2e1a] IN  PDU REQUEST TCP")
	assert.Contains(t, out, "  Sequence: 7  Endpoint: 3")
	assert.Contains(t, out, `  Source: "console"`)
	assert.Contains(t, out, "  Command: GET  PID: 0x0082")
	assert.Contains(t, out, "[conn:udp] OUT PDU RESPONSE UDP")
	assert.Contains(t, out, "  Result: Completed Ok")
	assert.Contains(t, out, "  Duration: 1.500ms")
	assert.Contains(t, out, "OUT CTRL Heartbeat TCP")
	assert.Contains(t, out, "  HEALTHY -> UNHEALTHY")
	assert.Contains(t, out, "  Reason: heartbeat timeout")
	assert.Contains(t, out, "[conn:-] IN  PDU Error UDP")
	assert.Contains(t, out, "  Message: malformed PDU block")
}

func TestRunViewAppliesFilter(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	filter, err := BuildFilter(FilterOptions{Category: "message", Transport: "udp"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RunView(path, filter, &buf))

	assert.Contains(t, buf.String(), "RESPONSE")
	assert.NotContains(t, buf.String(), "REQUEST")
	assert.NotContains(t, buf.String(), "Heartbeat")
}

func TestFormatFrameTruncated(t *testing.T) {
	data := make([]byte, log.MaxFrameData+10)
	event := log.Event{
		Timestamp: testTime,
		Layer:     log.LayerTransport,
		Frame:     log.NewFrameEvent(data),
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)

	assert.Contains(t, buf.String(), "  Size: 522 bytes")
	assert.Contains(t, buf.String(), "(truncated)")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.250us", formatDuration(250*time.Nanosecond))
	assert.Equal(t, "2.500ms", formatDuration(2500*time.Microsecond))
	assert.Equal(t, "1.500s", formatDuration(1500*time.Millisecond))
}

func TestParseFlags(t *testing.T) {
	layer, err := ParseLayerFlag("PDU")
	require.NoError(t, err)
	assert.Equal(t, log.LayerPDU, layer)

	dir, err := ParseDirectionFlag("out")
	require.NoError(t, err)
	assert.Equal(t, log.DirectionOut, dir)

	cat, err := ParseCategoryFlag("Control")
	require.NoError(t, err)
	assert.Equal(t, log.CategoryControl, cat)

	tr, err := ParseTransportFlag("tcp")
	require.NoError(t, err)
	assert.Equal(t, "TCP", tr)

	_, err = ParseLayerFlag("wire")
	assert.Error(t, err)
	_, err = ParseDirectionFlag("sideways")
	assert.Error(t, err)
	_, err = ParseCategoryFlag("misc")
	assert.Error(t, err)
	_, err = ParseTransportFlag("sctp")
	assert.Error(t, err)
}
