package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e133-protocol/e133-go/pkg/log"
	"github.com/e133-protocol/e133-go/pkg/rdm"
)

var testTime = time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.elog")

	logger, err := log.NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())

	return path
}

func sessionEvents() []log.Event {
	cc := rdm.GetCommand
	pid := uint16(0x0082)
	code := rdm.CompletedOK
	took := 1500 * time.Microsecond
	return []log.Event{
		{
			Timestamp:    testTime,
			ConnectionID: "5f0c2e1a-9b7d-4c1e-8a52-3d9f61b0c7aa",
			Direction:    log.DirectionIn,
			Layer:        log.LayerDevice,
			Category:     log.CategoryState,
			RemoteAddr:   "192.168.1.20:40112",
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityConnection,
				NewState: "CONNECTED",
			},
		},
		{
			Timestamp:    testTime.Add(10 * time.Millisecond),
			ConnectionID: "5f0c2e1a-9b7d-4c1e-8a52-3d9f61b0c7aa",
			Direction:    log.DirectionIn,
			Layer:        log.LayerPDU,
			Category:     log.CategoryMessage,
			Transport:    "TCP",
			RemoteAddr:   "192.168.1.20:40112",
			Message: &log.MessageEvent{
				Type:         log.MessageTypeRequest,
				Sequence:     7,
				Endpoint:     3,
				SourceName:   "console",
				CommandClass: &cc,
				ParamID:      &pid,
			},
		},
		{
			Timestamp:    testTime.Add(12 * time.Millisecond),
			ConnectionID: "udp",
			Direction:    log.DirectionOut,
			Layer:        log.LayerPDU,
			Category:     log.CategoryMessage,
			Transport:    "UDP",
			RemoteAddr:   "192.168.1.20:40112",
			Message: &log.MessageEvent{
				Type:           log.MessageTypeResponse,
				Sequence:       7,
				Endpoint:       3,
				ResponseCode:   &code,
				ProcessingTime: &took,
			},
		},
		{
			Timestamp:    testTime.Add(time.Second),
			ConnectionID: "5f0c2e1a-9b7d-4c1e-8a52-3d9f61b0c7aa",
			Direction:    log.DirectionOut,
			Layer:        log.LayerTransport,
			Category:     log.CategoryControl,
			Transport:    "TCP",
			Heartbeat:    &log.HeartbeatEvent{Sequence: 2},
		},
		{
			Timestamp:    testTime.Add(3 * time.Second),
			ConnectionID: "5f0c2e1a-9b7d-4c1e-8a52-3d9f61b0c7aa",
			Direction:    log.DirectionIn,
			Layer:        log.LayerDevice,
			Category:     log.CategoryState,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityHealth,
				OldState: "HEALTHY",
				NewState: "UNHEALTHY",
				Reason:   "heartbeat timeout",
			},
		},
		{
			Timestamp: testTime.Add(4 * time.Second),
			Direction: log.DirectionIn,
			Layer:     log.LayerPDU,
			Category:  log.CategoryError,
			Transport: "UDP",
			Error: &log.ErrorEventData{
				Layer:   log.LayerPDU,
				Message: "malformed PDU block",
				Context: "decode",
			},
		},
	}
}

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	reader, err := log.NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	var buf bytes.Buffer
	require.NoError(t, export(reader, "jsonl", &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &first))
	assert.Equal(t, "TCP", first["Transport"])
	msg, ok := first["Message"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 7, msg["Sequence"])
	assert.EqualValues(t, 3, msg["Endpoint"])
}

func TestExportToCSV(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	reader, err := log.NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	var buf bytes.Buffer
	require.NoError(t, export(reader, "csv", &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 7)

	assert.Equal(t, []string{"timestamp", "connection_id", "direction", "layer", "category", "transport", "remote_addr", "type", "endpoint", "sequence"}, records[0])
	assert.Equal(t, "2026-03-14T09:26:53.599793Z", records[2][0])
	assert.Equal(t, []string{"IN", "PDU", "MESSAGE", "TCP", "192.168.1.20:40112", "REQUEST", "3", "7"}, records[2][2:])
	assert.Equal(t, "Heartbeat", records[4][7])
	assert.Equal(t, "", records[4][8])
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	reader, err := log.NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	err = export(reader, "xml", &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown format")
}

func TestRunExportToFile(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	require.NoError(t, RunExport(path, "jsonl", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 6, strings.Count(string(data), "\n"))
}

func TestRunExportMissingFile(t *testing.T) {
	err := RunExport(filepath.Join(t.TempDir(), "missing.elog"), "jsonl", "")
	assert.ErrorContains(t, err, "failed to open log file")
}
