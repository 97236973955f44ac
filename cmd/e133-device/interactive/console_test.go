package interactive

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e133-protocol/e133-go/pkg/device"
	"github.com/e133-protocol/e133-go/pkg/rdm"
)

type fakeController struct {
	infos   []EndpointInfo
	next    uint16
	addErr  error
	removed []uint16
	stats   device.StatsSnapshot
	resets  int
}

func (f *fakeController) Endpoints() []EndpointInfo { return f.infos }

func (f *fakeController) AddEndpoint() (uint16, error) {
	if f.addErr != nil {
		return 0, f.addErr
	}
	f.next++
	return f.next, nil
}

func (f *fakeController) RemoveEndpoint(id uint16) error {
	if id == 0 {
		return errors.New("the root endpoint cannot be removed")
	}
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeController) Stats() device.StatsSnapshot { return f.stats }

func (f *fakeController) ResetStats() { f.resets++ }

func run(t *testing.T, ctrl Controller, line string) (string, bool) {
	t.Helper()
	var out bytes.Buffer
	keep := Execute(ctrl, line, &out)
	return out.String(), keep
}

func TestExecuteList(t *testing.T) {
	ctrl := &fakeController{infos: []EndpointInfo{
		{ID: 0, UID: rdm.NewUID(0x7a70, 1), Label: "root"},
		{ID: 1, UID: rdm.NewUID(0x7a70, 2), Label: "Dummy E1.33 Endpoint", Identifying: true},
	}}

	out, keep := run(t, ctrl, "list")
	assert.True(t, keep)
	assert.Contains(t, out, "ID     UID")
	assert.Contains(t, out, "0      7a70:00000001  off       root")
	assert.Contains(t, out, "1      7a70:00000002  on        Dummy E1.33 Endpoint")

	out, _ = run(t, &fakeController{}, "ls")
	assert.Equal(t, "No endpoints.\n", out)
}

func TestExecuteAdd(t *testing.T) {
	ctrl := &fakeController{}

	out, _ := run(t, ctrl, "add 3")
	assert.Equal(t, "Added endpoint 1\nAdded endpoint 2\nAdded endpoint 3\n", out)

	out, _ = run(t, ctrl, "add")
	assert.Equal(t, "Added endpoint 4\n", out)

	out, _ = run(t, ctrl, "add zero")
	assert.Equal(t, "Invalid count: zero\n", out)

	ctrl.addErr = errors.New("no free endpoint ids")
	out, _ = run(t, ctrl, "add 2")
	assert.Equal(t, "Failed to add endpoint: no free endpoint ids\n", out)
}

func TestExecuteRemove(t *testing.T) {
	ctrl := &fakeController{}

	out, _ := run(t, ctrl, "remove 4 x 0 9")
	assert.Contains(t, out, "Removed endpoint 4")
	assert.Contains(t, out, "Invalid endpoint id: x")
	assert.Contains(t, out, "Failed to remove endpoint 0: the root endpoint cannot be removed")
	assert.Contains(t, out, "Removed endpoint 9")
	assert.Equal(t, []uint16{4, 9}, ctrl.removed)

	out, _ = run(t, ctrl, "rm")
	assert.Equal(t, "Usage: remove <id>...\n", out)
}

func TestExecuteStats(t *testing.T) {
	ctrl := &fakeController{stats: device.StatsSnapshot{
		ConnectionEvents: 3,
		UnhealthyEvents:  1,
		PeerAddress:      netip.MustParseAddrPort("10.0.0.5:41000"),
	}}

	out, _ := run(t, ctrl, "stats")
	assert.Contains(t, out, "Connection events:  3")
	assert.Contains(t, out, "Unhealthy events:   1")
	assert.Contains(t, out, "Controller:         10.0.0.5:41000")

	out, _ = run(t, &fakeController{}, "stats")
	assert.Contains(t, out, "Controller:         none")

	out, _ = run(t, ctrl, "reset-stats")
	assert.Equal(t, "Counters reset.\n", out)
	assert.Equal(t, 1, ctrl.resets)
}

func TestExecuteControl(t *testing.T) {
	ctrl := &fakeController{}

	out, keep := run(t, ctrl, "   ")
	assert.True(t, keep)
	assert.Empty(t, out)

	out, keep = run(t, ctrl, "HELP")
	assert.True(t, keep)
	assert.Contains(t, out, "reset-stats")

	out, keep = run(t, ctrl, "frobnicate")
	assert.True(t, keep)
	assert.Equal(t, "Unknown command: frobnicate (type 'help')\n", out)

	for _, quit := range []string{"quit", "exit", "q"} {
		_, keep = run(t, ctrl, quit)
		require.False(t, keep, quit)
	}
}
