// Package interactive provides the interactive command-line interface
// for the E1.33 device.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/e133-protocol/e133-go/pkg/device"
	"github.com/e133-protocol/e133-go/pkg/rdm"
)

// EndpointInfo describes one registered endpoint.
type EndpointInfo struct {
	ID          uint16
	UID         rdm.UID
	Label       string
	Identifying bool
}

// Controller is the device surface the console drives.
type Controller interface {
	Endpoints() []EndpointInfo
	AddEndpoint() (uint16, error)
	RemoveEndpoint(id uint16) error
	Stats() device.StatsSnapshot
	ResetStats()
}

// Console handles interactive mode for e133-device.
type Console struct {
	ctrl Controller
	rl   *readline.Instance
}

// New creates a console reading from the terminal.
func New(ctrl Controller) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "e133> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{ctrl: ctrl, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that coordinates with the readline prompt.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run starts the interactive command loop. It calls cancel when the
// user quits or closes the input.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	out := c.rl.Stdout()
	printHelp(out)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}

		if !Execute(c.ctrl, line, out) {
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line against ctrl and reports whether the
// console should keep running.
func Execute(ctrl Controller, line string, out io.Writer) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		printHelp(out)
	case "list", "ls", "l":
		cmdList(ctrl, out)
	case "add", "a":
		cmdAdd(ctrl, args, out)
	case "remove", "rm":
		cmdRemove(ctrl, args, out)
	case "stats", "s":
		cmdStats(ctrl, out)
	case "reset-stats":
		ctrl.ResetStats()
		fmt.Fprintln(out, "Counters reset.")
	case "quit", "exit", "q":
		return false
	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help')\n", cmd)
	}
	return true
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `Commands:
  list                 List endpoints
  add [count]          Add endpoints (default 1)
  remove <id>...       Remove endpoints
  stats                Show TCP session statistics
  reset-stats          Reset session counters
  help                 Show this help
  quit                 Exit
`)
}

func cmdList(ctrl Controller, out io.Writer) {
	infos := ctrl.Endpoints()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No endpoints.")
		return
	}
	fmt.Fprintf(out, "%-6s %-14s %-9s %s\n", "ID", "UID", "IDENTIFY", "LABEL")
	for _, info := range infos {
		identify := "off"
		if info.Identifying {
			identify = "on"
		}
		fmt.Fprintf(out, "%-6d %-14s %-9s %s\n", info.ID, info.UID, identify, info.Label)
	}
}

func cmdAdd(ctrl Controller, args []string, out io.Writer) {
	count := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Fprintf(out, "Invalid count: %s\n", args[0])
			return
		}
		count = n
	}

	for i := 0; i < count; i++ {
		id, err := ctrl.AddEndpoint()
		if err != nil {
			fmt.Fprintf(out, "Failed to add endpoint: %v\n", err)
			return
		}
		fmt.Fprintf(out, "Added endpoint %d\n", id)
	}
}

func cmdRemove(ctrl Controller, args []string, out io.Writer) {
	if len(args) == 0 {
		fmt.Fprintln(out, "Usage: remove <id>...")
		return
	}
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 16)
		if err != nil {
			fmt.Fprintf(out, "Invalid endpoint id: %s\n", arg)
			continue
		}
		if err := ctrl.RemoveEndpoint(uint16(id)); err != nil {
			fmt.Fprintf(out, "Failed to remove endpoint %d: %v\n", id, err)
			continue
		}
		fmt.Fprintf(out, "Removed endpoint %d\n", id)
	}
}

func cmdStats(ctrl Controller, out io.Writer) {
	s := ctrl.Stats()
	fmt.Fprintf(out, "Connection events:  %d\n", s.ConnectionEvents)
	fmt.Fprintf(out, "Unhealthy events:   %d\n", s.UnhealthyEvents)
	if s.Connected() {
		fmt.Fprintf(out, "Controller:         %s\n", s.PeerAddress)
	} else {
		fmt.Fprintln(out, "Controller:         none")
	}
}
