package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/pldm-stack/pldm-go/internal/sim"
	"github.com/pldm-stack/pldm-go/pkg/platform"
	"github.com/pldm-stack/pldm-go/pkg/terminus"
	"github.com/pldm-stack/pldm-go/pkg/wire"
)

// console is the interactive command loop of pldm-monitor.
type console struct {
	mgr    *platform.Manager
	fabric *sim.Fabric
	rl     *readline.Instance
}

func newConsole(mgr *platform.Manager, fabric *sim.Fabric) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pldm> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &console{mgr: mgr, fabric: fabric, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
func (c *console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

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
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "list", "ls":
			c.cmdList()

		case "read", "r":
			c.cmdRead(args)

		case "start":
			c.cmdStart(args)

		case "stop":
			c.cmdStop(args)

		case "avail":
			c.cmdAvail(ctx, args)

		case "inject":
			c.cmdInject(args)

		case "status":
			c.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
PLDM Monitor Commands:
  Monitoring:
    list               - List registered termini and their sensors
    read <tid> [id]    - Show cached readings (all sensors or one)
    start <tid>        - Start sensor polling for a terminus
    stop <tid>         - Stop sensor polling for a terminus
    avail <tid> <0|1>  - Mark a terminus's endpoint unavailable/available
    status             - Show engine status

  Simulation:
    inject <eid> <hex> - Queue a CPER event on a simulated terminus

  General:
    help               - Show this help
    quit               - Exit`)
}

func (c *console) parseTID(s string) (terminus.TID, bool) {
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid TID: %s\n", s)
		return 0, false
	}
	return terminus.TID(n), true
}

func (c *console) cmdList() {
	tids := c.mgr.Registry().TIDs()
	if len(tids) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No termini registered")
		return
	}

	for _, tid := range tids {
		t, err := c.mgr.Registry().Get(tid)
		if err != nil {
			continue
		}
		fmt.Fprintf(c.rl.Stdout(), "TID %d  %s (EID %d), %d sensors\n",
			tid, t.Name(), t.EID(), t.SensorCount())
		for _, s := range t.Sensors() {
			fmt.Fprintf(c.rl.Stdout(), "    [%d] %s (%s)\n", s.ID(), s.Name(), s.Unit())
		}
	}
}

func (c *console) cmdRead(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: read <tid> [sensor-id]")
		return
	}
	tid, ok := c.parseTID(args[0])
	if !ok {
		return
	}

	t, err := c.mgr.Registry().Get(tid)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}

	sensors := t.Sensors()
	if len(args) > 1 {
		id, err := strconv.ParseUint(args[1], 0, 16)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid sensor ID: %s\n", args[1])
			return
		}
		s, err := t.Sensor(terminus.SensorID(id))
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
			return
		}
		sensors = []*terminus.NumericSensor{s}
	}

	for _, s := range sensors {
		r := s.Reading()
		if r.Available() {
			fmt.Fprintf(c.rl.Stdout(), "  [%d] %s = %.2f %s (%s, %s)\n",
				s.ID(), s.Name(), r.Value, s.Unit(), r.State, r.UpdatedAt.Format("15:04:05"))
		} else {
			fmt.Fprintf(c.rl.Stdout(), "  [%d] %s = n/a (%s)\n", s.ID(), s.Name(), r.State)
		}
	}
}

func (c *console) cmdStart(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: start <tid>")
		return
	}
	if tid, ok := c.parseTID(args[0]); ok {
		c.mgr.StartSensorPolling(tid)
		fmt.Fprintln(c.rl.Stdout(), "OK")
	}
}

func (c *console) cmdStop(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: stop <tid>")
		return
	}
	if tid, ok := c.parseTID(args[0]); ok {
		c.mgr.StopSensorPolling(tid)
		fmt.Fprintln(c.rl.Stdout(), "OK")
	}
}

func (c *console) cmdAvail(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: avail <tid> <0|1>")
		return
	}
	tid, ok := c.parseTID(args[0])
	if !ok {
		return
	}
	available := args[1] == "1"

	ep, found := c.mgr.TerminusManager().Endpoint(tid)
	if !found {
		fmt.Fprintf(c.rl.Stdout(), "TID %d has no endpoint mapping\n", tid)
		return
	}
	c.mgr.UpdateMctpEndpointAvailability(ctx, ep, available)
	fmt.Fprintln(c.rl.Stdout(), "OK")
}

func (c *console) cmdInject(args []string) {
	if c.fabric == nil {
		fmt.Fprintln(c.rl.Stdout(), "Injection needs simulation mode")
		return
	}
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: inject <eid> <hex-bytes>")
		return
	}

	eid, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid EID: %s\n", args[0])
		return
	}
	t, ok := c.fabric.Terminus(uint8(eid))
	if !ok {
		fmt.Fprintf(c.rl.Stdout(), "No simulated terminus at EID %d\n", eid)
		return
	}

	body, err := parseHexBytes(args[1])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid hex data: %v\n", err)
		return
	}

	id := t.QueueEvent(wire.ClassCPEREvent, body)
	fmt.Fprintf(c.rl.Stdout(), "Queued CPER event 0x%04x (%d bytes); pending: %d\n",
		id, len(body), t.PendingEvents())
}

func (c *console) cmdStatus() {
	out := c.rl.Stdout()
	tids := c.mgr.Registry().TIDs()

	fmt.Fprintln(out, "\nEngine Status")
	fmt.Fprintln(out, "-------------------------------------------")
	fmt.Fprintf(out, "  Registered termini: %d\n", len(tids))
	for _, tid := range tids {
		timer := "disarmed"
		if c.mgr.SensorManager().TimerArmed(tid) {
			timer = "armed"
		}
		task := "idle"
		if c.mgr.SensorManager().TaskRunning(tid) {
			task = "polling"
		}
		line := fmt.Sprintf("  TID %d: timer %s, task %s", tid, timer, task)
		if cc, ok := c.mgr.SensorManager().LastCompletion(tid); ok {
			line += fmt.Sprintf(", last pass %s", cc)
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "  Dispatch failures: %d\n", c.mgr.EventManager().DispatchFailures())
	if c.fabric != nil {
		fmt.Fprintf(out, "  Simulated requests: %d\n", c.fabric.Requests())
	}
	fmt.Fprintln(out)
}

// parseHexBytes parses "deadbeef" or "de:ad:be:ef" into bytes.
func parseHexBytes(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, ":", "")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		n, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(n)
	}
	return out, nil
}
