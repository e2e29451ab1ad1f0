package ipc

import (
	"testing"

	"selos/kernel/config"
	"selos/kernel/sel4"
	"selos/kernel/sel4/sel4test"
)

func TestClientCalls(t *testing.T) {
	specs := []struct {
		issue    func(c *Client)
		expLabel uint64
		expArgs  []uint64
	}{
		{
			issue: func(c *Client) {
				c.CreateTask(0x400000, 0x7fff0000, 100, 0x500000)
			},
			expLabel: EventCreateTask,
			expArgs:  []uint64{0x400000, 0x7fff0000, 100, 0x500000},
		},
		{
			issue:    func(c *Client) { c.SwitchTask(42) },
			expLabel: EventSwitchTask,
			expArgs:  []uint64{42},
		},
		{
			issue:    func(c *Client) { c.ExitTask(42) },
			expLabel: EventExitTask,
			expArgs:  []uint64{42},
		},
		{
			issue:    func(c *Client) { c.ExitSystem(1) },
			expLabel: EventExitSystem,
			expArgs:  []uint64{1},
		},
	}

	for specIndex, spec := range specs {
		sim := sel4test.NewKernel()
		c := NewClient(sim, config.ParentEndpoint)

		spec.issue(c)

		if len(sim.Calls) != 1 {
			t.Fatalf("[spec %d] expected 1 endpoint call; got %d", specIndex, len(sim.Calls))
		}
		call := sim.Calls[0]
		if call.EP != config.ParentEndpoint {
			t.Errorf("[spec %d] expected call through endpoint %d; got %d", specIndex, config.ParentEndpoint, call.EP)
		}
		if call.Label != spec.expLabel {
			t.Errorf("[spec %d] expected label 0x%x; got 0x%x", specIndex, spec.expLabel, call.Label)
		}
		if len(call.Args) != len(spec.expArgs) {
			t.Fatalf("[spec %d] expected %d args; got %d", specIndex, len(spec.expArgs), len(call.Args))
		}
		for i, arg := range spec.expArgs {
			if call.Args[i] != arg {
				t.Errorf("[spec %d] expected arg %d to be 0x%x; got 0x%x", specIndex, i, arg, call.Args[i])
			}
		}
	}
}

func TestCreateTaskReturnsToken(t *testing.T) {
	sim := sel4test.NewKernel()
	sim.CallReturn = 7

	c := NewClient(sim, config.ParentEndpoint)
	token, err := c.CreateTask(0x1000, 0x2000, 50, 0)
	if err != nil {
		t.Fatal(err)
	}
	if token != 7 {
		t.Errorf("expected token 7; got %d", token)
	}
}

func TestCallFailurePropagates(t *testing.T) {
	sim := sel4test.NewKernel()
	sim.FailOn["Call"] = sel4.ErrInvalidCapability

	c := NewClient(sim, config.ParentEndpoint)
	if err := c.SwitchTask(1); err != sel4.ErrInvalidCapability {
		t.Errorf("expected ErrInvalidCapability; got %v", err)
	}
}
