package trigger

import (
	"testing"
	"time"

	"github.com/insteonplm/meshd/pkg/insteon/address"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
	"github.com/insteonplm/meshd/pkg/insteon/schema"
)

func TestDispatchFiresMostRecentMatchLIFO(t *testing.T) {
	r := NewRegistry()
	dev := address.New(0x1A, 0x2B, 0x3C)
	var fired []string

	r.Add(&Trigger{
		Device: dev, CommandName: "get_engine_version",
		Fire: func(frame.Incoming) { fired = append(fired, "first") },
		Name: "init",
	})
	r.Add(&Trigger{
		Device: dev, CommandName: "get_engine_version",
		Fire: func(frame.Incoming) { fired = append(fired, "second") },
		Name: "init",
	})

	in := frame.Incoming{Source: dev, Type: schema.MsgDirectAck}
	ok := r.Dispatch(dev, "get_engine_version", in)
	if !ok {
		t.Fatal("expected a trigger to fire")
	}
	if len(fired) != 1 || fired[0] != "second" {
		t.Fatalf("expected most-recently-queued trigger to fire first, got %v", fired)
	}
	if r.Len() != 1 {
		t.Fatalf("expected one trigger remaining, got %d", r.Len())
	}
}

func TestTriggerFiresAtMostOnce(t *testing.T) {
	r := NewRegistry()
	dev := address.New(0x1A, 0x2B, 0x3C)
	count := 0

	r.Add(&Trigger{
		Device: dev, CommandName: "light_status_request",
		Fire: func(frame.Incoming) { count++ },
	})

	in := frame.Incoming{Source: dev}
	r.Dispatch(dev, "light_status_request", in)
	r.Dispatch(dev, "light_status_request", in)

	if count != 1 {
		t.Fatalf("expected exactly one fire, got %d", count)
	}
}

func TestMatchersMustAllEqual(t *testing.T) {
	r := NewRegistry()
	dev := address.New(0x1A, 0x2B, 0x3C)
	fired := false

	r.Add(&Trigger{
		Device: dev, CommandName: "direct_ack",
		Matchers: map[string]byte{"cmd_2": 0x01},
		Fire:     func(frame.Incoming) { fired = true },
	})

	in := frame.Incoming{Source: dev, Cmd2: 0x02}
	ok := r.Dispatch(dev, "direct_ack", in)
	if ok || fired {
		t.Fatal("expected no match when matcher byte differs")
	}

	in.Cmd2 = 0x01
	ok = r.Dispatch(dev, "direct_ack", in)
	if !ok || !fired {
		t.Fatal("expected match when matcher byte equals")
	}
}

func TestRemoveStateMachineDropsTaggedTriggers(t *testing.T) {
	r := NewRegistry()
	dev := address.New(0x1A, 0x2B, 0x3C)

	r.Add(&Trigger{Device: dev, CommandName: "a", Name: "scan", Fire: func(frame.Incoming) {}})
	r.Add(&Trigger{Device: dev, CommandName: "b", Name: "other", Fire: func(frame.Incoming) {}})

	r.RemoveStateMachine("scan")

	if r.Len() != 1 {
		t.Fatalf("expected one trigger remaining, got %d", r.Len())
	}
	ok := r.Dispatch(dev, "a", frame.Incoming{Source: dev})
	if ok {
		t.Fatal("expected removed trigger to not fire")
	}
}

func TestDispatchIgnoresOtherDevices(t *testing.T) {
	r := NewRegistry()
	devA := address.New(0x1A, 0x2B, 0x3C)
	devB := address.New(0x4D, 0x5E, 0x6F)
	fired := false

	r.Add(&Trigger{Device: devA, CommandName: "on", Fire: func(frame.Incoming) { fired = true }})

	ok := r.Dispatch(devB, "on", frame.Incoming{Source: devB})
	if ok || fired {
		t.Fatal("expected trigger scoped to devA to not fire for devB")
	}
}

func TestExpireBeforeFiresOnTimeoutForPastDeadlinesOnly(t *testing.T) {
	r := NewRegistry()
	dev := address.New(0x1A, 0x2B, 0x3C)
	now := time.Now()

	var expired, alive bool
	r.Add(&Trigger{
		Device: dev, CommandName: "get_engine_version", Name: "expired",
		Fire: func(frame.Incoming) {}, Deadline: now.Add(-time.Second),
		OnTimeout: func() { expired = true },
	})
	r.Add(&Trigger{
		Device: dev, CommandName: "light_status_request", Name: "alive",
		Fire: func(frame.Incoming) {}, Deadline: now.Add(time.Hour),
		OnTimeout: func() { alive = true },
	})
	r.Add(&Trigger{
		Device: dev, CommandName: "on", Name: "never-expires",
		Fire: func(frame.Incoming) {},
	})

	r.ExpireBefore(now)

	if !expired {
		t.Fatal("expected the past-deadline trigger's OnTimeout to fire")
	}
	if alive {
		t.Fatal("expected the future-deadline trigger to not fire")
	}
	if r.Len() != 2 {
		t.Fatalf("want 2 triggers remaining (future-deadline + never-expires), got %d", r.Len())
	}
}

func TestExpireBeforeIgnoresZeroDeadline(t *testing.T) {
	r := NewRegistry()
	dev := address.New(0x1A, 0x2B, 0x3C)
	fired := false

	r.Add(&Trigger{Device: dev, CommandName: "on", Fire: func(frame.Incoming) {}, OnTimeout: func() { fired = true }})
	r.ExpireBefore(time.Now().Add(time.Hour))

	if fired {
		t.Fatal("expected a zero-value Deadline to never expire")
	}
	if r.Len() != 1 {
		t.Fatalf("want trigger still pending, got %d", r.Len())
	}
}
