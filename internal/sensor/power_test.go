package sensor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPowerManager_SleepAndWake(t *testing.T) {
	bus := newFakeBus()
	power := NewPowerManager(bus, 30*time.Second)

	if power.IsSleeping() {
		t.Error("Expected sensor to start awake")
	}

	if err := power.Sleep(context.Background()); err != nil {
		t.Fatalf("Sleep failed: %v", err)
	}
	if !power.IsSleeping() {
		t.Error("Expected sensor to be asleep")
	}

	if err := power.Wake(context.Background()); err != nil {
		t.Fatalf("Wake failed: %v", err)
	}
	if power.IsSleeping() {
		t.Error("Expected sensor to be awake")
	}

	if len(bus.writes) != 2 {
		t.Fatalf("Expected 2 register writes, got %d", len(bus.writes))
	}
	if bus.writes[0].reg != RegPowerMode || bus.writes[0].data[0] != PowerModeSleep {
		t.Errorf("Unexpected sleep write: %+v", bus.writes[0])
	}
	if bus.writes[1].reg != RegPowerMode || bus.writes[1].data[0] != PowerModeWake {
		t.Errorf("Unexpected wake write: %+v", bus.writes[1])
	}
}

func TestPowerManager_FailedWriteLeavesStateUnchanged(t *testing.T) {
	bus := newFakeBus()
	power := NewPowerManager(bus, 30*time.Second)

	bus.writeErr = errors.New("i2c write failed")
	err := power.Sleep(context.Background())

	var pmErr *PowerManagementError
	if !errors.As(err, &pmErr) {
		t.Fatalf("Expected PowerManagementError, got %v", err)
	}
	if pmErr.Op != "sleep" {
		t.Errorf("Expected op sleep, got %s", pmErr.Op)
	}
	if power.IsSleeping() {
		t.Error("Expected state to remain awake after failed sleep command")
	}

	err = power.Wake(context.Background())
	if !errors.As(err, &pmErr) {
		t.Fatalf("Expected PowerManagementError, got %v", err)
	}
	if !power.IsWarmedUp() {
		t.Error("Expected failed wake not to start the warmup timer")
	}
}

func TestPowerManager_WarmupGating(t *testing.T) {
	bus := newFakeBus()
	power := NewPowerManager(bus, 30*time.Second)

	clock := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	power.now = func() time.Time { return clock }

	// Never woken: readings are considered settled.
	if !power.IsWarmedUp() {
		t.Error("Expected warmed up before any wake")
	}
	if power.WarmupRemaining() != 0 {
		t.Errorf("Expected zero remaining, got %v", power.WarmupRemaining())
	}

	if err := power.Wake(context.Background()); err != nil {
		t.Fatalf("Wake failed: %v", err)
	}

	clock = clock.Add(10 * time.Second)
	if power.IsWarmedUp() {
		t.Error("Expected warmup still in progress after 10s")
	}
	if remaining := power.WarmupRemaining(); remaining != 20*time.Second {
		t.Errorf("Expected 20s remaining, got %v", remaining)
	}

	clock = clock.Add(20 * time.Second)
	if !power.IsWarmedUp() {
		t.Error("Expected warmed up after full warmup duration")
	}
	if power.WarmupRemaining() != 0 {
		t.Errorf("Expected zero remaining, got %v", power.WarmupRemaining())
	}
}
