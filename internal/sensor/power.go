package sensor

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// PowerManager drives the sensor's sleep/wake register and tracks warmup.
// State flips only on a confirmed register write; a failed command leaves the
// recorded state unchanged.
type PowerManager struct {
	bus    Bus
	logger *log.Entry
	warmup time.Duration

	asleep   bool
	lastWake time.Time // zero if the sensor was never woken
	now      func() time.Time
}

// NewPowerManager creates a power manager with the given warmup duration.
func NewPowerManager(b Bus, warmup time.Duration) *PowerManager {
	return &PowerManager{
		bus:    b,
		logger: log.WithField("component", "power"),
		warmup: warmup,
		now:    time.Now,
	}
}

// Sleep puts the sensor into low-power mode.
func (p *PowerManager) Sleep(ctx context.Context) error {
	if err := p.bus.WriteRegister(ctx, RegPowerMode, []byte{PowerModeSleep}); err != nil {
		return &PowerManagementError{Op: "sleep", Err: err}
	}
	p.asleep = true
	p.logger.Debug("sensor entered sleep mode")
	return nil
}

// Wake brings the sensor out of low-power mode and starts the warmup timer.
func (p *PowerManager) Wake(ctx context.Context) error {
	if err := p.bus.WriteRegister(ctx, RegPowerMode, []byte{PowerModeWake}); err != nil {
		return &PowerManagementError{Op: "wake", Err: err}
	}
	p.asleep = false
	p.lastWake = p.now()
	p.logger.Debug("sensor woke from sleep mode")
	return nil
}

// IsSleeping reports the recorded power state.
func (p *PowerManager) IsSleeping() bool { return p.asleep }

// IsWarmedUp reports whether readings are settled: true once the warmup
// duration has elapsed since the last wake, or unconditionally if the sensor
// was never put to sleep. This is a timer-gated check, not a blocking wait.
func (p *PowerManager) IsWarmedUp() bool {
	if p.lastWake.IsZero() {
		return true
	}
	return p.now().Sub(p.lastWake) >= p.warmup
}

// WarmupRemaining returns how long until readings are settled, zero if they
// already are.
func (p *PowerManager) WarmupRemaining() time.Duration {
	if p.lastWake.IsZero() {
		return 0
	}
	remaining := p.warmup - p.now().Sub(p.lastWake)
	if remaining < 0 {
		return 0
	}
	return remaining
}
