package sensor

import (
	"context"
	"time"
)

// Config holds reader and power-manager settings.
type Config struct {
	CacheTTL         time.Duration
	WarmupTime       time.Duration
	MaxConcentration int
	MaxParticleCount int
}

// Sensor bundles the typed reader and power manager over one bus handle.
// The process runs exactly one Sensor and exactly one goroutine drives it.
type Sensor struct {
	bus    Bus
	Reader *Reader
	Power  *PowerManager
}

// New wires a sensor over the given bus transport.
func New(b Bus, cfg Config) *Sensor {
	return &Sensor{
		bus:    b,
		Reader: NewReader(b, cfg.CacheTTL, cfg.MaxConcentration, cfg.MaxParticleCount),
		Power:  NewPowerManager(b, cfg.WarmupTime),
	}
}

// Version reads the gain/version register.
func (s *Sensor) Version(ctx context.Context) (int, error) {
	data, err := s.bus.ReadRegister(ctx, RegVersion, 1)
	if err != nil {
		return 0, err
	}
	return int(data[0]), nil
}

// ReadAll takes one atomic sample. See Reader.ReadAll.
func (s *Sensor) ReadAll(ctx context.Context, kind ReadingKind, useCache bool) (*Reading, error) {
	return s.Reader.ReadAll(ctx, kind, useCache)
}

// Sleep delegates to the power manager.
func (s *Sensor) Sleep(ctx context.Context) error { return s.Power.Sleep(ctx) }

// Wake delegates to the power manager.
func (s *Sensor) Wake(ctx context.Context) error { return s.Power.Wake(ctx) }
