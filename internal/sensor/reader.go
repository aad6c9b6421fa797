package sensor

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Bus is the register transport the reader pulls values through.
type Bus interface {
	ReadRegister(ctx context.Context, reg byte, length int) ([]byte, error)
	WriteRegister(ctx context.Context, reg byte, data []byte) error
}

type cacheEntry struct {
	value      int
	capturedAt time.Time
}

// Reader exposes typed accessors over the bus, one register each. Every
// accessor takes a useCache flag; a cached value younger than the TTL is
// returned without touching the bus. The cache is private to the single
// owning goroutine and needs no locking.
type Reader struct {
	bus    Bus
	logger *log.Entry

	cacheTTL         time.Duration
	maxConcentration int
	maxParticleCount int

	cache map[byte]cacheEntry
	now   func() time.Time
}

// NewReader creates a reader with the given cache TTL and validation ceilings.
func NewReader(b Bus, cacheTTL time.Duration, maxConcentration, maxParticleCount int) *Reader {
	return &Reader{
		bus:              b,
		logger:           log.WithField("component", "reader"),
		cacheTTL:         cacheTTL,
		maxConcentration: maxConcentration,
		maxParticleCount: maxParticleCount,
		cache:            make(map[byte]cacheEntry),
		now:              time.Now,
	}
}

// PM1p0Standard returns the PM1.0 concentration in standard units (μg/m³).
func (r *Reader) PM1p0Standard(ctx context.Context, useCache bool) (int, error) {
	return r.readConcentration(ctx, RegPM1p0Standard, useCache)
}

// PM2p5Standard returns the PM2.5 concentration in standard units (μg/m³).
func (r *Reader) PM2p5Standard(ctx context.Context, useCache bool) (int, error) {
	return r.readConcentration(ctx, RegPM2p5Standard, useCache)
}

// PM10Standard returns the PM10 concentration in standard units (μg/m³).
func (r *Reader) PM10Standard(ctx context.Context, useCache bool) (int, error) {
	return r.readConcentration(ctx, RegPM10Standard, useCache)
}

// PM1p0Atmospheric returns the PM1.0 concentration under atmospheric environment (μg/m³).
func (r *Reader) PM1p0Atmospheric(ctx context.Context, useCache bool) (int, error) {
	return r.readConcentration(ctx, RegPM1p0Atmospheric, useCache)
}

// PM2p5Atmospheric returns the PM2.5 concentration under atmospheric environment (μg/m³).
func (r *Reader) PM2p5Atmospheric(ctx context.Context, useCache bool) (int, error) {
	return r.readConcentration(ctx, RegPM2p5Atmospheric, useCache)
}

// PM10Atmospheric returns the PM10 concentration under atmospheric environment (μg/m³).
func (r *Reader) PM10Atmospheric(ctx context.Context, useCache bool) (int, error) {
	return r.readConcentration(ctx, RegPM10Atmospheric, useCache)
}

// Particles0p3 returns the count of particles ≥0.3μm per 0.1 L air.
func (r *Reader) Particles0p3(ctx context.Context, useCache bool) (int, error) {
	return r.readParticleCount(ctx, RegParticles0p3, useCache)
}

// Particles0p5 returns the count of particles ≥0.5μm per 0.1 L air.
func (r *Reader) Particles0p5(ctx context.Context, useCache bool) (int, error) {
	return r.readParticleCount(ctx, RegParticles0p5, useCache)
}

// Particles1p0 returns the count of particles ≥1.0μm per 0.1 L air.
func (r *Reader) Particles1p0(ctx context.Context, useCache bool) (int, error) {
	return r.readParticleCount(ctx, RegParticles1p0, useCache)
}

// Particles2p5 returns the count of particles ≥2.5μm per 0.1 L air.
func (r *Reader) Particles2p5(ctx context.Context, useCache bool) (int, error) {
	return r.readParticleCount(ctx, RegParticles2p5, useCache)
}

// Particles5p0 returns the count of particles ≥5.0μm per 0.1 L air.
func (r *Reader) Particles5p0(ctx context.Context, useCache bool) (int, error) {
	return r.readParticleCount(ctx, RegParticles5p0, useCache)
}

// Particles10 returns the count of particles ≥10μm per 0.1 L air.
func (r *Reader) Particles10(ctx context.Context, useCache bool) (int, error) {
	return r.readParticleCount(ctx, RegParticles10, useCache)
}

// ReadAll aggregates every accessor into one atomic Reading. Any failed
// register read fails the whole sample. The burst passes useCache through, so
// registers shared between callers inside one cycle are read once.
func (r *Reader) ReadAll(ctx context.Context, kind ReadingKind, useCache bool) (*Reading, error) {
	var concRegs [3]byte
	switch kind {
	case ReadingAtmospheric:
		concRegs = [3]byte{RegPM1p0Atmospheric, RegPM2p5Atmospheric, RegPM10Atmospheric}
	case ReadingStandard:
		concRegs = [3]byte{RegPM1p0Standard, RegPM2p5Standard, RegPM10Standard}
	default:
		return nil, fmt.Errorf("unknown reading kind %q", kind)
	}

	reading := &Reading{
		Timestamp: r.now().UTC(),
		Kind:      kind,
	}

	conc := [3]*int{&reading.PM1p0, &reading.PM2p5, &reading.PM10}
	for i, reg := range concRegs {
		v, err := r.readConcentration(ctx, reg, useCache)
		if err != nil {
			return nil, err
		}
		*conc[i] = v
	}

	bins := []struct {
		reg byte
		dst *int
	}{
		{RegParticles0p3, &reading.Particles0p3},
		{RegParticles0p5, &reading.Particles0p5},
		{RegParticles1p0, &reading.Particles1p0},
		{RegParticles2p5, &reading.Particles2p5},
		{RegParticles5p0, &reading.Particles5p0},
		{RegParticles10, &reading.Particles10},
	}
	for _, bin := range bins {
		v, err := r.readParticleCount(ctx, bin.reg, useCache)
		if err != nil {
			return nil, err
		}
		*bin.dst = v
	}

	return reading, nil
}

// ClearCache drops all cached register values. Called on disconnect.
func (r *Reader) ClearCache() {
	r.cache = make(map[byte]cacheEntry)
}

func (r *Reader) readConcentration(ctx context.Context, reg byte, useCache bool) (int, error) {
	return r.readWord(ctx, reg, useCache, r.maxConcentration)
}

func (r *Reader) readParticleCount(ctx context.Context, reg byte, useCache bool) (int, error) {
	return r.readWord(ctx, reg, useCache, r.maxParticleCount)
}

func (r *Reader) readWord(ctx context.Context, reg byte, useCache bool, ceiling int) (int, error) {
	if useCache {
		if entry, ok := r.cache[reg]; ok && r.now().Sub(entry.capturedAt) < r.cacheTTL {
			return entry.value, nil
		}
	}

	data, err := r.bus.ReadRegister(ctx, reg, 2)
	if err != nil {
		// Transport errors propagate undecorated.
		return 0, err
	}

	value := int(data[0])<<8 | int(data[1])
	if err := r.validate(reg, value, ceiling); err != nil {
		return 0, err
	}

	r.cache[reg] = cacheEntry{value: value, capturedAt: r.now()}
	return value, nil
}

// validate rejects negative values and flags implausibly high ones. A high
// reading is logged and kept: real pollution spikes must still be recorded.
func (r *Reader) validate(reg byte, value, ceiling int) error {
	if value < 0 {
		return &CalibrationError{Register: reg, Value: value, Reason: "negative value"}
	}
	if value > ceiling {
		r.logger.WithFields(log.Fields{
			"register": fmt.Sprintf("0x%02X", reg),
			"value":    value,
			"ceiling":  ceiling,
		}).Warn("reading above expected ceiling")
	}
	return nil
}
