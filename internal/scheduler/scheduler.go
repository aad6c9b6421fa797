package scheduler

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smourya/pm25-monitor/internal/aqi"
	"github.com/smourya/pm25-monitor/internal/protocol"
	"github.com/smourya/pm25-monitor/internal/sensor"
	"github.com/smourya/pm25-monitor/internal/state"
)

// MinFrequency is the floor for the sampling cadence.
const MinFrequency = 5 * time.Second

// Sampler is the sensor surface the scheduler drives. The scheduler's single
// loop goroutine is the sole owner of the underlying bus handle.
type Sampler interface {
	ReadAll(ctx context.Context, kind sensor.ReadingKind, useCache bool) (*sensor.Reading, error)
	Sleep(ctx context.Context) error
	Wake(ctx context.Context) error
}

// Sink receives sampled readings and prunes retained history.
type Sink interface {
	InsertReading(r *sensor.Reading) (int64, error)
	DeleteReadingsBefore(cutoff time.Time, location string) (int64, error)
}

// Publisher is the optional readings stream.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// LatestSetter is the optional latest-sample store.
type LatestSetter interface {
	SetLatest(ctx context.Context, location string, sample *state.LatestSample) error
}

// Config is one run's sampling configuration, read-only for the run.
type Config struct {
	Location  string
	Kind      sensor.ReadingKind
	Frequency time.Duration
	Retention time.Duration // 0 = unlimited
	Powersave bool
	Settle    time.Duration // wait after a power-save wake before reading
	LockPath  string
}

// Validate enforces the cadence floor and kind label.
func (c *Config) Validate() error {
	if c.Location == "" {
		return fmt.Errorf("location must not be empty")
	}
	if c.Kind != sensor.ReadingStandard && c.Kind != sensor.ReadingAtmospheric {
		return fmt.Errorf("unknown reading kind %q", c.Kind)
	}
	if c.Frequency < MinFrequency {
		return fmt.Errorf("frequency %s below minimum %s", c.Frequency, MinFrequency)
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative")
	}
	if c.LockPath == "" {
		return fmt.Errorf("lock path must not be empty")
	}
	return nil
}

// State is the scheduler lifecycle phase, for logging and status reporting.
type State string

const (
	StateIdle     State = "idle"
	StateLocked   State = "locked"
	StateRunning  State = "running"
	StateDraining State = "draining"
	StateStopped  State = "stopped"
)

// Scheduler runs the duty-cycled sampling loop: wake (in power-save), read,
// persist, prune, sleep until the next tick. A failed cycle is logged and the
// loop keeps running; only lock contention at startup is fatal.
type Scheduler struct {
	cfg      Config
	sampler  Sampler
	sink     Sink
	producer Publisher    // nil disables the readings stream
	latest   LatestSetter // nil disables the latest-sample store
	logger   *log.Entry

	st            State
	readingsTaken int
	lastReading   time.Time
	startedAt     time.Time
	now           func() time.Time
}

// New creates a scheduler. producer and latest may be nil.
func New(cfg Config, sampler Sampler, sink Sink, producer Publisher, latest LatestSetter) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		sampler:  sampler,
		sink:     sink,
		producer: producer,
		latest:   latest,
		logger: log.WithFields(log.Fields{
			"component": "scheduler",
			"location":  cfg.Location,
			"kind":      cfg.Kind,
		}),
		st:  StateIdle,
		now: time.Now,
	}
}

// State returns the current lifecycle phase.
func (s *Scheduler) State() State { return s.st }

// Run executes the sampling loop until ctx is cancelled. It acquires the
// exclusive sensor lock first and releases it on every exit path. Blocking
// points (inter-cycle sleep, settle delay) are interruptible, so shutdown
// latency is bounded by the delay in progress.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid schedule config: %w", err)
	}

	guard, err := AcquireExclusive(s.cfg.LockPath)
	if err != nil {
		return err
	}
	defer guard.Release()
	s.st = StateLocked

	s.startedAt = s.now()
	s.logger.WithFields(log.Fields{
		"frequency":  s.cfg.Frequency.String(),
		"retention":  retentionLabel(s.cfg.Retention),
		"powersave":  s.cfg.Powersave,
		"lock_token": guard.Token,
	}).Info("scheduler started")
	s.st = StateRunning

	for {
		select {
		case <-ctx.Done():
			return s.drain()
		default:
		}

		cycleStart := s.now()
		s.cycle(ctx)
		s.prune()

		elapsed := s.now().Sub(cycleStart)
		wait := s.cfg.Frequency - elapsed
		if wait <= 0 {
			s.logger.WithFields(log.Fields{
				"elapsed":   elapsed.String(),
				"frequency": s.cfg.Frequency.String(),
			}).Warn("cycle took longer than the sampling interval")
			continue
		}
		if !sleepCtx(ctx, wait) {
			return s.drain()
		}
	}
}

// cycle takes one sample and forwards it. Any failure is logged with a
// structured line and the loop continues; a cycle is never skipped silently.
func (s *Scheduler) cycle(ctx context.Context) {
	if s.cfg.Powersave {
		if err := s.sampler.Wake(ctx); err != nil {
			s.logFailure("wake", err)
			return
		}
		// Let readings settle before sampling; the wake is re-slept even if
		// the read fails so power draw stays bounded.
		defer func() {
			if err := s.sampler.Sleep(context.Background()); err != nil {
				s.logFailure("sleep", err)
			}
		}()
		if !sleepCtx(ctx, s.cfg.Settle) {
			return
		}
	}

	reading, err := s.sampler.ReadAll(ctx, s.cfg.Kind, true)
	if err != nil {
		s.logFailure("read", err)
		return
	}
	reading.Location = s.cfg.Location

	rowID, err := s.sink.InsertReading(reading)
	if err != nil {
		s.logFailure("persist", err)
		return
	}

	s.readingsTaken++
	s.lastReading = s.now()
	s.forward(ctx, reading)

	s.logger.WithFields(log.Fields{
		"row_id": rowID,
		"pm2_5":  reading.PM2p5,
		"pm10":   reading.PM10,
	}).Info("reading stored")
}

// forward publishes the reading to the optional stream and latest-sample
// store. Best effort: failures are logged, the sample is already persisted.
func (s *Scheduler) forward(ctx context.Context, reading *sensor.Reading) {
	if s.producer == nil && s.latest == nil {
		return
	}

	msg := protocol.FromReading(reading)
	if s.producer != nil {
		data, err := msg.Encode()
		if err == nil {
			err = s.producer.Publish(ctx, reading.Location, data)
		}
		if err != nil {
			s.logger.WithField("stage", "publish").Warnf("readings stream publish failed: %v", err)
		}
	}
	if s.latest != nil {
		sample := &state.LatestSample{Reading: msg, UpdatedAt: s.now().UTC()}
		if result, err := computeIndex(reading); err == nil {
			sample.AQI = result
		}
		if err := s.latest.SetLatest(ctx, reading.Location, sample); err != nil {
			s.logger.WithField("stage", "latest").Warnf("latest-sample update failed: %v", err)
		}
	}
}

// computeIndex derives the AQI for a sampled reading, picking the table
// family that matches the reading's bank.
func computeIndex(reading *sensor.Reading) (*aqi.Result, error) {
	method := aqi.MethodStandard
	if reading.Kind == sensor.ReadingAtmospheric {
		method = aqi.MethodAtmospheric
	}
	pm10 := float64(reading.PM10)
	return aqi.Compute(float64(reading.PM2p5), &pm10, method)
}

// prune deletes sink rows older than the retention window. No-op when
// retention is unlimited.
func (s *Scheduler) prune() {
	if s.cfg.Retention <= 0 {
		return
	}
	cutoff := s.now().UTC().Add(-s.cfg.Retention)
	deleted, err := s.sink.DeleteReadingsBefore(cutoff, s.cfg.Location)
	if err != nil {
		s.logFailure("prune", err)
		return
	}
	if deleted > 0 {
		s.logger.WithFields(log.Fields{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("pruned retained readings")
	}
}

func (s *Scheduler) drain() error {
	s.st = StateDraining
	s.logger.WithFields(log.Fields{
		"readings_taken": s.readingsTaken,
		"runtime":        s.now().Sub(s.startedAt).Round(time.Second).String(),
	}).Info("scheduler stopping")
	s.st = StateStopped
	return nil
}

func (s *Scheduler) logFailure(stage string, err error) {
	s.logger.WithFields(log.Fields{
		"stage": stage,
		"error": err.Error(),
	}).Error("cycle failed")
}

// sleepCtx sleeps for d or until ctx is cancelled; false means interrupted.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func retentionLabel(d time.Duration) string {
	if d <= 0 {
		return "unlimited"
	}
	return d.String()
}
