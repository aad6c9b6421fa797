package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/smourya/pm25-monitor/internal/sensor"
	"github.com/smourya/pm25-monitor/internal/state"
)

type fakeSampler struct {
	reading  *sensor.Reading
	readErr  error
	wakeErr  error
	sleepErr error
	ops      []string
}

func (f *fakeSampler) ReadAll(ctx context.Context, kind sensor.ReadingKind, useCache bool) (*sensor.Reading, error) {
	f.ops = append(f.ops, "read")
	if f.readErr != nil {
		return nil, f.readErr
	}
	r := *f.reading
	r.Kind = kind
	return &r, nil
}

func (f *fakeSampler) Wake(ctx context.Context) error {
	f.ops = append(f.ops, "wake")
	return f.wakeErr
}

func (f *fakeSampler) Sleep(ctx context.Context) error {
	f.ops = append(f.ops, "sleep")
	return f.sleepErr
}

type fakeSink struct {
	inserted   []*sensor.Reading
	insertErr  error
	onInsert   func()
	lastCutoff time.Time
	lastLoc    string
	deletes    int
	deleted    int64
}

func (f *fakeSink) InsertReading(r *sensor.Reading) (int64, error) {
	if f.onInsert != nil {
		f.onInsert()
	}
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, r)
	return int64(len(f.inserted)), nil
}

func (f *fakeSink) DeleteReadingsBefore(cutoff time.Time, location string) (int64, error) {
	f.deletes++
	f.lastCutoff = cutoff
	f.lastLoc = location
	return f.deleted, nil
}

type fakeProducer struct {
	keys     []string
	payloads [][]byte
	err      error
}

func (f *fakeProducer) Publish(ctx context.Context, key string, value []byte) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.payloads = append(f.payloads, value)
	return nil
}

type fakeLatest struct {
	samples map[string]*state.LatestSample
}

func (f *fakeLatest) SetLatest(ctx context.Context, location string, sample *state.LatestSample) error {
	if f.samples == nil {
		f.samples = make(map[string]*state.LatestSample)
	}
	f.samples[location] = sample
	return nil
}

func testReading() *sensor.Reading {
	return &sensor.Reading{
		Timestamp: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Kind:      sensor.ReadingAtmospheric,
		PM1p0:     4,
		PM2p5:     9,
		PM10:      15,
	}
}

func testSchedulerConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Location:  "office",
		Kind:      sensor.ReadingAtmospheric,
		Frequency: MinFrequency,
		LockPath:  filepath.Join(t.TempDir(), "sensor.lock"),
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty location", func(c *Config) { c.Location = "" }, true},
		{"unknown kind", func(c *Config) { c.Kind = "bogus" }, true},
		{"frequency below floor", func(c *Config) { c.Frequency = 4 * time.Second }, true},
		{"negative retention", func(c *Config) { c.Retention = -time.Hour }, true},
		{"empty lock path", func(c *Config) { c.LockPath = "" }, true},
		{"retention set", func(c *Config) { c.Retention = 24 * time.Hour }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testSchedulerConfig(t)
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestAcquireExclusive_Contention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensor.lock")

	guard, err := AcquireExclusive(path)
	if err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}
	if guard.Token == "" {
		t.Error("Expected a non-empty lock token")
	}

	_, err = AcquireExclusive(path)
	var contention *LockContentionError
	if !errors.As(err, &contention) {
		t.Fatalf("Expected LockContentionError, got %v", err)
	}
	if contention.Path != path {
		t.Errorf("Expected path %s in error, got %s", path, contention.Path)
	}

	if err := guard.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	guard2, err := AcquireExclusive(path)
	if err != nil {
		t.Fatalf("Reacquire after release failed: %v", err)
	}
	guard2.Release()
}

func TestCycle_PersistsReading(t *testing.T) {
	sampler := &fakeSampler{reading: testReading()}
	sink := &fakeSink{}
	sched := New(testSchedulerConfig(t), sampler, sink, nil, nil)

	sched.cycle(context.Background())

	if len(sink.inserted) != 1 {
		t.Fatalf("Expected 1 inserted reading, got %d", len(sink.inserted))
	}
	if sink.inserted[0].Location != "office" {
		t.Errorf("Expected location office, got %s", sink.inserted[0].Location)
	}
	if sched.readingsTaken != 1 {
		t.Errorf("Expected readingsTaken 1, got %d", sched.readingsTaken)
	}
}

func TestCycle_ReadFailureContinues(t *testing.T) {
	sampler := &fakeSampler{readErr: errors.New("sensor not responding")}
	sink := &fakeSink{}
	sched := New(testSchedulerConfig(t), sampler, sink, nil, nil)

	sched.cycle(context.Background())

	if len(sink.inserted) != 0 {
		t.Errorf("Expected no inserts after read failure, got %d", len(sink.inserted))
	}
	if sched.readingsTaken != 0 {
		t.Errorf("Expected readingsTaken 0, got %d", sched.readingsTaken)
	}
}

func TestCycle_PowersaveOrdering(t *testing.T) {
	sampler := &fakeSampler{reading: testReading()}
	sink := &fakeSink{}
	cfg := testSchedulerConfig(t)
	cfg.Powersave = true
	sched := New(cfg, sampler, sink, nil, nil)

	sched.cycle(context.Background())

	want := []string{"wake", "read", "sleep"}
	if len(sampler.ops) != len(want) {
		t.Fatalf("Expected ops %v, got %v", want, sampler.ops)
	}
	for i := range want {
		if sampler.ops[i] != want[i] {
			t.Fatalf("Expected ops %v, got %v", want, sampler.ops)
		}
	}
}

func TestCycle_PowersaveSleepsAfterFailedRead(t *testing.T) {
	sampler := &fakeSampler{readErr: errors.New("sensor not responding")}
	cfg := testSchedulerConfig(t)
	cfg.Powersave = true
	sched := New(cfg, sampler, &fakeSink{}, nil, nil)

	sched.cycle(context.Background())

	if len(sampler.ops) == 0 || sampler.ops[len(sampler.ops)-1] != "sleep" {
		t.Errorf("Expected the sensor to be re-slept after a failed read, ops: %v", sampler.ops)
	}
}

func TestCycle_WakeFailureSkipsRead(t *testing.T) {
	sampler := &fakeSampler{wakeErr: errors.New("i2c write failed")}
	cfg := testSchedulerConfig(t)
	cfg.Powersave = true
	sched := New(cfg, sampler, &fakeSink{}, nil, nil)

	sched.cycle(context.Background())

	if len(sampler.ops) != 1 || sampler.ops[0] != "wake" {
		t.Errorf("Expected only the failed wake, ops: %v", sampler.ops)
	}
}

func TestCycle_ForwardsToStreamAndLatest(t *testing.T) {
	sampler := &fakeSampler{reading: testReading()}
	producer := &fakeProducer{}
	latest := &fakeLatest{}
	sched := New(testSchedulerConfig(t), sampler, &fakeSink{}, producer, latest)

	sched.cycle(context.Background())

	if len(producer.keys) != 1 || producer.keys[0] != "office" {
		t.Errorf("Expected one publish keyed by location, got %v", producer.keys)
	}
	sample, ok := latest.samples["office"]
	if !ok {
		t.Fatal("Expected latest sample for office")
	}
	if sample.Reading == nil || sample.Reading.PM2p5 != 9 {
		t.Errorf("Unexpected latest sample: %+v", sample)
	}
	if sample.AQI == nil || sample.AQI.Level != "Good" {
		t.Errorf("Expected latest sample to carry a Good index, got %+v", sample.AQI)
	}
}

func TestCycle_PublishFailureStillPersists(t *testing.T) {
	sampler := &fakeSampler{reading: testReading()}
	sink := &fakeSink{}
	producer := &fakeProducer{err: errors.New("broker unreachable")}
	sched := New(testSchedulerConfig(t), sampler, sink, producer, nil)

	sched.cycle(context.Background())

	if len(sink.inserted) != 1 {
		t.Errorf("Expected reading to persist despite publish failure, got %d inserts", len(sink.inserted))
	}
	if sched.readingsTaken != 1 {
		t.Errorf("Expected readingsTaken 1, got %d", sched.readingsTaken)
	}
}

func TestPrune_RetentionCutoff(t *testing.T) {
	sink := &fakeSink{deleted: 3}
	cfg := testSchedulerConfig(t)
	cfg.Retention = 24 * time.Hour
	sched := New(cfg, &fakeSampler{reading: testReading()}, sink, nil, nil)

	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return fixed }

	sched.prune()

	if sink.deletes != 1 {
		t.Fatalf("Expected 1 delete call, got %d", sink.deletes)
	}
	wantCutoff := fixed.Add(-24 * time.Hour)
	if !sink.lastCutoff.Equal(wantCutoff) {
		t.Errorf("Expected cutoff %v, got %v", wantCutoff, sink.lastCutoff)
	}
	if sink.lastLoc != "office" {
		t.Errorf("Expected location office, got %s", sink.lastLoc)
	}
}

func TestPrune_UnlimitedRetention(t *testing.T) {
	sink := &fakeSink{}
	sched := New(testSchedulerConfig(t), &fakeSampler{reading: testReading()}, sink, nil, nil)

	sched.prune()

	if sink.deletes != 0 {
		t.Errorf("Expected no delete calls with unlimited retention, got %d", sink.deletes)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testSchedulerConfig(t)
	cfg.Frequency = time.Second
	sched := New(cfg, &fakeSampler{reading: testReading()}, &fakeSink{}, nil, nil)

	if err := sched.Run(context.Background()); err == nil {
		t.Error("Expected error for sub-minimum frequency")
	}
}

func TestRun_LockContention(t *testing.T) {
	cfg := testSchedulerConfig(t)
	guard, err := AcquireExclusive(cfg.LockPath)
	if err != nil {
		t.Fatalf("Setup acquire failed: %v", err)
	}
	defer guard.Release()

	sched := New(cfg, &fakeSampler{reading: testReading()}, &fakeSink{}, nil, nil)
	err = sched.Run(context.Background())

	var contention *LockContentionError
	if !errors.As(err, &contention) {
		t.Errorf("Expected LockContentionError, got %v", err)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &fakeSink{}
	sched := New(testSchedulerConfig(t), &fakeSampler{reading: testReading()}, sink, nil, nil)

	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sink.inserted) != 0 {
		t.Errorf("Expected no cycles, got %d inserts", len(sink.inserted))
	}
	if sched.State() != StateStopped {
		t.Errorf("Expected stopped state, got %s", sched.State())
	}
}

func TestRun_StopsAfterCancelMidLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &fakeSink{}
	sink.onInsert = cancel // stop after the first persisted reading

	sched := New(testSchedulerConfig(t), &fakeSampler{reading: testReading()}, sink, nil, nil)

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	if len(sink.inserted) != 1 {
		t.Errorf("Expected exactly 1 reading before shutdown, got %d", len(sink.inserted))
	}
	if sched.State() != StateStopped {
		t.Errorf("Expected stopped state, got %s", sched.State())
	}
}
