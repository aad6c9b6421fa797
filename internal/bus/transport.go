package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Device is the raw register-transaction surface of the bus handle. A write
// buffer is sent first, then the read buffer is filled; either may be empty.
// periph.io's i2c.Dev satisfies it.
type Device interface {
	Tx(w, r []byte) error
}

// CommError reports a register transaction that failed after all retry
// attempts were exhausted.
type CommError struct {
	Register byte
	Address  uint16
	Attempts int
	Err      error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("register 0x%02X transaction failed after %d attempts (device 0x%02X): %v",
		e.Register, e.Attempts, e.Address, e.Err)
}

func (e *CommError) Unwrap() error { return e.Err }

// ErrRegisterNotAllowed is returned when a register outside the allow-list is
// requested.
var ErrRegisterNotAllowed = errors.New("register not in allow-list")

// ErrInvalidLength is returned for read lengths other than 1 or 2 bytes.
var ErrInvalidLength = errors.New("read length must be 1 or 2 bytes")

// Config describes the bus handle and retry policy.
type Config struct {
	Bus        string
	Address    uint16
	MaxRetries int           // retries after the first attempt
	RetryDelay time.Duration // sleep between attempts
	Allowed    []byte        // register allow-list
	Probe      byte          // register read once at connect time to verify the link
}

// Stats holds transaction counters.
type Stats struct {
	Reads  uint64
	Errors uint64
}

// Transport performs register reads/writes with bounded retry and transparent
// reconnection. It is owned by a single goroutine; no internal locking.
type Transport struct {
	cfg     Config
	allowed map[byte]struct{}
	logger  *log.Entry

	dev    Device
	closer func() error
	open   func() (Device, func() error, error)

	stats Stats
}

var (
	hostInit    sync.Once
	hostInitErr error
	initHost    = func() error {
		_, err := host.Init()
		return err
	}
)

// ensureHostInit runs platform driver init once and keeps its error, so every
// reconnect attempt after a failed init reports the real cause.
func ensureHostInit() error {
	hostInit.Do(func() {
		hostInitErr = initHost()
	})
	return hostInitErr
}

func openI2C(cfg Config) (Device, func() error, error) {
	if err := ensureHostInit(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	b, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open bus %q: %w", cfg.Bus, err)
	}
	return &i2c.Dev{Bus: b, Addr: cfg.Address}, b.Close, nil
}

// Open connects to the sensor on the platform bus and verifies the link by
// reading the probe register.
func Open(cfg Config) (*Transport, error) {
	t := newTransport(cfg, func() (Device, func() error, error) { return openI2C(cfg) })
	if err := t.connect(); err != nil {
		return nil, err
	}
	return t, nil
}

// NewWithDevice wraps an already-open device. Used by tests and simulators.
func NewWithDevice(cfg Config, dev Device) *Transport {
	t := newTransport(cfg, func() (Device, func() error, error) {
		return dev, func() error { return nil }, nil
	})
	t.dev = dev
	t.closer = func() error { return nil }
	return t
}

func newTransport(cfg Config, open func() (Device, func() error, error)) *Transport {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	allowed := make(map[byte]struct{}, len(cfg.Allowed))
	for _, reg := range cfg.Allowed {
		allowed[reg] = struct{}{}
	}
	return &Transport{
		cfg:     cfg,
		allowed: allowed,
		logger:  log.WithField("component", "bus"),
		open:    open,
	}
}

func (t *Transport) connect() error {
	if t.closer != nil {
		_ = t.closer()
		t.dev, t.closer = nil, nil
	}
	dev, closer, err := t.open()
	if err != nil {
		return err
	}
	// Single probe read, no retry: a dead link should fail fast here.
	buf := make([]byte, 1)
	if err := dev.Tx([]byte{t.cfg.Probe}, buf); err != nil {
		_ = closer()
		return &CommError{Register: t.cfg.Probe, Address: t.cfg.Address, Attempts: 1, Err: err}
	}
	t.dev = dev
	t.closer = closer
	t.logger.WithFields(log.Fields{
		"bus":     t.cfg.Bus,
		"address": fmt.Sprintf("0x%02X", t.cfg.Address),
	}).Info("connected to sensor")
	return nil
}

// ReadRegister reads length bytes (1 or 2) from a register, retrying failed
// transactions up to MaxRetries times with RetryDelay between attempts.
func (t *Transport) ReadRegister(ctx context.Context, reg byte, length int) ([]byte, error) {
	if err := t.check(reg); err != nil {
		return nil, err
	}
	if length != 1 && length != 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}

	buf := make([]byte, length)
	err := t.transact(ctx, reg, func() error {
		return t.dev.Tx([]byte{reg}, buf)
	})
	if err != nil {
		return nil, err
	}
	t.stats.Reads++
	return buf, nil
}

// WriteRegister writes data to a register with the same retry policy as reads.
func (t *Transport) WriteRegister(ctx context.Context, reg byte, data []byte) error {
	if err := t.check(reg); err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("no data to write")
	}

	w := append([]byte{reg}, data...)
	return t.transact(ctx, reg, func() error {
		return t.dev.Tx(w, nil)
	})
}

func (t *Transport) check(reg byte) error {
	if _, ok := t.allowed[reg]; !ok {
		return fmt.Errorf("%w: 0x%02X", ErrRegisterNotAllowed, reg)
	}
	return nil
}

// transact runs one register transaction under the retry policy. Each failed
// attempt tears down and reopens the bus handle so a reconnect is attempted
// transparently.
func (t *Transport) transact(ctx context.Context, reg byte, op func() error) error {
	attempts := 0
	attempt := func() error {
		attempts++
		if t.dev == nil {
			if err := t.connect(); err != nil {
				return err
			}
		}
		if err := op(); err != nil {
			t.stats.Errors++
			t.logger.WithFields(log.Fields{
				"register": fmt.Sprintf("0x%02X", reg),
				"attempt":  attempts,
			}).Warnf("transaction failed: %v", err)
			// Force a reconnect on the next attempt.
			if t.closer != nil {
				_ = t.closer()
			}
			t.dev, t.closer = nil, nil
			return err
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(t.cfg.RetryDelay), uint64(t.cfg.MaxRetries)),
		ctx,
	)
	if err := backoff.Retry(attempt, policy); err != nil {
		return &CommError{Register: reg, Address: t.cfg.Address, Attempts: attempts, Err: err}
	}
	return nil
}

// Stats returns transaction counters since Open.
func (t *Transport) Stats() Stats { return t.stats }

// Close releases the bus handle.
func (t *Transport) Close() error {
	if t.closer == nil {
		return nil
	}
	err := t.closer()
	t.dev, t.closer = nil, nil
	return err
}
