package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/smourya/pm25-monitor/internal/bus"
	"github.com/smourya/pm25-monitor/internal/database"
	"github.com/smourya/pm25-monitor/internal/queue"
	"github.com/smourya/pm25-monitor/internal/scheduler"
	"github.com/smourya/pm25-monitor/internal/sensor"
	"github.com/smourya/pm25-monitor/internal/state"
	"github.com/smourya/pm25-monitor/pkg/config"
)

var (
	configName = flag.String("config-name", "", "schedule config name to run")
	configID   = flag.Int64("config-id", 0, "schedule config id to run")
)

func init() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func main() {
	flag.Parse()

	if *configName == "" && *configID == 0 {
		log.Fatal("provide -config-name or -config-id")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	schedCfg, err := loadScheduleConfig(db)
	if err != nil {
		log.Fatalf("Failed to load schedule config: %v", err)
	}

	transport, err := bus.Open(bus.Config{
		Bus:        cfg.Sensor.Bus,
		Address:    cfg.Sensor.Address,
		MaxRetries: cfg.Sensor.MaxRetries,
		RetryDelay: cfg.Sensor.RetryDelay,
		Allowed:    sensor.ValidRegisters(),
		Probe:      sensor.RegVersion,
	})
	if err != nil {
		log.Fatalf("Failed to open sensor bus: %v", err)
	}
	defer transport.Close()

	dev := sensor.New(transport, sensor.Config{
		CacheTTL:         cfg.Sensor.CacheTTL,
		WarmupTime:       cfg.Sensor.WarmupTime,
		MaxConcentration: cfg.Sensor.MaxConcentration,
		MaxParticleCount: cfg.Sensor.MaxParticleCount,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if version, err := dev.Version(ctx); err == nil {
		log.WithField("version", version).Info("sensor responding")
	}

	var producer scheduler.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		p := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings)
		defer p.Close()
		producer = p
	}

	var latest scheduler.LatestSetter
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		latest = state.NewStore(client, cfg.Redis.LatestTTL)
	}

	runCfg := scheduler.Config{
		Location:  schedCfg.Location,
		Kind:      sensor.ReadingKind(schedCfg.Kind),
		Frequency: time.Duration(schedCfg.FrequencySeconds) * time.Second,
		Powersave: schedCfg.Powersave,
		Settle:    cfg.Scheduler.SettleTime,
		LockPath:  cfg.Scheduler.LockPath,
	}
	if schedCfg.RetentionSeconds != nil {
		runCfg.Retention = time.Duration(*schedCfg.RetentionSeconds) * time.Second
	}

	sched := scheduler.New(runCfg, dev, db, producer, latest)
	if err := sched.Run(ctx); err != nil {
		var contention *scheduler.LockContentionError
		if errors.As(err, &contention) {
			log.Error(contention.Error())
			os.Exit(1)
		}
		log.Fatalf("Scheduler failed: %v", err)
	}
}

func loadScheduleConfig(db *database.DB) (*database.ScheduleConfig, error) {
	var (
		schedCfg *database.ScheduleConfig
		err      error
	)
	if *configName != "" {
		schedCfg, err = db.GetScheduleConfigByName(*configName)
	} else {
		schedCfg, err = db.GetScheduleConfigByID(*configID)
	}
	if err != nil {
		return nil, err
	}
	if schedCfg == nil {
		return nil, errors.New("schedule config not found")
	}
	if !schedCfg.Enabled {
		return nil, errors.New("schedule config is disabled")
	}
	return schedCfg, nil
}
