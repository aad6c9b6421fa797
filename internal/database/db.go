package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"github.com/smourya/pm25-monitor/internal/sensor"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		log.WithField("migration", filename).Info("running migration")

		filePath := filepath.Join(migrationsDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	return nil
}

// InsertReading persists one sample and returns its row id.
func (db *DB) InsertReading(r *sensor.Reading) (int64, error) {
	query := `
		INSERT INTO schedule_readings (
			timestamp, location, kind, pm1_0, pm2_5, pm10,
			particles_0_3um, particles_0_5um, particles_1_0um,
			particles_2_5um, particles_5_0um, particles_10um
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	var id int64
	err := db.QueryRow(
		query,
		r.Timestamp,
		r.Location,
		string(r.Kind),
		r.PM1p0,
		r.PM2p5,
		r.PM10,
		r.Particles0p3,
		r.Particles0p5,
		r.Particles1p0,
		r.Particles2p5,
		r.Particles5p0,
		r.Particles10,
	).Scan(&id)
	return id, err
}

// DeleteReadingsBefore prunes rows older than the cutoff, optionally limited
// to one location, and returns the number deleted.
func (db *DB) DeleteReadingsBefore(cutoff time.Time, location string) (int64, error) {
	query := `DELETE FROM schedule_readings WHERE timestamp < $1`
	args := []interface{}{cutoff}
	if location != "" {
		query += ` AND location = $2`
		args = append(args, location)
	}

	result, err := db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListReadings returns persisted samples, newest first.
func (db *DB) ListReadings(f ReadingFilter) ([]*StoredReading, error) {
	limit := f.Limit
	if limit < 1 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	var clauses []string
	var args []interface{}
	if f.Location != "" {
		args = append(args, f.Location)
		clauses = append(clauses, fmt.Sprintf("location = $%d", len(args)))
	}
	if f.Kind != "" {
		args = append(args, f.Kind)
		clauses = append(clauses, fmt.Sprintf("kind = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		clauses = append(clauses, fmt.Sprintf("timestamp >= $%d", len(args)))
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, timestamp, location, kind, pm1_0, pm2_5, pm10,
		       particles_0_3um, particles_0_5um, particles_1_0um,
		       particles_2_5um, particles_5_0um, particles_10um
		FROM schedule_readings
		%s
		ORDER BY timestamp DESC
		LIMIT $%d
	`, where, len(args))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []*StoredReading
	for rows.Next() {
		var r StoredReading
		if err := rows.Scan(
			&r.ID,
			&r.Timestamp,
			&r.Location,
			&r.Kind,
			&r.PM1p0,
			&r.PM2p5,
			&r.PM10,
			&r.Particles0p3,
			&r.Particles0p5,
			&r.Particles1p0,
			&r.Particles2p5,
			&r.Particles5p0,
			&r.Particles10,
		); err != nil {
			return nil, err
		}
		readings = append(readings, &r)
	}

	return readings, rows.Err()
}

const scheduleConfigColumns = `
	id, name, location, kind, frequency_label, frequency_seconds,
	retention_label, retention_seconds, enabled, powersave,
	created_at, updated_at
`

// GetScheduleConfigByName retrieves a schedule config by its unique name.
func (db *DB) GetScheduleConfigByName(name string) (*ScheduleConfig, error) {
	query := `SELECT ` + scheduleConfigColumns + ` FROM schedule_configs WHERE name = $1`
	return db.scanScheduleConfig(db.QueryRow(query, name))
}

// GetScheduleConfigByID retrieves a schedule config by id.
func (db *DB) GetScheduleConfigByID(id int64) (*ScheduleConfig, error) {
	query := `SELECT ` + scheduleConfigColumns + ` FROM schedule_configs WHERE id = $1`
	return db.scanScheduleConfig(db.QueryRow(query, id))
}

// ListScheduleConfigs returns all schedule configs ordered by name.
func (db *DB) ListScheduleConfigs() ([]*ScheduleConfig, error) {
	query := `SELECT ` + scheduleConfigColumns + ` FROM schedule_configs ORDER BY name`
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*ScheduleConfig
	for rows.Next() {
		cfg, err := scanScheduleConfigRow(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// UpsertScheduleConfig inserts or updates a schedule config keyed by name.
func (db *DB) UpsertScheduleConfig(cfg *ScheduleConfig) error {
	query := `
		INSERT INTO schedule_configs (
			name, location, kind, frequency_label, frequency_seconds,
			retention_label, retention_seconds, enabled, powersave
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO UPDATE
		SET location = EXCLUDED.location,
		    kind = EXCLUDED.kind,
		    frequency_label = EXCLUDED.frequency_label,
		    frequency_seconds = EXCLUDED.frequency_seconds,
		    retention_label = EXCLUDED.retention_label,
		    retention_seconds = EXCLUDED.retention_seconds,
		    enabled = EXCLUDED.enabled,
		    powersave = EXCLUDED.powersave,
		    updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`
	return db.QueryRow(
		query,
		cfg.Name,
		cfg.Location,
		cfg.Kind,
		cfg.FrequencyLabel,
		cfg.FrequencySeconds,
		cfg.RetentionLabel,
		cfg.RetentionSeconds,
		cfg.Enabled,
		cfg.Powersave,
	).Scan(&cfg.ID)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (db *DB) scanScheduleConfig(row rowScanner) (*ScheduleConfig, error) {
	cfg, err := scanScheduleConfigRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func scanScheduleConfigRow(row rowScanner) (*ScheduleConfig, error) {
	var cfg ScheduleConfig
	err := row.Scan(
		&cfg.ID,
		&cfg.Name,
		&cfg.Location,
		&cfg.Kind,
		&cfg.FrequencyLabel,
		&cfg.FrequencySeconds,
		&cfg.RetentionLabel,
		&cfg.RetentionSeconds,
		&cfg.Enabled,
		&cfg.Powersave,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
