package database

import (
	"time"
)

// StoredReading is one persisted sample row.
type StoredReading struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Location  string    `json:"location"`
	Kind      string    `json:"kind"`

	PM1p0 int `json:"pm1_0"`
	PM2p5 int `json:"pm2_5"`
	PM10  int `json:"pm10"`

	Particles0p3 int `json:"particles_0_3um"`
	Particles0p5 int `json:"particles_0_5um"`
	Particles1p0 int `json:"particles_1_0um"`
	Particles2p5 int `json:"particles_2_5um"`
	Particles5p0 int `json:"particles_5_0um"`
	Particles10  int `json:"particles_10um"`
}

// ScheduleConfig is a named sampling configuration. The scheduler reads it
// once at start and treats it as read-only for the run.
type ScheduleConfig struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Location         string    `json:"location"`
	Kind             string    `json:"kind"` // standard | atmospheric
	FrequencyLabel   string    `json:"frequency"`
	FrequencySeconds int       `json:"frequency_seconds"`
	RetentionLabel   *string   `json:"retention,omitempty"`
	RetentionSeconds *int      `json:"retention_seconds,omitempty"` // nil = unlimited retention
	Enabled          bool      `json:"enabled"`
	Powersave        bool      `json:"powersave"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ReadingFilter narrows ListReadings. Zero values mean "no filter"; Limit is
// clamped to 1..1000.
type ReadingFilter struct {
	Location string
	Kind     string
	Since    time.Time
	Limit    int
}
