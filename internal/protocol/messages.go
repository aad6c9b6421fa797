package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/smourya/pm25-monitor/internal/sensor"
)

// ReadingMessage is the message published per sample on the readings stream.
type ReadingMessage struct {
	ID        string    `json:"id"`
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

// FromReading builds a stream message from a sampled reading, assigning it a
// unique id.
func FromReading(r *sensor.Reading) *ReadingMessage {
	return &ReadingMessage{
		ID:           uuid.New().String(),
		Timestamp:    r.Timestamp,
		Location:     r.Location,
		Kind:         string(r.Kind),
		PM1p0:        r.PM1p0,
		PM2p5:        r.PM2p5,
		PM10:         r.PM10,
		Particles0p3: r.Particles0p3,
		Particles0p5: r.Particles0p5,
		Particles1p0: r.Particles1p0,
		Particles2p5: r.Particles2p5,
		Particles5p0: r.Particles5p0,
		Particles10:  r.Particles10,
	}
}

// Encode serializes the message for the wire.
func (m *ReadingMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeReadingMessage parses a wire message.
func DecodeReadingMessage(data []byte) (*ReadingMessage, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
