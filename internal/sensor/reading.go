package sensor

import "time"

// ReadingKind selects which concentration bank a sample is taken from.
type ReadingKind string

const (
	ReadingStandard    ReadingKind = "standard"
	ReadingAtmospheric ReadingKind = "atmospheric"
)

// ParseReadingKind accepts the kind labels and their short forms.
func ParseReadingKind(s string) (ReadingKind, bool) {
	switch s {
	case "standard", "std":
		return ReadingStandard, true
	case "atmospheric", "atm":
		return ReadingAtmospheric, true
	}
	return "", false
}

// Reading is one atomic sampled observation: either every field is populated
// from the same sampling burst or the read fails as a whole. Immutable once
// produced.
type Reading struct {
	Timestamp time.Time
	Location  string
	Kind      ReadingKind

	PM1p0 int // μg/m³
	PM2p5 int
	PM10  int

	Particles0p3 int // per 0.1 L air
	Particles0p5 int
	Particles1p0 int
	Particles2p5 int
	Particles5p0 int
	Particles10  int
}
