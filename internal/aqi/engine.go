package aqi

import (
	"fmt"
	"math"
)

// Method selects the breakpoint-table family and whether the sensor
// correction curve is applied to PM2.5.
type Method string

const (
	// MethodStandard interpolates the general EPA-style tables with no
	// correction.
	MethodStandard Method = "standard"
	// MethodAtmospheric interpolates the atmospheric-only tables on the raw
	// atmospheric-bank readings.
	MethodAtmospheric Method = "atmospheric"
	// MethodCorrected applies the particulate-sensor correction curve to
	// PM2.5 before interpolating the atmospheric-only tables.
	MethodCorrected Method = "corrected"
)

// ParseMethod accepts the method labels and their short forms.
func ParseMethod(s string) (Method, bool) {
	switch s {
	case "standard", "std":
		return MethodStandard, true
	case "atmospheric", "atm":
		return MethodAtmospheric, true
	case "corrected":
		return MethodCorrected, true
	}
	return "", false
}

// Pollutant identifies which input produced the reported index.
type Pollutant string

const (
	PollutantPM25 Pollutant = "pm2_5"
	PollutantPM10 Pollutant = "pm10"
)

// Result is the computed index for one reading. Always recomputed, never
// cached across sensor readings.
type Result struct {
	AQI           int       `json:"aqi_value"`
	Level         string    `json:"level"`
	Color         string    `json:"color"`
	Dominant      Pollutant `json:"dominant_source"`
	PM25AQI       *int      `json:"pm25_aqi"`
	PM10AQI       *int      `json:"pm10_aqi"`
	HealthMessage string    `json:"health_message"`
	Method        Method    `json:"method"`
}

// InvalidDataError reports malformed engine input: a programming or
// integration error, never retried.
type InvalidDataError struct {
	Parameter string
	Value     float64
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("invalid %s concentration: %v (must be finite and non-negative)", e.Parameter, e.Value)
}

// Correction curve for atmospheric-bank PM2.5 readings from this class of
// particulate sensor, per the published guidance for CF=1 data without
// humidity compensation.
const (
	correctionSlope     = 0.52
	correctionIntercept = 5.71
)

// maxAQI caps the reported value; hazardous spikes beyond the tables still
// produce a defined output.
const maxAQI = 500

// Compute maps PM2.5 (required) and PM10 (optional) concentrations in μg/m³
// to an AQI result using the requested method. The dominant pollutant is
// whichever yields the higher index, ties favoring PM2.5.
func Compute(pm25 float64, pm10 *float64, method Method) (*Result, error) {
	if err := validateInput("pm2_5", pm25); err != nil {
		return nil, err
	}
	if pm10 != nil {
		if err := validateInput("pm10", *pm10); err != nil {
			return nil, err
		}
	}

	pm25Table, pm10Table := PM25Standard, PM10Standard
	pm25c := pm25
	switch method {
	case MethodAtmospheric:
		pm25Table, pm10Table = PM25Atmospheric, PM10Atmospheric
	case MethodCorrected:
		pm25Table, pm10Table = PM25Atmospheric, PM10Atmospheric
		pm25c = math.Max(0, correctionSlope*pm25+correctionIntercept)
	case MethodStandard:
	default:
		return nil, fmt.Errorf("unknown AQI method %q", method)
	}

	pm25AQI, pm25Seg := interpolate(pm25c, pm25Table)

	result := &Result{
		AQI:      pm25AQI,
		Level:    pm25Seg.Level,
		Color:    pm25Seg.Color,
		Dominant: PollutantPM25,
		PM25AQI:  &pm25AQI,
		Method:   method,
	}

	if pm10 != nil {
		pm10AQI, pm10Seg := interpolate(*pm10, pm10Table)
		result.PM10AQI = &pm10AQI
		if pm10AQI > pm25AQI {
			result.AQI = pm10AQI
			result.Level = pm10Seg.Level
			result.Color = pm10Seg.Color
			result.Dominant = PollutantPM10
		}
	}

	result.HealthMessage = HealthMessages[result.Level]
	return result, nil
}

// interpolate maps a concentration to the AQI scale. Above the last segment's
// nominal ceiling the segment's slope is extended rather than failing, and
// the value is capped at 500.
func interpolate(c float64, table Table) (int, Breakpoint) {
	c = math.Max(0, c)
	seg := table.segmentFor(c)
	slope := float64(seg.AQIHigh-seg.AQILow) / (seg.CHigh - seg.CLow)
	value := int(math.Round(slope*(c-seg.CLow) + float64(seg.AQILow)))
	if value > maxAQI {
		value = maxAQI
	}
	return value, seg
}

func validateInput(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return &InvalidDataError{Parameter: name, Value: v}
	}
	return nil
}
