package aqi

// Breakpoint is one concentration-to-index segment used for piecewise-linear
// interpolation.
type Breakpoint struct {
	CLow    float64
	CHigh   float64
	AQILow  int
	AQIHigh int
	Level   string
	Color   string
}

// Table is an ordered set of contiguous, non-overlapping breakpoints covering
// [0, +∞): concentrations beyond the last segment's nominal ceiling are
// extrapolated along its slope.
type Table []Breakpoint

// segmentFor returns the segment containing c, or the last segment when c is
// above every finite ceiling.
func (t Table) segmentFor(c float64) Breakpoint {
	for _, bp := range t {
		if c <= bp.CHigh {
			return bp
		}
	}
	return t[len(t)-1]
}

// The two table families below carry slightly different boundary values. They
// come from different published reporting services and are kept verbatim,
// not reconciled.

// PM25Standard is the general EPA-style PM2.5 table.
var PM25Standard = Table{
	{0.0, 12.0, 0, 50, "Good", "Green"},
	{12.1, 35.4, 51, 100, "Moderate", "Yellow"},
	{35.5, 55.4, 101, 150, "Unhealthy for Sensitive Groups", "Orange"},
	{55.5, 150.4, 151, 200, "Unhealthy", "Red"},
	{150.5, 250.4, 201, 300, "Very Unhealthy", "Purple"},
	{250.5, 350.4, 301, 400, "Hazardous", "Maroon"},
	{350.5, 500.4, 401, 500, "Hazardous", "Maroon"},
}

// PM10Standard is the general EPA-style PM10 table.
var PM10Standard = Table{
	{0.0, 54.0, 0, 50, "Good", "Green"},
	{55.0, 154.0, 51, 100, "Moderate", "Yellow"},
	{155.0, 254.0, 101, 150, "Unhealthy for Sensitive Groups", "Orange"},
	{255.0, 354.0, 151, 200, "Unhealthy", "Red"},
	{355.0, 424.0, 201, 300, "Very Unhealthy", "Purple"},
	{425.0, 504.0, 301, 400, "Hazardous", "Maroon"},
	{505.0, 604.0, 401, 500, "Hazardous", "Maroon"},
}

// PM25Atmospheric is the atmospheric-only PM2.5 table, matching the values
// public reporting services compute from atmospheric-bank readings.
var PM25Atmospheric = Table{
	{0.0, 9.0, 0, 50, "Good", "Green"},
	{9.1, 35.4, 51, 100, "Moderate", "Yellow"},
	{35.5, 55.4, 101, 150, "Unhealthy for Sensitive Groups", "Orange"},
	{55.5, 125.4, 151, 200, "Unhealthy", "Red"},
	{125.5, 225.4, 201, 300, "Very Unhealthy", "Purple"},
	{225.5, 325.4, 301, 400, "Hazardous", "Maroon"},
	{325.5, 500.0, 401, 500, "Hazardous", "Maroon"},
}

// PM10Atmospheric is the atmospheric-only PM10 table.
var PM10Atmospheric = Table{
	{0.0, 54.0, 0, 50, "Good", "Green"},
	{55.0, 154.0, 51, 100, "Moderate", "Yellow"},
	{155.0, 254.0, 101, 150, "Unhealthy for Sensitive Groups", "Orange"},
	{255.0, 354.0, 151, 200, "Unhealthy", "Red"},
	{355.0, 424.0, 201, 300, "Very Unhealthy", "Purple"},
	{425.0, 500.0, 301, 500, "Hazardous", "Maroon"},
}

// HealthMessages maps an AQI level to its advisory text.
var HealthMessages = map[string]string{
	"Good":                           "Air quality is satisfactory",
	"Moderate":                       "Air quality is acceptable for most people",
	"Unhealthy for Sensitive Groups": "Sensitive groups may experience health effects",
	"Unhealthy":                      "Everyone may experience health effects",
	"Very Unhealthy":                 "Health alert: everyone may experience serious health effects",
	"Hazardous":                      "Emergency conditions: everyone affected",
}
