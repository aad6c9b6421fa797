package aqi

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestCompute_CleanAir(t *testing.T) {
	result, err := Compute(5.0, nil, MethodAtmospheric)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if result.AQI < 0 || result.AQI > 50 {
		t.Errorf("Expected AQI in [0,50], got %d", result.AQI)
	}
	if result.Level != "Good" {
		t.Errorf("Expected level Good, got %s", result.Level)
	}
	if result.Dominant != PollutantPM25 {
		t.Errorf("Expected dominant pm2_5, got %s", result.Dominant)
	}
}

func TestCompute_SegmentBoundary(t *testing.T) {
	// 35.5 is the lower bound of the USG segment in the atmospheric table.
	result, err := Compute(35.5, nil, MethodAtmospheric)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if result.AQI != 101 {
		t.Errorf("Expected AQI 101, got %d", result.AQI)
	}
	if result.Level != "Unhealthy for Sensitive Groups" {
		t.Errorf("Expected USG level, got %s", result.Level)
	}
	if result.Color != "Orange" {
		t.Errorf("Expected Orange, got %s", result.Color)
	}
}

func TestCompute_DominantPM10(t *testing.T) {
	pm10 := 180.0
	result, err := Compute(20.0, &pm10, MethodAtmospheric)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if result.Dominant != PollutantPM10 {
		t.Errorf("Expected dominant pm10, got %s", result.Dominant)
	}
	if result.PM10AQI == nil {
		t.Fatal("Expected pm10 AQI to be set")
	}
	if result.AQI != *result.PM10AQI {
		t.Errorf("Expected final AQI %d to equal pm10 AQI %d", result.AQI, *result.PM10AQI)
	}
	if *result.PM10AQI <= *result.PM25AQI {
		t.Errorf("Expected pm10 AQI %d > pm25 AQI %d", *result.PM10AQI, *result.PM25AQI)
	}
}

func TestCompute_TieFavorsPM25(t *testing.T) {
	// PM10 54.0 and PM2.5 9.0 both interpolate to exactly 50.
	pm10 := 54.0
	result, err := Compute(9.0, &pm10, MethodAtmospheric)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if *result.PM25AQI != 50 || *result.PM10AQI != 50 {
		t.Fatalf("Expected both AQIs to be 50, got pm25=%d pm10=%d", *result.PM25AQI, *result.PM10AQI)
	}
	if result.Dominant != PollutantPM25 {
		t.Errorf("Expected tie to favor pm2_5, got %s", result.Dominant)
	}
}

func TestCompute_Monotonic(t *testing.T) {
	for _, method := range []Method{MethodStandard, MethodAtmospheric, MethodCorrected} {
		prev := -1
		for c := 0.0; c <= 700.0; c += 0.5 {
			result, err := Compute(c, nil, method)
			if err != nil {
				t.Fatalf("Compute(%v, %s) failed: %v", c, method, err)
			}
			if result.AQI < prev {
				t.Fatalf("AQI decreased at c=%v under %s: %d < %d", c, method, result.AQI, prev)
			}
			prev = result.AQI
		}
	}
}

func TestCompute_AdjacentSegmentsDifferByOne(t *testing.T) {
	tables := map[string]Table{
		"pm25 standard":    PM25Standard,
		"pm25 atmospheric": PM25Atmospheric,
		"pm10 standard":    PM10Standard,
		"pm10 atmospheric": PM10Atmospheric,
	}
	for name, table := range tables {
		for i := 0; i < len(table)-1; i++ {
			atHigh, _ := interpolate(table[i].CHigh, table)
			atNextLow, _ := interpolate(table[i+1].CLow, table)
			if atNextLow-atHigh != 1 {
				t.Errorf("%s: expected AQI step of 1 between segments %d and %d, got %d -> %d",
					name, i, i+1, atHigh, atNextLow)
			}
		}
	}
}

func TestCompute_Idempotent(t *testing.T) {
	pm10 := 80.0
	first, err := Compute(42.0, &pm10, MethodAtmospheric)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	second, err := Compute(42.0, &pm10, MethodAtmospheric)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical results, got %+v and %+v", first, second)
	}
}

func TestCompute_ExtrapolatesAndCaps(t *testing.T) {
	result, err := Compute(600.0, nil, MethodAtmospheric)
	if err != nil {
		t.Fatalf("Expected hazardous spike to compute, got error: %v", err)
	}

	if result.AQI != 500 {
		t.Errorf("Expected capped AQI 500, got %d", result.AQI)
	}
	if result.Level != "Hazardous" {
		t.Errorf("Expected Hazardous, got %s", result.Level)
	}
}

func TestCompute_CorrectionCurve(t *testing.T) {
	// corrected: 0.52*10 + 5.71 = 10.91, which lands in the Moderate segment
	// of the atmospheric table.
	result, err := Compute(10.0, nil, MethodCorrected)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if result.Level != "Moderate" {
		t.Errorf("Expected Moderate after correction, got %s", result.Level)
	}

	raw, err := Compute(10.0, nil, MethodAtmospheric)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if raw.AQI >= result.AQI {
		t.Errorf("Expected correction to raise AQI at low concentrations: raw=%d corrected=%d",
			raw.AQI, result.AQI)
	}
}

func TestCompute_StandardTables(t *testing.T) {
	// 12.0 is the top of the first standard segment but sits in the Moderate
	// segment of the atmospheric table.
	std, err := Compute(12.0, nil, MethodStandard)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if std.AQI != 50 {
		t.Errorf("Expected AQI 50 from standard table, got %d", std.AQI)
	}

	atm, err := Compute(12.0, nil, MethodAtmospheric)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if atm.AQI <= 50 {
		t.Errorf("Expected atmospheric table to exceed 50 at 12.0, got %d", atm.AQI)
	}
}

func TestCompute_InvalidInput(t *testing.T) {
	cases := []struct {
		name string
		pm25 float64
	}{
		{"negative", -1.0},
		{"nan", math.NaN()},
		{"infinite", math.Inf(1)},
	}
	for _, tc := range cases {
		_, err := Compute(tc.pm25, nil, MethodAtmospheric)
		var invalid *InvalidDataError
		if !errors.As(err, &invalid) {
			t.Errorf("%s: expected InvalidDataError, got %v", tc.name, err)
		}
	}

	bad := -5.0
	_, err := Compute(10.0, &bad, MethodAtmospheric)
	var invalid *InvalidDataError
	if !errors.As(err, &invalid) {
		t.Errorf("Expected InvalidDataError for negative pm10, got %v", err)
	}
}

func TestCompute_UnknownMethod(t *testing.T) {
	if _, err := Compute(10.0, nil, Method("bogus")); err == nil {
		t.Error("Expected error for unknown method")
	}
}

func TestCompute_HealthMessage(t *testing.T) {
	result, err := Compute(5.0, nil, MethodAtmospheric)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if result.HealthMessage != HealthMessages["Good"] {
		t.Errorf("Expected Good health message, got %q", result.HealthMessage)
	}
}
