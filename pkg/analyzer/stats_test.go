package analyzer

import (
	"math"
	"testing"
)

func TestLinearRegression(t *testing.T) {
	// Perfect line: y = 2x + 1
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{1, 3, 5, 7, 9}

	slope, intercept, r := linearRegression(x, y)

	if math.Abs(slope-2.0) > 1e-9 {
		t.Errorf("Expected slope 2.0, got %f", slope)
	}
	if math.Abs(intercept-1.0) > 1e-9 {
		t.Errorf("Expected intercept 1.0, got %f", intercept)
	}
	if math.Abs(r-1.0) > 1e-9 {
		t.Errorf("Expected r 1.0, got %f", r)
	}
}

func TestLinearRegression_NegativeSlope(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{10, 8, 6, 4}

	slope, _, r := linearRegression(x, y)

	if math.Abs(slope+2.0) > 1e-9 {
		t.Errorf("Expected slope -2.0, got %f", slope)
	}
	if math.Abs(r+1.0) > 1e-9 {
		t.Errorf("Expected r -1.0, got %f", r)
	}
}

func TestLinearRegression_ZeroVariance(t *testing.T) {
	// Identical repeated values must not divide by zero and must report
	// zero correlation.
	x := []float64{0, 1, 2, 3}
	y := []float64{5, 5, 5, 5}

	slope, intercept, r := linearRegression(x, y)

	if slope != 0 {
		t.Errorf("Expected slope 0 for flat series, got %f", slope)
	}
	if intercept != 5 {
		t.Errorf("Expected intercept 5, got %f", intercept)
	}
	if r != 0 {
		t.Errorf("Expected r 0 for zero variance, got %f", r)
	}
}

func TestLinearRegression_Empty(t *testing.T) {
	slope, intercept, r := linearRegression(nil, nil)
	if slope != 0 || intercept != 0 || r != 0 {
		t.Errorf("Expected zeros for empty input, got %f %f %f", slope, intercept, r)
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{9, 1, 5, 3, 7}

	if got := Percentile(values, 50); got != 5 {
		t.Errorf("Expected P50 5, got %f", got)
	}
	if got := Percentile(values, 100); got != 9 {
		t.Errorf("Expected P100 9, got %f", got)
	}
	if got := Percentile(values, 0); got != 1 {
		t.Errorf("Expected P0 1, got %f", got)
	}
}

func TestPercentile_SingleValue(t *testing.T) {
	if got := Percentile([]float64{42}, 95); got != 42 {
		t.Errorf("Expected 42, got %f", got)
	}
}

func TestZScore(t *testing.T) {
	values := []float64{10, 10, 10, 10}
	if got := zScore(100, values); got != 0 {
		t.Errorf("Expected 0 for zero stddev, got %f", got)
	}

	values = []float64{8, 12, 8, 12}
	if got := zScore(10, values); got != 0 {
		t.Errorf("Expected 0 at the mean, got %f", got)
	}
	if got := zScore(14, values); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("Expected z 2.0, got %f", got)
	}
}
