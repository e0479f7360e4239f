package analyzer

import (
	"math"
	"sort"
)

// calculateAverage computes the mean of values
func calculateAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// calculateStdDev computes the population standard deviation
func calculateStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	mean := calculateAverage(values)
	sumSquaredDiff := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}

	return math.Sqrt(sumSquaredDiff / float64(len(values)))
}

// linearRegression performs simple ordinary least squares regression
// Returns: slope, intercept, r (Pearson correlation coefficient)
func linearRegression(x, y []float64) (slope, intercept, r float64) {
	n := float64(len(x))

	if n == 0 {
		return 0, 0, 0
	}

	meanX := calculateAverage(x)
	meanY := calculateAverage(y)

	covXY := 0.0
	varX := 0.0
	varY := 0.0

	for i := 0; i < len(x); i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		covXY += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 {
		return 0, meanY, 0
	}

	slope = covXY / varX
	intercept = meanY - slope*meanX

	// Zero variance in y means a flat series: no correlation, by definition.
	if varY == 0 {
		return slope, intercept, 0
	}

	r = covXY / math.Sqrt(varX*varY)

	// Clamp against floating-point drift
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}

	return slope, intercept, r
}

// zScore measures how many standard deviations v sits from the mean of values.
func zScore(v float64, values []float64) float64 {
	stdDev := calculateStdDev(values)
	if stdDev == 0 {
		return 0
	}
	return (v - calculateAverage(values)) / stdDev
}

// calculatePercentile computes the Nth percentile using linear interpolation
func calculatePercentile(sortedValues []float64, percentile float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}

	if len(sortedValues) == 1 {
		return sortedValues[0]
	}

	n := float64(len(sortedValues))
	rank := (percentile / 100.0) * (n - 1)

	lowerIndex := int(math.Floor(rank))
	upperIndex := int(math.Ceil(rank))

	if lowerIndex == upperIndex {
		return sortedValues[lowerIndex]
	}

	// Linear interpolation between the two values
	lowerValue := sortedValues[lowerIndex]
	upperValue := sortedValues[upperIndex]
	fraction := rank - float64(lowerIndex)

	return lowerValue + (upperValue-lowerValue)*fraction
}

// Percentile computes the Nth percentile of unsorted values.
func Percentile(values []float64, percentile float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return calculatePercentile(sorted, percentile)
}
