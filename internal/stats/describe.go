package stats

import (
	"math"

	"github.com/montanaflynn/stats"

	"procsight/domain/core"
	"procsight/domain/series"
)

// Description holds descriptive statistics for one series over the active
// window. A series with zero valid samples reports every central-tendency
// field as NaN rather than raising; MissingRate is computed over the rows
// before cleaning.
type Description struct {
	Key         core.SeriesKey `json:"key"`
	Count       int            `json:"count"`
	Mean        float64        `json:"mean"`
	Std         float64        `json:"std"`
	Min         float64        `json:"min"`
	Q25         float64        `json:"q25"`
	Median      float64        `json:"median"`
	Q75         float64        `json:"q75"`
	Max         float64        `json:"max"`
	MissingRate float64        `json:"missing_rate"`
	Skewness    float64        `json:"skewness"`
	Kurtosis    float64        `json:"kurtosis"` // excess kurtosis
}

// Describe computes descriptive statistics for every selected column of the
// (already window-filtered, pre-cleaning) dataset, in selection order.
func Describe(ds *series.Dataset) []Description {
	out := make([]Description, 0, len(ds.Columns))
	for _, key := range ds.Columns {
		out = append(out, describeColumn(key, ds.Values[key]))
	}
	return out
}

func describeColumn(key core.SeriesKey, values []float64) Description {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !series.IsMissing(v) {
			valid = append(valid, v)
		}
	}

	d := Description{
		Key:   key,
		Count: len(valid),
		// Undefined until proven otherwise.
		Mean: math.NaN(), Std: math.NaN(), Min: math.NaN(),
		Q25: math.NaN(), Median: math.NaN(), Q75: math.NaN(),
		Max: math.NaN(), Skewness: math.NaN(), Kurtosis: math.NaN(),
	}
	if len(values) > 0 {
		d.MissingRate = float64(len(values)-len(valid)) / float64(len(values))
	}
	if len(valid) == 0 {
		return d
	}

	d.Mean, _ = stats.Mean(valid)
	d.Std, _ = stats.StandardDeviationSample(valid)
	d.Min, _ = stats.Min(valid)
	d.Q25, _ = stats.Percentile(valid, 25)
	d.Median, _ = stats.Median(valid)
	d.Q75, _ = stats.Percentile(valid, 75)
	d.Max, _ = stats.Max(valid)
	d.Skewness = sampleSkewness(valid, d.Mean, d.Std)
	d.Kurtosis = sampleKurtosis(valid, d.Mean, d.Std)
	return d
}

// sampleSkewness computes the adjusted Fisher-Pearson coefficient of
// skewness with small-sample bias correction.
func sampleSkewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 || stdDev == 0 {
		return math.NaN()
	}
	n := float64(len(data))
	sumCubed := 0.0
	for _, x := range data {
		deviation := (x - mean) / stdDev
		sumCubed += deviation * deviation * deviation
	}
	skewness := sumCubed / n
	correction := math.Sqrt(n*(n-1)) / (n - 2)
	return skewness * correction
}

// sampleKurtosis computes sample excess kurtosis with bias correction.
func sampleKurtosis(data []float64, mean, stdDev float64) float64 {
	if len(data) < 4 || stdDev == 0 {
		return math.NaN()
	}
	n := float64(len(data))
	sumFourth := 0.0
	for _, x := range data {
		deviation := (x - mean) / stdDev
		sumFourth += deviation * deviation * deviation * deviation
	}
	numerator := (n + 1) * n * sumFourth
	denominator := (n - 1) * (n - 2) * (n - 3)
	correction := 3 * (n - 1) * (n - 1) / ((n - 2) * (n - 3))
	return numerator/denominator - correction
}
