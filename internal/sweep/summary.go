package sweep

import (
	"gonum.org/v1/gonum/stat"

	"github.com/freqsweep/freqsweep/internal/events"
)

// Summary condenses a completed sweep's response curve.
type Summary struct {
	Points           int     `json:"points"`
	MinValue         uint16  `json:"min_value"`
	MaxValue         uint16  `json:"max_value"`
	Mean             float64 `json:"mean"`
	StdDev           float64 `json:"std_dev"`
	PeakFrequencyKHz float64 `json:"peak_frequency_khz"`
}

// newSummary computes summary statistics over the collected chart points.
func newSummary(points []events.ChartPoint) Summary {
	s := Summary{Points: len(points)}
	if len(points) == 0 {
		return s
	}

	values := make([]float64, len(points))
	s.MinValue = points[0].Value
	s.MaxValue = points[0].Value
	s.PeakFrequencyKHz = points[0].FrequencyKHz

	for i, p := range points {
		values[i] = float64(p.Value)
		if p.Value < s.MinValue {
			s.MinValue = p.Value
		}
		if p.Value > s.MaxValue {
			s.MaxValue = p.Value
			s.PeakFrequencyKHz = p.FrequencyKHz
		}
	}

	s.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		s.StdDev = stat.StdDev(values, nil)
	}

	return s
}
