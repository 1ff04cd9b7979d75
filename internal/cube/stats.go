package cube

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// VoxelStats summarizes a scalar field.
type VoxelStats struct {
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
}

// Stats returns summary statistics for values. NaN entries are skipped.
func Stats(values []float64) VoxelStats {
	clean := values
	if floats.HasNaN(values) {
		clean = make([]float64, 0, len(values))
		for _, v := range values {
			if !math.IsNaN(v) {
				clean = append(clean, v)
			}
		}
	}

	s := VoxelStats{Count: len(clean)}
	if len(clean) == 0 {
		return s
	}
	s.Min = floats.Min(clean)
	s.Max = floats.Max(clean)
	s.Mean, s.StdDev = stat.MeanStdDev(clean, nil)
	if len(clean) < 2 {
		s.StdDev = 0
	}
	for _, v := range clean {
		switch {
		case v > 0:
			s.Positive++
		case v < 0:
			s.Negative++
		}
	}
	return s
}
