package cube

import (
	"math"
	"testing"
)

func TestStats(t *testing.T) {
	s := Stats([]float64{-1, 0, 1, 2, math.NaN()})
	if s.Count != 4 || s.Min != -1 || s.Max != 2 {
		t.Errorf("stats = %+v", s)
	}
	if math.Abs(s.Mean-0.5) > 1e-12 {
		t.Errorf("mean = %v, want 0.5", s.Mean)
	}
	if s.Positive != 2 || s.Negative != 1 {
		t.Errorf("sign counts = %d/%d", s.Positive, s.Negative)
	}
	if math.Abs(s.StdDev-math.Sqrt(5.0/3.0)) > 1e-12 {
		t.Errorf("stddev = %v", s.StdDev)
	}
}

func TestStatsEdgeCases(t *testing.T) {
	if s := Stats(nil); s.Count != 0 || s.Mean != 0 {
		t.Errorf("Stats(nil) = %+v", s)
	}
	if s := Stats([]float64{3}); s.StdDev != 0 || s.Mean != 3 {
		t.Errorf("single value = %+v", s)
	}
}
