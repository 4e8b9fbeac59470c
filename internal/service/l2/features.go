package l2_service

import (
	"creditrisk/internal/domain"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

const maxCategoryLevels = 50

// Encoder turns samples into a dense matrix. it is fit once on training
// data and then reused unchanged for every later scoring call
type Encoder struct {
	Numeric     []string
	Medians     map[string]float64
	Categorical []string
	Levels      map[string][]string

	names []string
	index map[string]map[string]int
}

func FitEncoder(samples []domain.Sample) (*Encoder, error) {
	if len(samples) == 0 {
		return nil, domain.EmptyResultError{Stage: "feature encoding", Reason: "no training samples"}
	}

	numericSet := map[string]struct{}{}
	categoricalSet := map[string]struct{}{}
	for _, s := range samples {
		for k := range s.Numeric {
			numericSet[k] = struct{}{}
		}
		for k := range s.Categorical {
			categoricalSet[k] = struct{}{}
		}
	}

	e := &Encoder{
		Numeric:     sortedSet(numericSet),
		Medians:     map[string]float64{},
		Categorical: sortedSet(categoricalSet),
		Levels:      map[string][]string{},
	}

	for _, col := range e.Numeric {
		values := stats.Float64Data{}
		for _, s := range samples {
			if v, ok := s.Numeric[col]; ok && !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		median := 0.0
		if len(values) > 0 {
			var err error
			median, err = values.Median()
			if err != nil {
				return nil, fmt.Errorf("failed to compute median of %s: %w", col, err)
			}
		}
		e.Medians[col] = median
	}

	for _, col := range e.Categorical {
		counts := map[string]int{}
		for _, s := range samples {
			if v, ok := s.Categorical[col]; ok && v != "" {
				counts[v]++
			}
		}
		e.Levels[col] = topLevels(counts, maxCategoryLevels)
	}

	e.buildIndex()
	return e, nil
}

// topLevels keeps the n most frequent levels and returns them sorted
func topLevels(counts map[string]int, n int) []string {
	levels := make([]string, 0, len(counts))
	for k := range counts {
		levels = append(levels, k)
	}
	sort.Slice(levels, func(i, j int) bool {
		if counts[levels[i]] != counts[levels[j]] {
			return counts[levels[i]] > counts[levels[j]]
		}
		return levels[i] < levels[j]
	})
	if len(levels) > n {
		levels = levels[:n]
	}
	sort.Strings(levels)
	return levels
}

func (e *Encoder) buildIndex() {
	e.names = append([]string{}, e.Numeric...)
	e.index = map[string]map[string]int{}
	for _, col := range e.Categorical {
		e.index[col] = map[string]int{}
		for _, level := range e.Levels[col] {
			e.index[col][level] = len(e.names)
			e.names = append(e.names, col+"="+level)
		}
	}
}

// Names is the encoded column order, numeric columns first
func (e *Encoder) Names() []string {
	return append([]string{}, e.names...)
}

func (e *Encoder) Transform(samples []domain.Sample) [][]float64 {
	out := make([][]float64, len(samples))
	for i, s := range samples {
		out[i] = e.encode(s)
	}
	return out
}

func (e *Encoder) encode(s domain.Sample) []float64 {
	row := make([]float64, len(e.names))
	for j, col := range e.Numeric {
		v, ok := s.Numeric[col]
		if !ok || math.IsNaN(v) {
			v = e.Medians[col]
		}
		row[j] = v
	}
	for _, col := range e.Categorical {
		// unseen levels stay all-zero
		if j, ok := e.index[col][s.Categorical[col]]; ok {
			row[j] = 1
		}
	}
	return row
}

func sortedSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
