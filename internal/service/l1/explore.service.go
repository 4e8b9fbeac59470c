package l1_service

import (
	"creditrisk/internal/domain"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

type ExploreService interface {
	// Summarize describes every numeric column and its correlation
	// with the dataset target, strongest correlation first
	Summarize(ds domain.Dataset) ([]domain.FeatureSummary, error)
}

type exploreServiceHandler struct{}

func NewExploreService() ExploreService {
	return exploreServiceHandler{}
}

func (h exploreServiceHandler) Summarize(ds domain.Dataset) ([]domain.FeatureSummary, error) {
	if len(ds.Rows) == 0 {
		return nil, domain.EmptyResultError{Stage: "feature summary", Reason: "dataset has no rows"}
	}

	out := []domain.FeatureSummary{}
	for _, col := range ds.NumericColumns() {
		values := stats.Float64Data{}
		labels := stats.Float64Data{}
		for _, r := range ds.Rows {
			v, ok := r.Numeric[col]
			if !ok || math.IsNaN(v) {
				continue
			}
			values = append(values, v)
			labels = append(labels, float64(r.Labels[ds.Target]))
		}
		summary, err := summarizeColumn(col, values, labels)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize %s: %w", col, err)
		}
		summary.Missing = len(ds.Rows) - len(values)
		out = append(out, *summary)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := math.Abs(out[i].Correlation), math.Abs(out[j].Correlation)
		if ci != cj {
			return ci > cj
		}
		return out[i].Feature < out[j].Feature
	})
	return out, nil
}

func summarizeColumn(col string, values, labels stats.Float64Data) (*domain.FeatureSummary, error) {
	s := &domain.FeatureSummary{
		Feature: col,
		Count:   len(values),
	}
	if len(values) == 0 {
		return s, nil
	}

	var err error
	if s.Mean, err = values.Mean(); err != nil {
		return nil, err
	}
	if s.Min, err = values.Min(); err != nil {
		return nil, err
	}
	if s.Max, err = values.Max(); err != nil {
		return nil, err
	}
	if s.Median, err = values.Median(); err != nil {
		return nil, err
	}
	if s.P25, err = values.PercentileNearestRank(25); err != nil {
		return nil, err
	}
	if s.P75, err = values.PercentileNearestRank(75); err != nil {
		return nil, err
	}
	if len(values) > 1 {
		if s.Stdev, err = values.StandardDeviationSample(); err != nil {
			return nil, err
		}
	}

	// correlation is undefined for constant columns or labels
	if s.Stdev > 0 {
		if sd, _ := labels.StandardDeviationSample(); sd > 0 {
			corr, err := stats.Correlation(values, labels)
			if err != nil {
				return nil, err
			}
			s.Correlation = corr
		}
	}
	return s, nil
}
