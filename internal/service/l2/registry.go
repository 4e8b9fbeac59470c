package l2_service

import (
	"creditrisk/internal/domain"
	"fmt"
	"math"
	"sort"
)

// Learner fits one algorithm on an encoded matrix
type Learner interface {
	Fit(x [][]float64, y []int) (Predictor, error)
}

// Predictor is a fitted learner. importances are indexed like the
// encoded columns
type Predictor interface {
	PredictProba(row []float64) float64
	Importances() []float64
}

type learnerFactory func(seed int64) Learner

var learners = map[domain.Algorithm]learnerFactory{
	domain.AlgorithmLogistic: func(seed int64) Learner {
		return newLogisticLearner()
	},
	domain.AlgorithmRandomForest: func(seed int64) Learner {
		return newForestLearner(seed)
	},
	domain.AlgorithmGradientBoosting: func(seed int64) Learner {
		return newBoostingLearner()
	},
}

func SupportedAlgorithms() []string {
	out := []string{}
	for k := range learners {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

func NewLearner(algorithm domain.Algorithm, seed int64) (Learner, error) {
	factory, ok := learners[algorithm]
	if !ok {
		return nil, domain.UnsupportedModelError{
			Algorithm: string(algorithm),
			Supported: SupportedAlgorithms(),
		}
	}
	return factory(seed), nil
}

// trainedModel pairs a predictor with the encoder it was trained on
type trainedModel struct {
	algorithm domain.Algorithm
	target    string
	encoder   *Encoder
	predictor Predictor
}

func (m trainedModel) ScoreProbabilities(samples []domain.Sample) ([]float64, error) {
	out := make([]float64, len(samples))
	for i, s := range samples {
		p := m.predictor.PredictProba(m.encoder.encode(s))
		if math.IsNaN(p) {
			return nil, fmt.Errorf("model produced NaN for sample %s", s.Key)
		}
		out[i] = p
	}
	return out, nil
}

func (m trainedModel) Importances() []domain.FeatureImportance {
	names := m.encoder.Names()
	raw := m.predictor.Importances()
	out := make([]domain.FeatureImportance, len(names))
	for i, name := range names {
		out[i] = domain.FeatureImportance{Feature: name, Importance: raw[i]}
	}
	return out
}

func (m trainedModel) Features() []string {
	return m.encoder.Names()
}

func (m trainedModel) Inputs() []string {
	return append([]string{}, m.encoder.Numeric...)
}

func (m trainedModel) FillValue(feature string) (float64, bool) {
	v, ok := m.encoder.Medians[feature]
	return v, ok
}

func (m trainedModel) Target() string {
	return m.target
}

func (m trainedModel) Algorithm() domain.Algorithm {
	return m.algorithm
}
