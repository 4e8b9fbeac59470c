package domain

import "time"

//go:generate mockgen -source=model.go -destination=mocks/mock_model.go -package=mock_domain

type Algorithm string

const (
	AlgorithmLogistic         Algorithm = "logistic"
	AlgorithmRandomForest     Algorithm = "random_forest"
	AlgorithmGradientBoosting Algorithm = "gradient_boosting"
)

// Sample is one row of model inputs before encoding
type Sample struct {
	Key         string
	Time        time.Time
	Numeric     map[string]float64
	Categorical map[string]string
}

// Clone deep copies the feature maps
func (s Sample) Clone() Sample {
	out := Sample{
		Key:         s.Key,
		Time:        s.Time,
		Numeric:     make(map[string]float64, len(s.Numeric)),
		Categorical: make(map[string]string, len(s.Categorical)),
	}
	for k, v := range s.Numeric {
		out.Numeric[k] = v
	}
	for k, v := range s.Categorical {
		out.Categorical[k] = v
	}
	return out
}

type FeatureImportance struct {
	Feature    string  `csv:"feature"`
	Importance float64 `csv:"importance"`
}

// Model is a trained PD model. implementations are immutable once
// trained and safe for concurrent reads
type Model interface {
	ScoreProbabilities(samples []Sample) ([]float64, error)
	Importances() []FeatureImportance
	// Features is the ordered encoded feature schema
	Features() []string
	// Inputs lists the raw numeric columns the model reads
	Inputs() []string
	// FillValue is what the model scores when a numeric input is missing
	FillValue(feature string) (float64, bool)
	Target() string
	Algorithm() Algorithm
}
