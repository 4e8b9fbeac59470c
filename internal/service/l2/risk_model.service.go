package l2_service

import (
	"creditrisk/internal/calculator"
	"creditrisk/internal/domain"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

type RiskModelService interface {
	// PrepareFeatures extracts model inputs and the 0/1 target from a
	// dataset, dropping excluded columns
	PrepareFeatures(ds domain.Dataset, target string) ([]domain.Sample, []int, error)
	Split(x []domain.Sample, y []int, opts SplitOptions) (*SplitResult, error)
	Train(in TrainInput) (domain.Model, error)
	Evaluate(model domain.Model, x []domain.Sample, y []int) (*domain.Evaluation, error)
	FeatureImportance(model domain.Model, topN int) []domain.FeatureImportance
}

type TrainInput struct {
	X         []domain.Sample
	Y         []int
	Algorithm domain.Algorithm
	Target    string
}

type riskModelServiceHandler struct {
	Seed           int64
	ExcludeColumns []string
	Logger         *zap.SugaredLogger
}

func NewRiskModelService(seed int64, excludeColumns []string, logger *zap.SugaredLogger) RiskModelService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return riskModelServiceHandler{
		Seed:           seed,
		ExcludeColumns: excludeColumns,
		Logger:         logger,
	}
}

func (h riskModelServiceHandler) PrepareFeatures(ds domain.Dataset, target string) ([]domain.Sample, []int, error) {
	if target == "" {
		target = ds.Target
	}
	if len(ds.Rows) == 0 {
		return nil, nil, domain.EmptyResultError{Stage: "feature preparation", Reason: fmt.Sprintf("dataset %s has no rows", ds.Name)}
	}

	excluded := map[string]bool{target: true}
	for _, c := range h.ExcludeColumns {
		excluded[c] = true
	}
	for _, r := range ds.Rows {
		for label := range r.Labels {
			excluded[label] = true
		}
	}

	samples := make([]domain.Sample, 0, len(ds.Rows))
	labels := make([]int, 0, len(ds.Rows))
	for _, r := range ds.Rows {
		label, ok := r.Labels[target]
		if !ok {
			return nil, nil, domain.SchemaError{Table: ds.Name, Column: target, Message: fmt.Sprintf("row %s has no target", r.Key)}
		}
		if label != 0 && label != 1 {
			return nil, nil, domain.SchemaError{Table: ds.Name, Column: target, Message: fmt.Sprintf("row %s has non-binary target %d", r.Key, label)}
		}
		s := domain.Sample{
			Key:         r.Key,
			Time:        r.AsOf,
			Numeric:     map[string]float64{},
			Categorical: map[string]string{},
		}
		for k, v := range r.Numeric {
			if !excluded[k] {
				s.Numeric[k] = v
			}
		}
		for k, v := range r.Categorical {
			if !excluded[k] {
				s.Categorical[k] = v
			}
		}
		samples = append(samples, s)
		labels = append(labels, label)
	}
	return samples, labels, nil
}

func (h riskModelServiceHandler) Split(x []domain.Sample, y []int, opts SplitOptions) (*SplitResult, error) {
	out, err := split(x, y, opts)
	if err != nil {
		return nil, err
	}
	h.Logger.Infow(
		"split samples",
		"mode", opts.Mode,
		"train", len(out.TrainX),
		"test", len(out.TestX),
	)
	return out, nil
}

func (h riskModelServiceHandler) Train(in TrainInput) (domain.Model, error) {
	if len(in.X) != len(in.Y) {
		return nil, domain.SchemaError{Table: "training", Message: fmt.Sprintf("got %d samples but %d labels", len(in.X), len(in.Y))}
	}
	learner, err := NewLearner(in.Algorithm, h.Seed)
	if err != nil {
		return nil, err
	}
	encoder, err := FitEncoder(in.X)
	if err != nil {
		return nil, err
	}
	for _, v := range in.Y {
		if v != 0 && v != 1 {
			return nil, domain.SchemaError{Table: "training", Column: in.Target, Message: fmt.Sprintf("non-binary label %d", v)}
		}
	}

	predictor, err := learner.Fit(encoder.Transform(in.X), in.Y)
	if err != nil {
		return nil, fmt.Errorf("failed to fit %s: %w", in.Algorithm, err)
	}
	h.Logger.Infow(
		"trained model",
		"algorithm", in.Algorithm,
		"target", in.Target,
		"rows", len(in.X),
		"features", len(encoder.Names()),
	)

	return trainedModel{
		algorithm: in.Algorithm,
		target:    in.Target,
		encoder:   encoder,
		predictor: predictor,
	}, nil
}

func (h riskModelServiceHandler) Evaluate(model domain.Model, x []domain.Sample, y []int) (*domain.Evaluation, error) {
	if len(x) != len(y) {
		return nil, domain.SchemaError{Table: "evaluation", Message: fmt.Sprintf("got %d samples but %d labels", len(x), len(y))}
	}
	positives := 0
	for _, v := range y {
		positives += v
	}
	if positives == 0 || positives == len(y) {
		return nil, domain.EmptyResultError{
			Stage:  "evaluation",
			Reason: fmt.Sprintf("test set of %d rows has a single class", len(y)),
		}
	}

	proba, err := model.ScoreProbabilities(x)
	if err != nil {
		return nil, fmt.Errorf("failed to score test set: %w", err)
	}
	metrics, err := calculator.CalculateClassificationMetrics(y, proba)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate metrics: %w", err)
	}

	return domain.NewEvaluation(domain.Evaluation{
		Algorithm:     model.Algorithm(),
		Target:        model.Target(),
		AUC:           metrics.AUC,
		Gini:          metrics.Gini,
		KS:            metrics.KS,
		LogLoss:       metrics.LogLoss,
		Brier:         metrics.Brier,
		MeanPredicted: metrics.MeanPredicted,
		ObservedRate:  metrics.ObservedRate,
		Count:         metrics.Count,
		Defaults:      metrics.Positives,
	}, proba, y), nil
}

func (h riskModelServiceHandler) FeatureImportance(model domain.Model, topN int) []domain.FeatureImportance {
	out := append([]domain.FeatureImportance{}, model.Importances()...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Feature < out[j].Feature
	})
	if topN > 0 && topN < len(out) {
		out = out[:topN]
	}
	return out
}
