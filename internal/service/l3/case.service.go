package l3_service

import (
	"creditrisk/internal/domain"
	"fmt"
	"math"
	"sort"
)

type CaseService interface {
	// Compare returns the k riskiest and k safest cases and contrasts the
	// single riskiest case with the single safest one
	Compare(model domain.Model, x []domain.Sample, k int) (*domain.CaseComparison, error)
}

type caseServiceHandler struct{}

func NewCaseService() CaseService {
	return caseServiceHandler{}
}

func (h caseServiceHandler) Compare(model domain.Model, x []domain.Sample, k int) (*domain.CaseComparison, error) {
	if len(x) == 0 {
		return nil, domain.EmptyResultError{Stage: "case comparison", Reason: "no samples"}
	}
	if k < 1 {
		return nil, fmt.Errorf("case count must be positive, got %d", k)
	}
	if k > len(x) {
		k = len(x)
	}

	pd, err := model.ScoreProbabilities(x)
	if err != nil {
		return nil, fmt.Errorf("failed to score cases: %w", err)
	}

	// riskiest first, key breaks ties
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if pd[order[a]] != pd[order[b]] {
			return pd[order[a]] > pd[order[b]]
		}
		return x[order[a]].Key < x[order[b]].Key
	})

	out := &domain.CaseComparison{}
	for r := 0; r < k; r++ {
		i := order[r]
		out.HighRisk = append(out.HighRisk, newCaseSummary(fmt.Sprintf("high_%d", r+1), x[i], pd[i]))
	}
	for r := 0; r < k; r++ {
		i := order[len(order)-1-r]
		out.LowRisk = append(out.LowRisk, newCaseSummary(fmt.Sprintf("low_%d", r+1), x[i], pd[i]))
	}

	out.Contrasts = contrast(model, x[order[0]], x[order[len(order)-1]])
	return out, nil
}

func newCaseSummary(label string, s domain.Sample, pd float64) domain.CaseSummary {
	return domain.CaseSummary{
		Label:   label,
		Key:     s.Key,
		PD:      pd,
		Numeric: s.Clone().Numeric,
	}
}

// contrast ranks numeric inputs by how far apart the two cases are,
// weighted by the model's importance of that input
func contrast(model domain.Model, high, low domain.Sample) []domain.FeatureContrast {
	weights := map[string]float64{}
	for _, fi := range model.Importances() {
		weights[fi.Feature] = fi.Importance
	}

	out := []domain.FeatureContrast{}
	for _, f := range model.Inputs() {
		hv, hok := high.Numeric[f]
		lv, lok := low.Numeric[f]
		if !hok || !lok {
			continue
		}
		out = append(out, domain.FeatureContrast{
			Feature:    f,
			HighRisk:   hv,
			LowRisk:    lv,
			Difference: hv - lv,
			Weight:     weights[f],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		si := math.Abs(out[i].Difference) * out[i].Weight
		sj := math.Abs(out[j].Difference) * out[j].Weight
		if si != sj {
			return si > sj
		}
		return out[i].Feature < out[j].Feature
	})
	return out
}
