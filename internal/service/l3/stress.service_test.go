package l3_service

import (
	"creditrisk/internal/domain"
	mock_domain "creditrisk/internal/domain/mocks"
	"creditrisk/internal/logger"
	l2_service "creditrisk/internal/service/l2"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var floatOpt = cmpopts.EquateApprox(0, 1e-9)

// newHalfDebtModel scores pd = debt_ratio / 2, a missing debt_ratio
// scores as 0.5
func newHalfDebtModel(t *testing.T) *mock_domain.MockModel {
	ctrl := gomock.NewController(t)
	model := mock_domain.NewMockModel(ctrl)
	model.EXPECT().Inputs().Return([]string{"balance", "debt_ratio"}).AnyTimes()
	model.EXPECT().FillValue("debt_ratio").Return(0.5, true).AnyTimes()
	model.EXPECT().ScoreProbabilities(gomock.Any()).DoAndReturn(func(samples []domain.Sample) ([]float64, error) {
		out := make([]float64, len(samples))
		for i, s := range samples {
			debt, ok := s.Numeric["debt_ratio"]
			if !ok {
				debt = 0.5
			}
			out[i] = debt * 0.5
		}
		return out, nil
	}).AnyTimes()
	return model
}

func stressSamples() []domain.Sample {
	out := []domain.Sample{}
	for i, d := range []float64{0.2, 0.4, 0.6, 0.8} {
		out = append(out, domain.Sample{
			Key:     fmt.Sprintf("loan-%d", i),
			Numeric: map[string]float64{"debt_ratio": d, "balance": 1000},
		})
	}
	return out
}

func TestStressService_RunScenarios(t *testing.T) {
	handler := NewStressService(StressOptions{
		ExposureFeature: "balance",
		LGD:             0.45,
		PDThreshold:     0.2,
	}, logger.NewNop())

	t.Run("baseline first in configured order", func(t *testing.T) {
		model := newHalfDebtModel(t)
		x := stressSamples()
		scenarios := []domain.Scenario{
			{Name: "adverse", Adjustments: []domain.Adjustment{{Feature: "debt_ratio", Kind: domain.AdjustmentAdditive, Value: 0.2}}},
			{Name: "severe", Adjustments: []domain.Adjustment{{Feature: "debt_ratio", Kind: domain.AdjustmentMultiplicative, Value: 1.5}}},
			{Name: "capped", Adjustments: []domain.Adjustment{{Feature: "debt_ratio", Kind: domain.AdjustmentExpression, Expression: "clamp(x * 2, 0, 0.9)"}}},
			{Name: "overlay", PDMultiplier: 3},
		}
		results, predictions, err := handler.RunScenarios(model, x, []int{0, 0, 1, 1}, scenarios)
		require.NoError(t, err)

		names := []string{}
		for _, r := range results {
			names = append(names, r.Scenario)
		}
		require.Equal(t, []string{"baseline", "adverse", "severe", "capped", "overlay"}, names)
		require.Len(t, predictions, 5)
		require.Equal(t, "overlay", predictions[4].Scenario)

		require.InDelta(t, 0.25, results[0].AveragePD, 1e-12)
		require.Equal(t, 0.0, results[0].PDChange)
		require.Equal(t, 0.0, results[0].PDChangePct)
		require.Equal(t, 0.5, results[0].ShareAboveCut)
		require.Equal(t, 0.5, results[0].ObservedRate)
		require.True(t, decimal.NewFromInt(450).Equal(results[0].ExpectedLoss), results[0].ExpectedLoss.String())
		require.True(t, decimal.NewFromInt(4000).Equal(results[0].ExposureAtRisk))

		require.InDelta(t, 0.35, results[1].AveragePD, 1e-12)
		require.InDelta(t, 0.1, results[1].PDChange, 1e-12)
		require.InDelta(t, 40, results[1].PDChangePct, 1e-9)

		require.InDelta(t, 0.375, results[2].AveragePD, 1e-12)
		require.InDelta(t, 50, results[2].PDChangePct, 1e-9)

		require.Equal(t, "", cmp.Diff([]float64{0.2, 0.4, 0.45, 0.45}, predictions[3].PD, floatOpt))

		// overlay is capped at 1
		require.Equal(t, "", cmp.Diff([]float64{0.3, 0.6, 0.9, 1}, predictions[4].PD, floatOpt))

		// inputs are never mutated
		require.Equal(t, "", cmp.Diff(stressSamples(), x))
	})

	t.Run("configured baseline is not duplicated", func(t *testing.T) {
		model := newHalfDebtModel(t)
		results, _, err := handler.RunScenarios(model, stressSamples(), nil, []domain.Scenario{
			{Name: domain.BaselineScenario},
			{Name: "adverse", Adjustments: []domain.Adjustment{{Feature: "debt_ratio", Value: 0.1}}},
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		require.Equal(t, 0.0, results[0].ObservedRate)
	})

	t.Run("baseline with shocks is rejected", func(t *testing.T) {
		model := newHalfDebtModel(t)
		_, _, err := handler.RunScenarios(model, stressSamples(), nil, []domain.Scenario{
			{Name: domain.BaselineScenario, Adjustments: []domain.Adjustment{{Feature: "debt_ratio", Value: 0.1}}},
		})
		require.Error(t, err)
	})

	t.Run("unknown feature", func(t *testing.T) {
		model := newHalfDebtModel(t)
		_, _, err := handler.RunScenarios(model, stressSamples(), nil, []domain.Scenario{
			{Name: "adverse", Adjustments: []domain.Adjustment{{Feature: "unemployment", Value: 1}}},
		})
		schemaErr := domain.SchemaError{}
		require.ErrorAs(t, err, &schemaErr)
		require.Equal(t, "unemployment", schemaErr.Column)
	})

	t.Run("bad expression", func(t *testing.T) {
		model := newHalfDebtModel(t)
		_, _, err := handler.RunScenarios(model, stressSamples(), nil, []domain.Scenario{
			{Name: "adverse", Adjustments: []domain.Adjustment{{Feature: "debt_ratio", Kind: domain.AdjustmentExpression, Expression: "x +"}}},
		})
		require.Error(t, err)
	})

	t.Run("expression reads other features", func(t *testing.T) {
		model := newHalfDebtModel(t)
		_, predictions, err := handler.RunScenarios(model, stressSamples(), nil, []domain.Scenario{
			{Name: "adverse", Adjustments: []domain.Adjustment{{Feature: "debt_ratio", Kind: domain.AdjustmentExpression, Expression: "x + balance / 10000"}}},
		})
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff([]float64{0.15, 0.25, 0.35, 0.45}, predictions[1].PD, floatOpt))
	})

	t.Run("missing feature is shocked from its fill value", func(t *testing.T) {
		model := newHalfDebtModel(t)
		x := stressSamples()
		delete(x[0].Numeric, "debt_ratio")
		_, predictions, err := handler.RunScenarios(model, x, nil, []domain.Scenario{
			{Name: "adverse", Adjustments: []domain.Adjustment{{Feature: "debt_ratio", Value: 0.2}}},
		})
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff([]float64{0.25, 0.2, 0.3, 0.4}, predictions[0].PD, floatOpt))
		require.Equal(t, "", cmp.Diff([]float64{0.35, 0.3, 0.4, 0.5}, predictions[1].PD, floatOpt))
		_, ok := x[0].Numeric["debt_ratio"]
		require.False(t, ok)
	})

	t.Run("nil logger", func(t *testing.T) {
		model := newHalfDebtModel(t)
		results, _, err := NewStressService(StressOptions{}, nil).RunScenarios(model, stressSamples(), nil, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
	})

	t.Run("empty input", func(t *testing.T) {
		model := newHalfDebtModel(t)
		_, _, err := handler.RunScenarios(model, nil, nil, nil)
		require.ErrorAs(t, err, &domain.EmptyResultError{})

		_, _, err = handler.RunScenarios(model, stressSamples(), []int{1}, nil)
		require.ErrorAs(t, err, &domain.SchemaError{})
	})
}

func TestStressService_MonotonicWithTrainedModel(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	x := []domain.Sample{}
	y := []int{}
	for i := 0; i < 2000; i++ {
		debt := rng.Float64()
		income := 30 + rng.Float64()*90
		z := -2 + 3*debt - 0.02*(income-75)
		label := 0
		if rng.Float64() < 1/(1+math.Exp(-z)) {
			label = 1
		}
		x = append(x, domain.Sample{
			Key:     fmt.Sprintf("loan-%d", i),
			Numeric: map[string]float64{"debt_ratio": debt, "income": income},
		})
		y = append(y, label)
	}

	riskModel := l2_service.NewRiskModelService(42, nil, logger.NewNop())
	model, err := riskModel.Train(l2_service.TrainInput{X: x, Y: y, Algorithm: domain.AlgorithmLogistic, Target: domain.TargetDefault12m})
	require.NoError(t, err)

	handler := NewStressService(StressOptions{PDThreshold: 0.3}, logger.NewNop())
	results, _, err := handler.RunScenarios(model, x, y, []domain.Scenario{
		{Name: "adverse", Adjustments: []domain.Adjustment{
			{Feature: "debt_ratio", Kind: domain.AdjustmentAdditive, Value: 0.1},
			{Feature: "income", Kind: domain.AdjustmentMultiplicative, Value: 0.95},
		}},
		{Name: "severe", Adjustments: []domain.Adjustment{
			{Feature: "debt_ratio", Kind: domain.AdjustmentAdditive, Value: 0.25},
			{Feature: "income", Kind: domain.AdjustmentMultiplicative, Value: 0.85},
		}},
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, results[1].AveragePD, results[0].AveragePD)
	require.GreaterOrEqual(t, results[2].AveragePD, results[1].AveragePD)
	require.GreaterOrEqual(t, results[2].ShareAboveCut, results[0].ShareAboveCut)
	require.True(t, results[0].ExpectedLoss.IsZero())
}

func TestStressService_MissingFeatureWithTrainedModel(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	x := []domain.Sample{}
	y := []int{}
	for i := 0; i < 1000; i++ {
		debt := rng.Float64()
		label := 0
		if rng.Float64() < 1/(1+math.Exp(-(-2+4*debt))) {
			label = 1
		}
		x = append(x, domain.Sample{
			Key:     fmt.Sprintf("loan-%d", i),
			Numeric: map[string]float64{"debt_ratio": debt},
		})
		y = append(y, label)
	}
	riskModel := l2_service.NewRiskModelService(42, nil, logger.NewNop())
	model, err := riskModel.Train(l2_service.TrainInput{X: x, Y: y, Algorithm: domain.AlgorithmLogistic, Target: domain.TargetDefault12m})
	require.NoError(t, err)

	test := []domain.Sample{{Key: "no-debt", Numeric: map[string]float64{}}}
	handler := NewStressService(StressOptions{PDThreshold: 0.5}, logger.NewNop())
	results, _, err := handler.RunScenarios(model, test, nil, []domain.Scenario{
		{Name: "severe", Adjustments: []domain.Adjustment{{Feature: "debt_ratio", Value: 0.5}}},
	})
	require.NoError(t, err)
	require.Greater(t, results[1].AveragePD, results[0].AveragePD)
	require.Greater(t, results[1].PDChangePct, 0.0)
}
