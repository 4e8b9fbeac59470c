package l3_service

import (
	"creditrisk/internal/domain"
	mock_domain "creditrisk/internal/domain/mocks"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCaseService_Compare(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := mock_domain.NewMockModel(ctrl)

	x := []domain.Sample{
		{Key: "a", Numeric: map[string]float64{"debt_ratio": 0.9, "income": 20, "age": 30}},
		{Key: "b", Numeric: map[string]float64{"debt_ratio": 0.1, "income": 90, "age": 50}},
		{Key: "c", Numeric: map[string]float64{"debt_ratio": 0.5, "income": 60, "age": 40}},
		{Key: "d", Numeric: map[string]float64{"debt_ratio": 0.5, "income": 60}},
	}
	model.EXPECT().ScoreProbabilities(x).Return([]float64{0.8, 0.05, 0.3, 0.3}, nil).AnyTimes()
	model.EXPECT().Inputs().Return([]string{"age", "debt_ratio", "income"}).AnyTimes()
	model.EXPECT().Importances().Return([]domain.FeatureImportance{
		{Feature: "age", Importance: 0.1},
		{Feature: "debt_ratio", Importance: 0.6},
		{Feature: "income", Importance: 0.3},
		{Feature: "purpose=car", Importance: 0.2},
	}).AnyTimes()

	handler := NewCaseService()
	out, err := handler.Compare(model, x, 2)
	require.NoError(t, err)

	require.Equal(t, []string{"a", "c"}, caseKeys(out.HighRisk))
	require.Equal(t, []string{"b", "d"}, caseKeys(out.LowRisk))
	require.Equal(t, "high_1", out.HighRisk[0].Label)
	require.Equal(t, "low_1", out.LowRisk[0].Label)

	// income: 70 * 0.3 = 21, age: 20 * 0.1 = 2, debt_ratio: 0.8 * 0.6 = 0.48
	require.Equal(
		t,
		"",
		cmp.Diff(
			[]domain.FeatureContrast{
				{Feature: "income", HighRisk: 20, LowRisk: 90, Difference: -70, Weight: 0.3},
				{Feature: "age", HighRisk: 30, LowRisk: 50, Difference: -20, Weight: 0.1},
				{Feature: "debt_ratio", HighRisk: 0.9, LowRisk: 0.1, Difference: 0.8, Weight: 0.6},
			},
			out.Contrasts,
			floatOpt,
		),
	)

	// summaries own their maps
	out.HighRisk[0].Numeric["income"] = 0
	require.Equal(t, 20.0, x[0].Numeric["income"])

	t.Run("k larger than the sample", func(t *testing.T) {
		out, err := handler.Compare(model, x, 10)
		require.NoError(t, err)
		require.Len(t, out.HighRisk, 4)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := handler.Compare(model, nil, 2)
		require.ErrorAs(t, err, &domain.EmptyResultError{})
		_, err = handler.Compare(model, x, 0)
		require.Error(t, err)
	})
}

func caseKeys(cases []domain.CaseSummary) []string {
	out := []string{}
	for _, c := range cases {
		out = append(out, c.Key)
	}
	return out
}
