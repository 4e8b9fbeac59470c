package config

import (
	"creditrisk/internal/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	require.Equal(t, 0.3, c.TestFraction)
	require.Equal(t, "temporal", c.SplitMode)
	require.Equal(t, int64(42), c.Seed)
	require.Equal(t, "gradient_boosting", c.Algorithm)
	require.Equal(t, 10, c.NBands)
	require.Equal(t, "application_id", c.Columns.ApplicationID)
	require.Equal(t, 2, c.CompareCohorts.AutoSize)
	require.Len(t, c.Scenarios, 3)
	require.Equal(t, domain.BaselineScenario, c.Scenarios[0].Name)
}

func TestParse(t *testing.T) {
	t.Run("file values win over defaults", func(t *testing.T) {
		c, err := Parse([]byte(`
algorithm: logistic
nBands: 5
columns:
  applicationId: loan_id
scenarios:
  - name: adverse
    adjustments:
      - feature: unemployment_rate
        value: 2
  - name: severe
    adjustments:
      - feature: income
        kind: multiplicative
        value: 0.8
`))
		require.NoError(t, err)
		require.Equal(t, "logistic", c.Algorithm)
		require.Equal(t, 5, c.NBands)
		require.Equal(t, "loan_id", c.Columns.ApplicationID)
		require.Equal(t, "origination_date", c.Columns.OriginationDate)
		require.Len(t, c.Scenarios, 2)
		require.Equal(t, domain.AdjustmentAdditive, c.Scenarios[0].Adjustments[0].Kind)
		require.Equal(t, domain.AdjustmentMultiplicative, c.Scenarios[1].Adjustments[0].Kind)
	})

	t.Run("explicit zeros are kept", func(t *testing.T) {
		c, err := Parse([]byte("seed: 0\nmonitoringSampleSize: 0\ntopFeatures: 0\n"))
		require.NoError(t, err)
		require.Equal(t, int64(0), c.Seed)
		require.Equal(t, 0, c.MonitoringSampleSize)
		require.Equal(t, 0, c.TopFeatures)
		require.Equal(t, 10, c.NBands)
	})

	t.Run("explicit zero still validated", func(t *testing.T) {
		_, err := Parse([]byte("nBands: 0"))
		require.Error(t, err)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("CREDITRISK_ALGORITHM", "random_forest")
		t.Setenv("CREDITRISK_SEED", "7")
		c, err := Parse([]byte(`algorithm: logistic`))
		require.NoError(t, err)
		require.Equal(t, "random_forest", c.Algorithm)
		require.Equal(t, int64(7), c.Seed)
	})

	t.Run("rejects unknown algorithm", func(t *testing.T) {
		_, err := Parse([]byte(`algorithm: neural_net`))
		require.Error(t, err)
	})

	t.Run("rejects test fraction out of range", func(t *testing.T) {
		_, err := Parse([]byte(`testFraction: 1.5`))
		require.Error(t, err)
	})

	t.Run("rejects baseline with adjustments", func(t *testing.T) {
		_, err := Parse([]byte(`
scenarios:
  - name: baseline
    adjustments:
      - feature: income
        value: 1
`))
		require.ErrorContains(t, err, "baseline")
	})

	t.Run("expression adjustment requires expression", func(t *testing.T) {
		_, err := Parse([]byte(`
scenarios:
  - name: adverse
    adjustments:
      - feature: income
        kind: expression
`))
		require.Error(t, err)
	})

	t.Run("one sided cohort comparison", func(t *testing.T) {
		_, err := Parse([]byte(`
compareCohorts:
  a: ["2020Q1", "2020Q2"]
`))
		require.Error(t, err)
	})
}

func TestLoad_example(t *testing.T) {
	c, err := Load("../../config.example.yaml")
	require.NoError(t, err)

	require.Len(t, c.Scenarios, 3)
	require.Equal(t, domain.AdjustmentAdditive, c.Scenarios[1].Adjustments[0].Kind)
	require.Equal(t, domain.AdjustmentExpression, c.Scenarios[2].Adjustments[0].Kind)
	require.Equal(t, 1.2, c.Scenarios[2].PDMultiplier)
	require.Equal(t, "loan_amount", c.ExposureFeature)
}
