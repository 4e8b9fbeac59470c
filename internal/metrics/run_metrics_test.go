package metrics

import (
	"creditrisk/internal/domain"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRunMetrics(t *testing.T) {
	m := NewRunMetrics("run-1")
	m.Observe(domain.Report{
		OriginationRows: 120,
		MonitoringRows:  900,
		Censoring:       domain.CensoringReport{CensoredOrigination: 7},
		OriginationModel: domain.ModelReport{
			Name:       "origination",
			Evaluation: domain.NewEvaluation(domain.Evaluation{AUC: 0.71}, nil, nil),
		},
		Stress: []domain.ScenarioResult{{Scenario: "baseline", AveragePD: 0.12}},
	})

	require.Equal(t, 120.0, testutil.ToFloat64(m.DatasetRows.WithLabelValues("origination")))
	require.Equal(t, 7.0, testutil.ToFloat64(m.CensoredRows.WithLabelValues("censored_origination")))
	require.Equal(t, 0.71, testutil.ToFloat64(m.ModelMetric.WithLabelValues("origination", "auc")))
	require.Equal(t, 0.12, testutil.ToFloat64(m.ScenarioPD.WithLabelValues("baseline")))

	path := filepath.Join(t.TempDir(), "creditrisk.prom")
	require.NoError(t, m.WriteTextfile(path))
	bytes, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(bytes), `creditrisk_stress_average_pd{run_id="run-1",scenario="baseline"} 0.12`))
}
