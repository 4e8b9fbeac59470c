package metrics

import (
	"creditrisk/internal/domain"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "creditrisk"

// RunMetrics holds the gauges for one pipeline run. each run gets its own
// registry so textfile exports never mix runs
type RunMetrics struct {
	registry *prometheus.Registry

	DatasetRows   *prometheus.GaugeVec
	CensoredRows  *prometheus.GaugeVec
	ModelMetric   *prometheus.GaugeVec
	ScenarioPD    *prometheus.GaugeVec
	StageDuration *prometheus.GaugeVec
}

func NewRunMetrics(runID string) *RunMetrics {
	labels := prometheus.Labels{"run_id": runID}
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		DatasetRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "dataset",
				Name:        "rows",
				Help:        "Rows in each built dataset",
				ConstLabels: labels,
			},
			[]string{"dataset"},
		),
		CensoredRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "dataset",
				Name:        "dropped_rows",
				Help:        "Rows dropped while building datasets, by reason",
				ConstLabels: labels,
			},
			[]string{"reason"},
		),
		ModelMetric: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "model",
				Name:        "evaluation",
				Help:        "Held-out evaluation metrics per model",
				ConstLabels: labels,
			},
			[]string{"model", "metric"},
		),
		ScenarioPD: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "stress",
				Name:        "average_pd",
				Help:        "Average predicted PD per stress scenario",
				ConstLabels: labels,
			},
			[]string{"scenario"},
		),
		StageDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "pipeline",
				Name:        "stage_duration_ms",
				Help:        "Wall time per pipeline stage",
				ConstLabels: labels,
			},
			[]string{"stage"},
		),
	}
	m.registry.MustRegister(m.DatasetRows, m.CensoredRows, m.ModelMetric, m.ScenarioPD, m.StageDuration)
	return m
}

func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe copies a finished run's numbers into the gauges
func (m *RunMetrics) Observe(report domain.Report) {
	m.DatasetRows.WithLabelValues("origination").Set(float64(report.OriginationRows))
	m.DatasetRows.WithLabelValues("monitoring").Set(float64(report.MonitoringRows))

	c := report.Censoring
	m.CensoredRows.WithLabelValues("rejected").Set(float64(c.RejectedApplications))
	m.CensoredRows.WithLabelValues("without_performance").Set(float64(c.WithoutPerformance))
	m.CensoredRows.WithLabelValues("censored_origination").Set(float64(c.CensoredOrigination))
	m.CensoredRows.WithLabelValues("censored_monitoring").Set(float64(c.CensoredMonitoring))
	m.CensoredRows.WithLabelValues("sampled_out_monitoring").Set(float64(c.SampledOutMonitoring))

	models := []domain.ModelReport{report.OriginationModel}
	if report.MonitoringModel != nil {
		models = append(models, *report.MonitoringModel)
	}
	for _, model := range models {
		e := model.Evaluation
		if e == nil {
			continue
		}
		m.ModelMetric.WithLabelValues(model.Name, "auc").Set(e.AUC)
		m.ModelMetric.WithLabelValues(model.Name, "gini").Set(e.Gini)
		m.ModelMetric.WithLabelValues(model.Name, "ks").Set(e.KS)
		m.ModelMetric.WithLabelValues(model.Name, "brier").Set(e.Brier)
		m.ModelMetric.WithLabelValues(model.Name, "observed_rate").Set(e.ObservedRate)
		m.ModelMetric.WithLabelValues(model.Name, "mean_predicted").Set(e.MeanPredicted)
	}

	for _, r := range report.Stress {
		m.ScenarioPD.WithLabelValues(r.Scenario).Set(r.AveragePD)
	}

	if report.Profile != nil {
		for _, s := range report.Profile.Spans {
			if s.Elapsed != nil {
				m.StageDuration.WithLabelValues(s.Name).Set(float64(*s.Elapsed))
			}
		}
	}
}

// WriteTextfile exports the registry in the node_exporter textfile format
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
