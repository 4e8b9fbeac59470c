package repository

import (
	"creditrisk/internal/domain"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gocarina/gocsv"
)

// ResultsRepository persists a run's result tables as csv files in one
// directory per run
type ResultsRepository interface {
	Write(dir string, report domain.Report) ([]string, error)
}

type resultsRepositoryHandler struct{}

func NewResultsRepository() ResultsRepository {
	return resultsRepositoryHandler{}
}

type curveRow struct {
	Cohort string `csv:"cohort"`
	Loans  int    `csv:"loans"`
	domain.CurvePoint
}

type evaluationRow struct {
	Model         string  `csv:"model"`
	Dataset       string  `csv:"dataset"`
	Algorithm     string  `csv:"algorithm"`
	SplitMode     string  `csv:"split_mode"`
	TrainRows     int     `csv:"train_rows"`
	TestRows      int     `csv:"test_rows"`
	AUC           float64 `csv:"auc"`
	Gini          float64 `csv:"gini"`
	KS            float64 `csv:"ks"`
	LogLoss       float64 `csv:"log_loss"`
	Brier         float64 `csv:"brier"`
	MeanPredicted float64 `csv:"mean_predicted_pd"`
	ObservedRate  float64 `csv:"observed_default_rate"`
	Defaults      int     `csv:"test_defaults"`
}

type caseRow struct {
	Label string  `csv:"case"`
	Key   string  `csv:"key"`
	PD    float64 `csv:"pd"`
}

type keyValueRow struct {
	Key   string `csv:"key"`
	Value string `csv:"value"`
}

func (h resultsRepositoryHandler) Write(dir string, report domain.Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results dir: %w", err)
	}
	written := []string{}
	write := func(name string, rows interface{}) error {
		path := filepath.Join(dir, name)
		if err := marshalFile(path, rows); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	if err := write("censoring_report.csv", censoringRows(report)); err != nil {
		return nil, err
	}
	for _, ds := range []domain.Dataset{report.Origination, report.Monitoring} {
		if len(ds.Rows) == 0 {
			continue
		}
		path := filepath.Join(dir, ds.Name+"_dataset.csv")
		if err := writeDataset(path, ds); err != nil {
			return nil, fmt.Errorf("failed to write %s dataset: %w", ds.Name, err)
		}
		written = append(written, path)
	}

	if len(report.Curves.Order) > 0 {
		if err := write("cohort_curves.csv", curveRows(report.Curves)); err != nil {
			return nil, err
		}
	}
	for _, v := range report.Vintages {
		if err := write("vintage_"+string(v.Granularity)+".csv", curveRows(v)); err != nil {
			return nil, err
		}
	}
	if report.Comparison != nil {
		if err := write("cohort_comparison.csv", &report.Comparison.Rows); err != nil {
			return nil, err
		}
	}
	if len(report.Features) > 0 {
		if err := write("feature_summary.csv", &report.Features); err != nil {
			return nil, err
		}
	}

	models := []domain.ModelReport{report.OriginationModel}
	if report.MonitoringModel != nil {
		models = append(models, *report.MonitoringModel)
	}
	evalRows := []evaluationRow{}
	for _, m := range models {
		if m.Evaluation == nil {
			continue
		}
		evalRows = append(evalRows, newEvaluationRow(m))
		importance := m.Importance
		if err := write("feature_importance_"+m.Name+".csv", &importance); err != nil {
			return nil, err
		}
	}
	if err := write("model_evaluation.csv", &evalRows); err != nil {
		return nil, err
	}

	if report.Calibration != nil {
		if err := write("pd_bands.csv", &report.Calibration.Bands); err != nil {
			return nil, err
		}
	}
	if len(report.Stress) > 0 {
		if err := write("stress_results.csv", &report.Stress); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, "scenario_predictions.csv")
		if err := writeScenarioPredictions(path, report.TestKeys, report.ScenarioPredictions); err != nil {
			return nil, fmt.Errorf("failed to write scenario predictions: %w", err)
		}
		written = append(written, path)
	}

	if report.Cases != nil {
		cases := []caseRow{}
		for _, c := range append(append([]domain.CaseSummary{}, report.Cases.HighRisk...), report.Cases.LowRisk...) {
			cases = append(cases, caseRow{Label: c.Label, Key: c.Key, PD: c.PD})
		}
		if err := write("case_comparison.csv", &cases); err != nil {
			return nil, err
		}
		if err := write("risk_differences.csv", &report.Cases.Contrasts); err != nil {
			return nil, err
		}
	}

	if report.Deployment != nil {
		if err := write("deployment_summary.csv", deploymentRows(*report.Deployment)); err != nil {
			return nil, err
		}
	}

	if report.Profile != nil {
		bytes, err := report.Profile.ToJsonBytes()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize profile: %w", err)
		}
		path := filepath.Join(dir, "profile.json")
		if err := os.WriteFile(path, bytes, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write profile: %w", err)
		}
		written = append(written, path)
	}

	return written, nil
}

func marshalFile(path string, rows interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(rows, f)
}

func newEvaluationRow(m domain.ModelReport) evaluationRow {
	e := m.Evaluation
	return evaluationRow{
		Model:         m.Name,
		Dataset:       m.Dataset,
		Algorithm:     string(e.Algorithm),
		SplitMode:     m.SplitMode,
		TrainRows:     m.TrainRows,
		TestRows:      m.TestRows,
		AUC:           e.AUC,
		Gini:          e.Gini,
		KS:            e.KS,
		LogLoss:       e.LogLoss,
		Brier:         e.Brier,
		MeanPredicted: e.MeanPredicted,
		ObservedRate:  e.ObservedRate,
		Defaults:      e.Defaults,
	}
}

func curveRows(curves domain.CohortCurves) *[]curveRow {
	out := []curveRow{}
	for _, cohort := range curves.Order {
		c := curves.Curves[cohort]
		for _, p := range c.Points {
			out = append(out, curveRow{Cohort: cohort, Loans: c.Loans, CurvePoint: p})
		}
	}
	return &out
}

func censoringRows(report domain.Report) *[]keyValueRow {
	c := report.Censoring
	out := []keyValueRow{
		{Key: "run_id", Value: report.RunID},
		{Key: "as_of", Value: c.AsOf.Format("2006-01-02")},
		{Key: "applications", Value: strconv.Itoa(c.Applications)},
		{Key: "rejected_applications", Value: strconv.Itoa(c.RejectedApplications)},
		{Key: "without_performance", Value: strconv.Itoa(c.WithoutPerformance)},
		{Key: "censored_origination", Value: strconv.Itoa(c.CensoredOrigination)},
		{Key: "censored_monitoring", Value: strconv.Itoa(c.CensoredMonitoring)},
		{Key: "defaulted_snapshots", Value: strconv.Itoa(c.DefaultedSnapshots)},
		{Key: "sampled_out_monitoring", Value: strconv.Itoa(c.SampledOutMonitoring)},
		{Key: "origination_rows", Value: strconv.Itoa(report.OriginationRows)},
		{Key: "monitoring_rows", Value: strconv.Itoa(report.MonitoringRows)},
	}
	return &out
}

func deploymentRows(d domain.DeploymentSummary) *[]keyValueRow {
	out := []keyValueRow{
		{Key: "auc", Value: formatFloat(d.AUC)},
		{Key: "gini", Value: formatFloat(d.Gini)},
		{Key: "ks", Value: formatFloat(d.KS)},
		{Key: "discrimination_grade", Value: d.DiscriminationGrade},
		{Key: "max_calibration_gap", Value: formatFloat(d.MaxCalibrationGap)},
		{Key: "vintage_trend", Value: formatFloat(d.VintageTrend)},
	}
	for i, pct := range d.StressIncreasePct {
		out = append(out, keyValueRow{Key: fmt.Sprintf("stress_increase_pct_%d", i), Value: formatFloat(pct)})
	}
	for i, r := range d.Recommendations {
		out = append(out, keyValueRow{Key: fmt.Sprintf("recommendation_%d", i+1), Value: r})
	}
	return &out
}

// writeDataset flattens rows with a column per feature and label. the
// columns vary per input so this bypasses struct marshalling
func writeDataset(path string, ds domain.Dataset) error {
	numeric := ds.NumericColumns()
	categorical := ds.CategoricalColumns()
	labels := labelColumns(ds)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := gocsv.DefaultCSVWriter(f)
	header := []string{"key", "application_id", "originated_at", "as_of", "months_on_book"}
	header = append(header, numeric...)
	header = append(header, categorical...)
	header = append(header, labels...)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range ds.Rows {
		record := []string{
			r.Key,
			r.ApplicationID,
			r.OriginatedAt.Format("2006-01-02"),
			r.AsOf.Format("2006-01-02"),
			strconv.Itoa(r.MonthsOnBook),
		}
		for _, c := range numeric {
			v, ok := r.Numeric[c]
			if !ok {
				record = append(record, "")
				continue
			}
			record = append(record, formatFloat(v))
		}
		for _, c := range categorical {
			record = append(record, r.Categorical[c])
		}
		for _, c := range labels {
			record = append(record, strconv.Itoa(r.Labels[c]))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeScenarioPredictions(path string, keys []string, predictions []domain.ScenarioPredictions) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := gocsv.DefaultCSVWriter(f)
	header := []string{"key"}
	for _, p := range predictions {
		header = append(header, p.Scenario)
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i, key := range keys {
		record := []string{key}
		for _, p := range predictions {
			record = append(record, formatFloat(p.PD[i]))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func labelColumns(ds domain.Dataset) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, r := range ds.Rows {
		for k := range r.Labels {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

// shortest representation that round-trips, so small PDs keep their digits
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
