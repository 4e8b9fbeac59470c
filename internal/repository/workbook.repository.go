package repository

import (
	"creditrisk/internal/domain"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// WorkbookRepository writes the headline tables of a run into a single
// xlsx file, one sheet per table
type WorkbookRepository interface {
	Write(path string, report domain.Report) error
}

type workbookRepositoryHandler struct{}

func NewWorkbookRepository() WorkbookRepository {
	return workbookRepositoryHandler{}
}

type sheet struct {
	name   string
	header []interface{}
	rows   [][]interface{}
}

func (h workbookRepositoryHandler) Write(path string, report domain.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := workbookSheets(report)
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", s.name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s sheet) error {
	header := s.header
	if err := f.SetSheetRow(s.name, "A1", &header); err != nil {
		return err
	}
	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(s.name, cell, &r); err != nil {
			return err
		}
	}
	return nil
}

func workbookSheets(report domain.Report) []sheet {
	summary := sheet{
		name:   "summary",
		header: []interface{}{"key", "value"},
		rows: [][]interface{}{
			{"run_id", report.RunID},
			{"as_of", report.AsOf.Format("2006-01-02")},
			{"origination_rows", report.OriginationRows},
			{"monitoring_rows", report.MonitoringRows},
			{"censored_origination", report.Censoring.CensoredOrigination},
			{"censored_monitoring", report.Censoring.CensoredMonitoring},
		},
	}
	if report.CalibrationWarning != "" {
		summary.rows = append(summary.rows, []interface{}{"calibration_warning", report.CalibrationWarning})
	}
	if report.Deployment != nil {
		summary.rows = append(summary.rows, []interface{}{"discrimination_grade", report.Deployment.DiscriminationGrade})
		for i, r := range report.Deployment.Recommendations {
			summary.rows = append(summary.rows, []interface{}{fmt.Sprintf("recommendation_%d", i+1), r})
		}
	}
	out := []sheet{summary}

	models := sheet{
		name:   "models",
		header: []interface{}{"model", "algorithm", "split_mode", "train_rows", "test_rows", "auc", "gini", "ks", "log_loss", "brier", "mean_pd", "observed_rate"},
	}
	importance := sheet{
		name:   "importance",
		header: []interface{}{"model", "feature", "importance"},
	}
	all := []domain.ModelReport{report.OriginationModel}
	if report.MonitoringModel != nil {
		all = append(all, *report.MonitoringModel)
	}
	for _, m := range all {
		if m.Evaluation == nil {
			continue
		}
		e := m.Evaluation
		models.rows = append(models.rows, []interface{}{m.Name, string(e.Algorithm), m.SplitMode, m.TrainRows, m.TestRows, e.AUC, e.Gini, e.KS, e.LogLoss, e.Brier, e.MeanPredicted, e.ObservedRate})
		for _, fi := range m.Importance {
			importance.rows = append(importance.rows, []interface{}{m.Name, fi.Feature, fi.Importance})
		}
	}
	out = append(out, models, importance)

	if report.Calibration != nil {
		bands := sheet{
			name:   "pd_bands",
			header: []interface{}{"band", "count", "defaults", "min_pd", "max_pd", "mean_pd", "observed_rate", "calibration_ratio"},
		}
		for _, b := range report.Calibration.Bands {
			bands.rows = append(bands.rows, []interface{}{b.Index, b.Count, b.Defaults, b.MinScore, b.MaxScore, b.MeanPD, b.ObservedRate, b.CalibrationRatio})
		}
		out = append(out, bands)
	}

	if len(report.Stress) > 0 {
		stress := sheet{
			name:   "stress",
			header: []interface{}{"scenario", "avg_pd", "pd_change", "pd_change_pct", "share_above_threshold", "expected_loss"},
		}
		for _, r := range report.Stress {
			el, _ := r.ExpectedLoss.Float64()
			stress.rows = append(stress.rows, []interface{}{r.Scenario, r.AveragePD, r.PDChange, r.PDChangePct, r.ShareAboveCut, el})
		}
		out = append(out, stress)
	}

	if len(report.Curves.Order) > 0 {
		curves := sheet{
			name:   "cohorts",
			header: []interface{}{"cohort", "loans", "months_on_book", "observations", "defaults", "default_rate", "cumulative_rate"},
		}
		for _, cohort := range report.Curves.Order {
			c := report.Curves.Curves[cohort]
			for _, p := range c.Points {
				curves.rows = append(curves.rows, []interface{}{cohort, c.Loans, p.MonthsOnBook, p.Observations, p.Defaults, p.DefaultRate, p.CumulativeRate})
			}
		}
		out = append(out, curves)
	}

	if report.Comparison != nil {
		comparison := sheet{
			name:   "cohort_comparison",
			header: []interface{}{"months_on_book", "rate_a", "rate_b", "delta"},
		}
		for _, r := range report.Comparison.Rows {
			comparison.rows = append(comparison.rows, []interface{}{r.MonthsOnBook, r.RateA, r.RateB, r.Delta})
		}
		out = append(out, comparison)
	}
	return out
}
