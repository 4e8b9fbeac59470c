package l1_service

import (
	"creditrisk/internal/domain"
	"creditrisk/internal/util"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"
)

const (
	// LabelWindowMonths is the forward horizon of both default labels
	LabelWindowMonths = 12

	MonthsOnBookFeature = "months_on_book"
)

type BuildInput struct {
	Applications []domain.Application
	Performance  []domain.PerformanceRecord
	Macro        []domain.MacroRecord
	// AsOf cuts off performance data. defaults to the latest observation
	AsOf *time.Time

	// MonitoringSampleSize caps the monitoring dataset, 0 keeps all rows
	MonitoringSampleSize int
	Seed                 int64
}

type BuildResult struct {
	Origination domain.Dataset
	Monitoring  domain.Dataset
	Report      domain.CensoringReport
}

type DatasetService interface {
	Build(in BuildInput) (*BuildResult, error)
}

type datasetServiceHandler struct {
	Logger *zap.SugaredLogger
}

// a nil logger discards output, the same for every service constructor
func NewDatasetService(logger *zap.SugaredLogger) DatasetService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return datasetServiceHandler{
		Logger: logger,
	}
}

type loanHistory struct {
	records []domain.PerformanceRecord
	mobs    []int
}

// Build joins applications to their performance history and produces the
// origination and monitoring datasets. rows without a complete 12 month
// forward window are censored and counted, never labelled as
// non-defaults
func (h datasetServiceHandler) Build(in BuildInput) (*BuildResult, error) {
	if len(in.Applications) == 0 {
		return nil, domain.EmptyResultError{Stage: "dataset builder", Reason: "no applications"}
	}
	if len(in.Performance) == 0 {
		return nil, domain.EmptyResultError{Stage: "dataset builder", Reason: "no performance records"}
	}

	asOf := latestObservation(in.Performance)
	if in.AsOf != nil {
		asOf = *in.AsOf
	}
	report := domain.CensoringReport{
		Applications: len(in.Applications),
		AsOf:         asOf,
	}

	macro := newMacroIndex(in.Macro)

	apps := make([]domain.Application, len(in.Applications))
	copy(apps, in.Applications)
	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].ID < apps[j].ID
	})
	histories := groupPerformance(in.Performance, asOf)

	origination := domain.Dataset{Name: "origination", Target: domain.TargetDefault12m}
	monitoring := domain.Dataset{Name: "monitoring", Target: domain.TargetDefaultNext12m}

	for _, app := range apps {
		if !app.Approved {
			report.RejectedApplications++
			continue
		}
		records := histories[app.ID]
		if len(records) == 0 {
			report.WithoutPerformance++
			continue
		}
		history, err := newLoanHistory(app, records)
		if err != nil {
			return nil, err
		}

		row, ok, err := originationRow(app, history, macro, asOf)
		if err != nil {
			return nil, err
		}
		if ok {
			origination.Rows = append(origination.Rows, *row)
		} else {
			report.CensoredOrigination++
		}

		snapshots, err := monitoringRows(app, history, macro, asOf, &report)
		if err != nil {
			return nil, err
		}
		monitoring.Rows = append(monitoring.Rows, snapshots...)
	}

	for _, ds := range []domain.Dataset{origination, monitoring} {
		for _, r := range ds.Rows {
			if err := checkPointInTime(r); err != nil {
				return nil, err
			}
		}
	}

	if len(origination.Rows) == 0 {
		return nil, domain.EmptyResultError{
			Stage:  "origination dataset",
			Reason: fmt.Sprintf("%d approved loan(s) censored without a full %d month window before %s", report.CensoredOrigination, LabelWindowMonths, asOf.Format(time.DateOnly)),
		}
	}

	if in.MonitoringSampleSize > 0 && len(monitoring.Rows) > in.MonitoringSampleSize {
		report.SampledOutMonitoring = len(monitoring.Rows) - in.MonitoringSampleSize
		monitoring.Rows = sampleRows(monitoring.Rows, in.MonitoringSampleSize, in.Seed)
	}

	h.logReport(report, origination, monitoring)

	return &BuildResult{
		Origination: origination,
		Monitoring:  monitoring,
		Report:      report,
	}, nil
}

func (h datasetServiceHandler) logReport(report domain.CensoringReport, origination, monitoring domain.Dataset) {
	h.Logger.Infow("built datasets",
		"asOf", report.AsOf.Format(time.DateOnly),
		"originationRows", len(origination.Rows),
		"originationDefaultRate", origination.DefaultRate(),
		"monitoringRows", len(monitoring.Rows),
		"monitoringDefaultRate", monitoring.DefaultRate(),
	)
	if report.CensoredOrigination > 0 || report.CensoredMonitoring > 0 {
		h.Logger.Warnw("censored rows without a complete label window",
			"origination", report.CensoredOrigination,
			"monitoring", report.CensoredMonitoring,
		)
	}
	if report.RejectedApplications > 0 || report.WithoutPerformance > 0 {
		h.Logger.Warnw("applications excluded from datasets",
			"rejected", report.RejectedApplications,
			"withoutPerformance", report.WithoutPerformance,
		)
	}
	if len(monitoring.Rows) == 0 {
		h.Logger.Warnw("monitoring dataset is empty, no snapshot has a full label window",
			"censoredSnapshots", report.CensoredMonitoring,
			"defaultedSnapshots", report.DefaultedSnapshots,
		)
	}
	if report.SampledOutMonitoring > 0 {
		h.Logger.Warnw("monitoring dataset sampled", "droppedRows", report.SampledOutMonitoring)
	}
}

func latestObservation(records []domain.PerformanceRecord) time.Time {
	latest := records[0].ObservedAt
	for _, r := range records[1:] {
		if r.ObservedAt.After(latest) {
			latest = r.ObservedAt
		}
	}
	return latest
}

// groupPerformance drops observations after asOf and sorts each loan's
// history. repeated observation dates keep the last record
func groupPerformance(records []domain.PerformanceRecord, asOf time.Time) map[string][]domain.PerformanceRecord {
	byDate := map[string]map[time.Time]domain.PerformanceRecord{}
	for _, r := range records {
		if r.ObservedAt.After(asOf) {
			continue
		}
		if _, ok := byDate[r.ApplicationID]; !ok {
			byDate[r.ApplicationID] = map[time.Time]domain.PerformanceRecord{}
		}
		byDate[r.ApplicationID][r.ObservedAt] = r
	}

	out := make(map[string][]domain.PerformanceRecord, len(byDate))
	for id, m := range byDate {
		list := make([]domain.PerformanceRecord, 0, len(m))
		for _, r := range m {
			list = append(list, r)
		}
		sort.Slice(list, func(i, j int) bool {
			return list[i].ObservedAt.Before(list[j].ObservedAt)
		})
		out[id] = list
	}
	return out
}

func newLoanHistory(app domain.Application, records []domain.PerformanceRecord) (*loanHistory, error) {
	h := &loanHistory{
		records: records,
		mobs:    make([]int, len(records)),
	}
	for i, r := range records {
		if r.ObservedAt.Before(app.OriginatedAt) {
			return nil, domain.LeakageGuardError{
				RowKey:   app.ID,
				Source:   domain.SourcePerformance,
				SourceAt: r.ObservedAt.Format(time.DateOnly),
				AsOf:     app.OriginatedAt.Format(time.DateOnly),
			}
		}
		h.mobs[i] = util.MonthsBetween(app.OriginatedAt, r.ObservedAt)
	}
	return h, nil
}

func (h loanHistory) maxMOB() int {
	return h.mobs[len(h.mobs)-1]
}

// defaultedWithin reports a default observed with months on book in
// (from, to]
func (h loanHistory) defaultedWithin(from, to int) bool {
	for i, m := range h.mobs {
		if m > from && m <= to && h.records[i].Defaulted {
			return true
		}
	}
	return false
}

func originationRow(app domain.Application, h *loanHistory, macro macroIndex, asOf time.Time) (*domain.Row, bool, error) {
	// the origination window includes defaults flagged in the month of
	// origination itself, so it is (-1, 12]
	defaulted := h.defaultedWithin(-1, LabelWindowMonths)
	horizonObserved := util.MonthsBetween(app.OriginatedAt, asOf) >= LabelWindowMonths
	if !horizonObserved || !(defaulted || h.maxMOB() >= LabelWindowMonths) {
		return nil, false, nil
	}

	numeric := copyNumeric(app.Numeric)
	sources := []domain.SourceStamp{{Source: domain.SourceApplication, At: app.OriginatedAt}}
	if m, ok := macro.asOf(app.OriginatedAt); ok {
		if err := mergeNumeric(numeric, m.Values, domain.SourceMacro); err != nil {
			return nil, false, err
		}
		sources = append(sources, domain.SourceStamp{Source: domain.SourceMacro, At: m.Date})
	}

	history := make([]domain.Observation, len(h.records))
	for i, r := range h.records {
		history[i] = domain.Observation{MonthsOnBook: h.mobs[i], Defaulted: r.Defaulted}
	}

	return &domain.Row{
		Key:           app.ID,
		ApplicationID: app.ID,
		OriginatedAt:  app.OriginatedAt,
		AsOf:          app.OriginatedAt,
		Numeric:       numeric,
		Categorical:   copyCategorical(app.Categorical),
		Labels:        map[string]int{domain.TargetDefault12m: boolToInt(defaulted)},
		Sources:       sources,
		History:       history,
	}, true, nil
}

// monitoringRows emits one row per performing snapshot after origination
// whose next 12 months are fully observable
func monitoringRows(app domain.Application, h *loanHistory, macro macroIndex, asOf time.Time, report *domain.CensoringReport) ([]domain.Row, error) {
	out := []domain.Row{}
	for i, r := range h.records {
		if r.Defaulted {
			// loans in default are no longer monitored
			report.DefaultedSnapshots += len(h.records) - i
			break
		}
		mob := h.mobs[i]
		if mob < 1 {
			continue
		}
		horizon := mob + LabelWindowMonths
		defaulted := h.defaultedWithin(mob, horizon)
		horizonObserved := util.MonthsBetween(r.ObservedAt, asOf) >= LabelWindowMonths
		if !horizonObserved || !(defaulted || h.maxMOB() >= horizon) {
			report.CensoredMonitoring++
			continue
		}

		numeric := copyNumeric(app.Numeric)
		if err := mergeNumeric(numeric, r.Numeric, domain.SourcePerformance); err != nil {
			return nil, err
		}
		if err := mergeNumeric(numeric, map[string]float64{MonthsOnBookFeature: float64(mob)}, domain.SourcePerformance); err != nil {
			return nil, err
		}
		categorical := copyCategorical(app.Categorical)
		for k, v := range r.Categorical {
			if _, ok := categorical[k]; ok {
				return nil, domain.SchemaError{Table: domain.SourcePerformance, Column: k, Message: "column collides with an application column"}
			}
			categorical[k] = v
		}
		sources := []domain.SourceStamp{
			{Source: domain.SourceApplication, At: app.OriginatedAt},
			{Source: domain.SourcePerformance, At: r.ObservedAt},
		}
		if m, ok := macro.asOf(r.ObservedAt); ok {
			if err := mergeNumeric(numeric, m.Values, domain.SourceMacro); err != nil {
				return nil, err
			}
			sources = append(sources, domain.SourceStamp{Source: domain.SourceMacro, At: m.Date})
		}

		out = append(out, domain.Row{
			Key:           fmt.Sprintf("%s@%s", app.ID, r.ObservedAt.Format(time.DateOnly)),
			ApplicationID: app.ID,
			OriginatedAt:  app.OriginatedAt,
			AsOf:          r.ObservedAt,
			MonthsOnBook:  mob,
			Numeric:       numeric,
			Categorical:   categorical,
			Labels:        map[string]int{domain.TargetDefaultNext12m: boolToInt(defaulted)},
			Sources:       sources,
		})
	}
	return out, nil
}

// checkPointInTime fails when any joined value is dated after the row
func checkPointInTime(r domain.Row) error {
	for _, s := range r.Sources {
		if s.At.After(r.AsOf) {
			return domain.LeakageGuardError{
				RowKey:   r.Key,
				Source:   s.Source,
				SourceAt: s.At.Format(time.DateOnly),
				AsOf:     r.AsOf.Format(time.DateOnly),
			}
		}
	}
	return nil
}

type macroIndex []domain.MacroRecord

func newMacroIndex(records []domain.MacroRecord) macroIndex {
	out := make(macroIndex, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// asOf returns the latest macro record dated at or before t
func (m macroIndex) asOf(t time.Time) (domain.MacroRecord, bool) {
	i := sort.Search(len(m), func(i int) bool {
		return m[i].Date.After(t)
	})
	if i == 0 {
		return domain.MacroRecord{}, false
	}
	return m[i-1], true
}

func sampleRows(rows []domain.Row, n int, seed int64) []domain.Row {
	idx := rand.New(rand.NewSource(seed)).Perm(len(rows))[:n]
	sort.Ints(idx)
	out := make([]domain.Row, n)
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

func mergeNumeric(dst map[string]float64, src map[string]float64, source string) error {
	for k, v := range src {
		if _, ok := dst[k]; ok {
			return domain.SchemaError{Table: source, Column: k, Message: "column collides with an existing feature"}
		}
		dst[k] = v
	}
	return nil
}

func copyNumeric(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyCategorical(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
