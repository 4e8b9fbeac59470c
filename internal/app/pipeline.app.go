package app

import (
	"context"
	"creditrisk/internal/config"
	"creditrisk/internal/domain"
	"creditrisk/internal/logger"
	l1_service "creditrisk/internal/service/l1"
	l2_service "creditrisk/internal/service/l2"
	l3_service "creditrisk/internal/service/l3"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PipelineInput holds the raw tables of one run. Macro is optional
type PipelineInput struct {
	Applications domain.RawTable
	Performance  domain.RawTable
	Macro        *domain.RawTable
}

// PipelineApp runs every stage in order: build datasets, describe
// features, cohort curves, origination and monitoring models, PD
// banding, stress testing, case comparison and the deployment summary
type PipelineApp interface {
	Run(ctx context.Context, in PipelineInput) (*domain.Report, error)
}

type pipelineAppHandler struct {
	Config             config.Config
	DatasetService     l1_service.DatasetService
	CohortService      l1_service.CohortService
	ExploreService     l1_service.ExploreService
	RiskModelService   l2_service.RiskModelService
	CalibrationService l3_service.CalibrationService
	StressService      l3_service.StressService
	CaseService        l3_service.CaseService
	DeploymentService  l3_service.DeploymentService
}

func NewPipelineApp(cfg config.Config, lg *zap.SugaredLogger) PipelineApp {
	return pipelineAppHandler{
		Config:             cfg,
		DatasetService:     l1_service.NewDatasetService(lg),
		CohortService:      l1_service.NewCohortService(),
		ExploreService:     l1_service.NewExploreService(),
		RiskModelService:   l2_service.NewRiskModelService(cfg.Seed, cfg.ExcludeColumns, lg),
		CalibrationService: l3_service.NewCalibrationService(),
		StressService: l3_service.NewStressService(l3_service.StressOptions{
			ExposureFeature: cfg.ExposureFeature,
			LGD:             cfg.LGD,
			PDThreshold:     cfg.PDThreshold,
		}, lg),
		CaseService:       l3_service.NewCaseService(),
		DeploymentService: l3_service.NewDeploymentService(),
	}
}

type trainedStage struct {
	report domain.ModelReport
	model  domain.Model
	testX  []domain.Sample
}

func (h pipelineAppHandler) Run(ctx context.Context, in PipelineInput) (*domain.Report, error) {
	lg := logger.FromContext(ctx)
	profile := domain.GetProfile(ctx)
	cfg := h.Config

	report := &domain.Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Profile:   profile,
	}
	lg = lg.With("runID", report.RunID)

	span, endSpan := profile.StartNewSpan("build datasets")
	built, err := h.buildDatasets(in)
	if err != nil {
		return nil, err
	}
	report.Censoring = built.Report
	report.AsOf = built.Report.AsOf
	report.Origination = built.Origination
	report.Monitoring = built.Monitoring
	report.OriginationRows = len(built.Origination.Rows)
	report.MonitoringRows = len(built.Monitoring.Rows)
	span.SetRows(report.OriginationRows + report.MonitoringRows)
	endSpan()

	_, endSpan = profile.StartNewSpan("feature summary")
	features, err := h.ExploreService.Summarize(built.Origination)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize features: %w", err)
	}
	if cfg.TopFeatures > 0 && len(features) > cfg.TopFeatures {
		features = features[:cfg.TopFeatures]
	}
	report.Features = features
	endSpan()

	_, endSpan = profile.StartNewSpan("cohort curves")
	curves, err := h.CohortService.DefaultCurves(built.Origination, cfg.Granularity())
	if err != nil {
		return nil, fmt.Errorf("failed to compute cohort curves: %w", err)
	}
	report.Curves = *curves
	for _, g := range []domain.Granularity{domain.GranularityMonth, domain.GranularityQuarter} {
		if g == curves.Granularity {
			report.Vintages = append(report.Vintages, *curves)
			continue
		}
		vintage, err := h.CohortService.DefaultCurves(built.Origination, g)
		if err != nil {
			return nil, fmt.Errorf("failed to compute %s vintages: %w", g, err)
		}
		report.Vintages = append(report.Vintages, *vintage)
	}
	comparison, err := h.compareCohorts(lg, *curves)
	if err != nil {
		return nil, err
	}
	report.Comparison = comparison
	endSpan()

	span, endSpan = profile.StartNewSpan("origination model")
	origination, err := h.trainAndEvaluate(
		"origination",
		built.Origination,
		domain.TargetDefault12m,
		l2_service.SplitMode(cfg.SplitMode),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build origination model: %w", err)
	}
	report.OriginationModel = origination.report
	span.SetRows(origination.report.TrainRows)
	endSpan()
	lg.Infow(
		"origination model",
		"auc", origination.report.Evaluation.AUC,
		"observedRate", origination.report.Evaluation.ObservedRate,
		"meanPD", origination.report.Evaluation.MeanPredicted,
	)

	if len(built.Monitoring.Rows) > 0 {
		span, endSpan = profile.StartNewSpan("monitoring model")
		monitoring, err := h.trainAndEvaluate(
			"monitoring",
			built.Monitoring,
			domain.TargetDefaultNext12m,
			l2_service.SplitMode(cfg.MonitoringSplitMode),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build monitoring model: %w", err)
		}
		report.MonitoringModel = &monitoring.report
		span.SetRows(monitoring.report.TrainRows)
		endSpan()
		lg.Infow("monitoring model", "auc", monitoring.report.Evaluation.AUC)
	} else {
		lg.Warn("monitoring dataset is empty, skipping monitoring model")
	}

	eval := origination.report.Evaluation
	_, endSpan = profile.StartNewSpan("pd bands")
	table, err := h.CalibrationService.BandedCalibration(eval.Labels(), eval.Predictions(), auxiliaryColumns(origination.model, origination.testX), cfg.NBands)
	degenerate := domain.DegenerateBandingError{}
	if errors.As(err, &degenerate) {
		lg.Warnw("pd banding is degenerate", "requested", degenerate.Requested, "produced", degenerate.Produced)
		report.CalibrationWarning = degenerate.Error()
	} else if err != nil {
		return nil, fmt.Errorf("failed to band predictions: %w", err)
	}
	report.Calibration = table
	endSpan()

	_, endSpan = profile.StartNewSpan("stress testing")
	stress, predictions, err := h.StressService.RunScenarios(origination.model, origination.testX, eval.Labels(), cfg.Scenarios)
	if err != nil {
		return nil, fmt.Errorf("failed to run stress scenarios: %w", err)
	}
	report.Stress = stress
	report.ScenarioPredictions = predictions
	report.TestKeys = make([]string, len(origination.testX))
	for i, s := range origination.testX {
		report.TestKeys[i] = s.Key
	}
	endSpan()

	_, endSpan = profile.StartNewSpan("case comparison")
	cases, err := h.CaseService.Compare(origination.model, origination.testX, cfg.CaseCount)
	if err != nil {
		return nil, fmt.Errorf("failed to compare cases: %w", err)
	}
	report.Cases = cases
	endSpan()

	_, endSpan = profile.StartNewSpan("deployment summary")
	deployment, err := h.DeploymentService.Summarize(l3_service.DeploymentInput{
		Evaluation:  eval,
		Calibration: table,
		Stress:      stress,
		Curves:      curves,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize deployment: %w", err)
	}
	report.Deployment = deployment
	endSpan()

	for _, r := range deployment.Recommendations {
		lg.Infow("recommendation", "text", r)
	}
	return report, nil
}

func (h pipelineAppHandler) buildDatasets(in PipelineInput) (*l1_service.BuildResult, error) {
	cfg := h.Config
	applications, err := l1_service.ParseApplications(in.Applications, cfg.Columns, cfg.DateLayout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse applications: %w", err)
	}
	performance, err := l1_service.ParsePerformance(in.Performance, cfg.Columns, cfg.DateLayout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse performance: %w", err)
	}
	var macro []domain.MacroRecord
	if in.Macro != nil {
		macro, err = l1_service.ParseMacro(*in.Macro, cfg.Columns, cfg.DateLayout)
		if err != nil {
			return nil, fmt.Errorf("failed to parse macro: %w", err)
		}
	}
	asOf, err := cfg.AsOfTime()
	if err != nil {
		return nil, err
	}

	built, err := h.DatasetService.Build(l1_service.BuildInput{
		Applications:         applications,
		Performance:          performance,
		Macro:                macro,
		AsOf:                 asOf,
		MonitoringSampleSize: cfg.MonitoringSampleSize,
		Seed:                 cfg.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build datasets: %w", err)
	}
	return built, nil
}

// compareCohorts uses the configured cohort sets, or the earliest vs the
// latest cohorts when none are configured. too few cohorts for the
// automatic comparison only skips it
func (h pipelineAppHandler) compareCohorts(lg *zap.SugaredLogger, curves domain.CohortCurves) (*domain.CohortComparison, error) {
	cfg := h.Config.CompareCohorts
	a, b := cfg.A, cfg.B
	if len(a) == 0 {
		var err error
		a, b, err = h.CohortService.EarlyVsRecent(curves, cfg.AutoSize)
		insufficient := domain.InsufficientCohortsError{}
		if errors.As(err, &insufficient) {
			lg.Warnw("skipping cohort comparison", "reason", err.Error())
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to pick cohorts: %w", err)
		}
	}

	out, err := h.CohortService.Compare(curves, a, b)
	if err != nil {
		if len(cfg.A) == 0 && errors.As(err, &domain.EmptyResultError{}) {
			lg.Warnw("skipping cohort comparison", "reason", err.Error())
			return nil, nil
		}
		return nil, fmt.Errorf("failed to compare cohorts: %w", err)
	}
	lg.Infow(
		"compared cohorts",
		"a", a,
		"b", b,
		"averageDelta", out.AverageDelta,
	)
	return out, nil
}

func (h pipelineAppHandler) trainAndEvaluate(name string, ds domain.Dataset, target string, mode l2_service.SplitMode) (*trainedStage, error) {
	cfg := h.Config
	x, y, err := h.RiskModelService.PrepareFeatures(ds, target)
	if err != nil {
		return nil, err
	}
	parts, err := h.RiskModelService.Split(x, y, l2_service.SplitOptions{
		Mode:         mode,
		TestFraction: cfg.TestFraction,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	model, err := h.RiskModelService.Train(l2_service.TrainInput{
		X:         parts.TrainX,
		Y:         parts.TrainY,
		Algorithm: domain.Algorithm(cfg.Algorithm),
		Target:    target,
	})
	if err != nil {
		return nil, err
	}
	eval, err := h.RiskModelService.Evaluate(model, parts.TestX, parts.TestY)
	if err != nil {
		return nil, err
	}

	return &trainedStage{
		report: domain.ModelReport{
			Name:       name,
			Dataset:    ds.Name,
			SplitMode:  string(mode),
			TrainRows:  len(parts.TrainX),
			TestRows:   len(parts.TestX),
			Evaluation: eval,
			Importance: h.RiskModelService.FeatureImportance(model, cfg.TopFeatures),
		},
		model: model,
		testX: parts.TestX,
	}, nil
}

// auxiliaryColumns are the model's numeric inputs that are present on
// every test row, averaged per PD band
func auxiliaryColumns(model domain.Model, x []domain.Sample) map[string][]float64 {
	out := map[string][]float64{}
	for _, f := range model.Inputs() {
		col := make([]float64, len(x))
		complete := true
		for i, s := range x {
			v, ok := s.Numeric[f]
			if !ok || math.IsNaN(v) {
				complete = false
				break
			}
			col[i] = v
		}
		if complete {
			out[f] = col
		}
	}
	return out
}
