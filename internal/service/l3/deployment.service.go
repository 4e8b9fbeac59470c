package l3_service

import (
	"creditrisk/internal/domain"
	"fmt"
	"math"
)

const (
	minDeployableAUC     = 0.7
	maxCalibrationGap    = 0.05
	stressAlertPct       = 50.0
	vintageTrendAlert    = 0.01
	monitoringCadenceMsg = "track AUC, KS and band calibration monthly on the monitoring dataset"
)

type DeploymentInput struct {
	Evaluation  *domain.Evaluation
	Calibration *domain.CalibrationTable
	// Stress is positional, baseline first
	Stress []domain.ScenarioResult
	Curves *domain.CohortCurves
}

type DeploymentService interface {
	Summarize(in DeploymentInput) (*domain.DeploymentSummary, error)
}

type deploymentServiceHandler struct{}

func NewDeploymentService() DeploymentService {
	return deploymentServiceHandler{}
}

func (h deploymentServiceHandler) Summarize(in DeploymentInput) (*domain.DeploymentSummary, error) {
	if in.Evaluation == nil {
		return nil, fmt.Errorf("deployment summary needs an evaluation")
	}
	out := &domain.DeploymentSummary{
		AUC:                 in.Evaluation.AUC,
		Gini:                in.Evaluation.Gini,
		KS:                  in.Evaluation.KS,
		DiscriminationGrade: discriminationGrade(in.Evaluation.AUC),
	}
	if in.Evaluation.AUC < minDeployableAUC {
		out.Recommendations = append(out.Recommendations, fmt.Sprintf("AUC %.3f is below %.2f, revisit features before deploying", in.Evaluation.AUC, minDeployableAUC))
	} else {
		out.Recommendations = append(out.Recommendations, fmt.Sprintf("discrimination is %s (AUC %.3f), model can be deployed", out.DiscriminationGrade, in.Evaluation.AUC))
	}

	if in.Calibration != nil {
		for _, b := range in.Calibration.Bands {
			out.MaxCalibrationGap = math.Max(out.MaxCalibrationGap, math.Abs(b.ObservedRate-b.MeanPD))
		}
		if out.MaxCalibrationGap > maxCalibrationGap {
			out.Recommendations = append(out.Recommendations, fmt.Sprintf("recalibrate PDs, largest band gap is %.1f pp", out.MaxCalibrationGap*100))
		}
	}

	for i, r := range in.Stress {
		out.StressIncreasePct = append(out.StressIncreasePct, r.PDChangePct)
		if i > 0 && r.PDChangePct > stressAlertPct {
			out.Recommendations = append(out.Recommendations, fmt.Sprintf("scenario %s raises average PD by %.0f%%, size capital buffers for it", r.Scenario, r.PDChangePct))
		}
	}

	if in.Curves != nil {
		trend, ok := vintageTrend(*in.Curves)
		if ok {
			out.VintageTrend = trend
			if trend > vintageTrendAlert {
				out.Recommendations = append(out.Recommendations, fmt.Sprintf("recent vintages default %.1f pp faster than the earliest, tighten origination policy", trend*100))
			}
		}
	}

	out.Recommendations = append(out.Recommendations, monitoringCadenceMsg)
	return out, nil
}

func discriminationGrade(auc float64) string {
	switch {
	case auc >= 0.8:
		return "excellent"
	case auc >= 0.7:
		return "good"
	case auc >= 0.6:
		return "fair"
	}
	return "poor"
}

// vintageTrend compares the cumulative default rate of the latest cohort
// with the earliest one at the highest months on book both reached
func vintageTrend(curves domain.CohortCurves) (float64, bool) {
	if len(curves.Order) < 2 {
		return 0, false
	}
	first := curves.Curves[curves.Order[0]]
	last := curves.Curves[curves.Order[len(curves.Order)-1]]
	for i := len(last.Points) - 1; i >= 0; i-- {
		p := last.Points[i]
		if q, ok := first.PointAt(p.MonthsOnBook); ok {
			return p.CumulativeRate - q.CumulativeRate, true
		}
	}
	return 0, false
}
