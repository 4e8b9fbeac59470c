package l3_service

import (
	"creditrisk/internal/domain"
	"fmt"
	"math"
	"runtime"

	"github.com/maja42/goval"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type StressService interface {
	// RunScenarios re-scores the test set under each scenario. output is
	// ordered baseline first, then scenarios in the order given
	RunScenarios(model domain.Model, x []domain.Sample, y []int, scenarios []domain.Scenario) ([]domain.ScenarioResult, []domain.ScenarioPredictions, error)
}

type StressOptions struct {
	// ExposureFeature is the numeric column holding exposure at default.
	// expected loss is only reported when it is set
	ExposureFeature string
	LGD             float64
	PDThreshold     float64
}

type stressServiceHandler struct {
	Options StressOptions
	Logger  *zap.SugaredLogger
}

func NewStressService(options StressOptions, logger *zap.SugaredLogger) StressService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return stressServiceHandler{
		Options: options,
		Logger:  logger,
	}
}

func (h stressServiceHandler) RunScenarios(model domain.Model, x []domain.Sample, y []int, scenarios []domain.Scenario) ([]domain.ScenarioResult, []domain.ScenarioPredictions, error) {
	if len(x) == 0 {
		return nil, nil, domain.EmptyResultError{Stage: "stress testing", Reason: "no samples to score"}
	}
	if y != nil && len(y) != len(x) {
		return nil, nil, domain.SchemaError{Table: "stress", Message: fmt.Sprintf("got %d samples but %d labels", len(x), len(y))}
	}

	resolved, err := withBaseline(scenarios)
	if err != nil {
		return nil, nil, err
	}
	if err := validateScenarios(model, resolved); err != nil {
		return nil, nil, err
	}

	predictions := make([]domain.ScenarioPredictions, len(resolved))
	exposures := make([][]float64, len(resolved))

	eg := errgroup.Group{}
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, scenario := range resolved {
		eg.Go(func() error {
			shocked, err := applyScenario(model, scenario, x)
			if err != nil {
				return fmt.Errorf("failed to apply scenario %s: %w", scenario.Name, err)
			}
			pd, err := model.ScoreProbabilities(shocked)
			if err != nil {
				return fmt.Errorf("failed to score scenario %s: %w", scenario.Name, err)
			}
			multiplier := scenario.PDMultiplier
			if multiplier == 0 {
				multiplier = 1
			}
			for k := range pd {
				pd[k] = math.Min(pd[k]*multiplier, 1)
			}
			predictions[i] = domain.ScenarioPredictions{Scenario: scenario.Name, PD: pd}
			exposures[i] = h.exposures(shocked)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	observed := 0.0
	if len(y) > 0 {
		defaults := 0
		for _, v := range y {
			defaults += v
		}
		observed = float64(defaults) / float64(len(y))
	}

	results := make([]domain.ScenarioResult, len(resolved))
	baseline := mean(predictions[0].PD)
	for i, p := range predictions {
		avg := mean(p.PD)
		r := domain.ScenarioResult{
			Scenario:      p.Scenario,
			AveragePD:     avg,
			PDChange:      avg - baseline,
			ShareAboveCut: shareAbove(p.PD, h.Options.PDThreshold),
			ObservedRate:  observed,
		}
		if baseline > 0 {
			r.PDChangePct = (avg - baseline) / baseline * 100
		}
		if exposures[i] != nil {
			r.ExpectedLoss, r.ExposureAtRisk = expectedLoss(p.PD, exposures[i], h.Options.LGD)
		}
		results[i] = r
		h.Logger.Infow(
			"scored scenario",
			"scenario", r.Scenario,
			"avgPD", r.AveragePD,
			"pdChangePct", r.PDChangePct,
		)
	}
	return results, predictions, nil
}

// withBaseline prepends the identity scenario. a configured scenario
// named baseline replaces it and must not shock anything
func withBaseline(scenarios []domain.Scenario) ([]domain.Scenario, error) {
	out := []domain.Scenario{{Name: domain.BaselineScenario}}
	seen := map[string]bool{domain.BaselineScenario: true}
	for _, s := range scenarios {
		if s.Name == domain.BaselineScenario {
			if !s.IsIdentity() {
				return nil, fmt.Errorf("scenario %s must not adjust any feature", domain.BaselineScenario)
			}
			continue
		}
		if s.Name == "" {
			return nil, fmt.Errorf("scenario names must not be empty")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate scenario %s", s.Name)
		}
		seen[s.Name] = true
		out = append(out, s)
	}
	return out, nil
}

func validateScenarios(model domain.Model, scenarios []domain.Scenario) error {
	inputs := map[string]bool{}
	for _, f := range model.Inputs() {
		inputs[f] = true
	}
	for _, s := range scenarios {
		for _, a := range s.Adjustments {
			if !inputs[a.Feature] {
				return domain.SchemaError{
					Table:   "scenario " + s.Name,
					Column:  a.Feature,
					Message: "feature is not a numeric model input",
				}
			}
			switch a.Kind {
			case domain.AdjustmentAdditive, domain.AdjustmentMultiplicative, "":
			case domain.AdjustmentExpression:
				if a.Expression == "" {
					return fmt.Errorf("scenario %s: expression adjustment on %s has no expression", s.Name, a.Feature)
				}
			default:
				return fmt.Errorf("scenario %s: unknown adjustment kind %q", s.Name, a.Kind)
			}
		}
	}
	return nil
}

// applyScenario returns shocked copies of x. a missing shocked feature is
// filled with the model's own imputation first, so the shock lands on the
// value that would have been scored
func applyScenario(model domain.Model, s domain.Scenario, x []domain.Sample) ([]domain.Sample, error) {
	out := make([]domain.Sample, len(x))
	evaluator := goval.NewEvaluator()
	for i, sample := range x {
		shocked := sample.Clone()
		for _, a := range s.Adjustments {
			v, ok := shocked.Numeric[a.Feature]
			if !ok || math.IsNaN(v) {
				if v, ok = model.FillValue(a.Feature); !ok {
					continue
				}
			}
			switch a.Kind {
			case domain.AdjustmentMultiplicative:
				v *= a.Value
			case domain.AdjustmentExpression:
				var err error
				v, err = evaluateAdjustment(evaluator, a.Expression, v, shocked.Numeric)
				if err != nil {
					return nil, fmt.Errorf("failed to evaluate %q for %s: %w", a.Expression, sample.Key, err)
				}
			default:
				v += a.Value
			}
			shocked.Numeric[a.Feature] = v
		}
		out[i] = shocked
	}
	return out, nil
}

func evaluateAdjustment(evaluator *goval.Evaluator, expression string, current float64, numeric map[string]float64) (float64, error) {
	variables := make(map[string]interface{}, len(numeric)+1)
	for k, v := range numeric {
		variables[k] = v
	}
	variables["x"] = current

	result, err := evaluator.Evaluate(expression, variables, expressionFunctions)
	if err != nil {
		return 0, err
	}
	return toFloat(result)
}

var expressionFunctions = map[string]goval.ExpressionFunction{
	"min": func(args ...interface{}) (interface{}, error) {
		values, err := floatArgs("min", 2, args)
		if err != nil {
			return nil, err
		}
		return math.Min(values[0], values[1]), nil
	},
	"max": func(args ...interface{}) (interface{}, error) {
		values, err := floatArgs("max", 2, args)
		if err != nil {
			return nil, err
		}
		return math.Max(values[0], values[1]), nil
	},
	// clamp(value, lo, hi)
	"clamp": func(args ...interface{}) (interface{}, error) {
		values, err := floatArgs("clamp", 3, args)
		if err != nil {
			return nil, err
		}
		return math.Min(math.Max(values[0], values[1]), values[2]), nil
	},
}

func floatArgs(name string, n int, args []interface{}) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s needs %d args, got %d", name, n, len(args))
	}
	out := make([]float64, n)
	for i, a := range args {
		f, err := toFloat(a)
		if err != nil {
			return nil, fmt.Errorf("%s arg %d: %w", name, i, err)
		}
		out[i] = f
	}
	return out, nil
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

func (h stressServiceHandler) exposures(x []domain.Sample) []float64 {
	if h.Options.ExposureFeature == "" {
		return nil
	}
	out := make([]float64, len(x))
	for i, s := range x {
		out[i] = s.Numeric[h.Options.ExposureFeature]
	}
	return out
}

func expectedLoss(pd, exposure []float64, lgd float64) (decimal.Decimal, decimal.Decimal) {
	loss := decimal.Zero
	total := decimal.Zero
	lgdDec := decimal.NewFromFloat(lgd)
	for i := range pd {
		ead := decimal.NewFromFloat(exposure[i])
		total = total.Add(ead)
		loss = loss.Add(decimal.NewFromFloat(pd[i]).Mul(ead).Mul(lgdDec))
	}
	return loss.Round(2), total.Round(2)
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func shareAbove(v []float64, threshold float64) float64 {
	if len(v) == 0 {
		return 0
	}
	n := 0
	for _, x := range v {
		if x > threshold {
			n++
		}
	}
	return float64(n) / float64(len(v))
}
