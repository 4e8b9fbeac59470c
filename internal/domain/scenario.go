package domain

import "github.com/shopspring/decimal"

const BaselineScenario = "baseline"

type AdjustmentKind string

const (
	AdjustmentAdditive       AdjustmentKind = "additive"
	AdjustmentMultiplicative AdjustmentKind = "multiplicative"
	AdjustmentExpression     AdjustmentKind = "expression"
)

// Adjustment shocks a single numeric feature
type Adjustment struct {
	Feature    string         `yaml:"feature" validate:"required"`
	Kind       AdjustmentKind `yaml:"kind" validate:"oneof=additive multiplicative expression"`
	Value      float64        `yaml:"value"`
	Expression string         `yaml:"expression" validate:"required_if=Kind expression"`
}

type Scenario struct {
	Name        string       `yaml:"name" validate:"required"`
	Adjustments []Adjustment `yaml:"adjustments" validate:"dive"`
	// PDMultiplier scales scored PDs after the feature shocks, 0 means 1
	PDMultiplier float64 `yaml:"pdMultiplier" validate:"gte=0"`
}

func (s Scenario) IsIdentity() bool {
	if len(s.Adjustments) > 0 {
		return false
	}
	return s.PDMultiplier == 0 || s.PDMultiplier == 1
}

type ScenarioResult struct {
	Scenario       string          `csv:"scenario"`
	AveragePD      float64         `csv:"avg_pd"`
	PDChange       float64         `csv:"pd_change"`
	PDChangePct    float64         `csv:"pd_change_pct"`
	ShareAboveCut  float64         `csv:"share_above_threshold"`
	ObservedRate   float64         `csv:"observed_default_rate"`
	ExpectedLoss   decimal.Decimal `csv:"expected_loss"`
	ExposureAtRisk decimal.Decimal `csv:"exposure"`
}

type ScenarioPredictions struct {
	Scenario string
	PD       []float64
}
