package domain

type Granularity string

const (
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
)

// CurvePoint is a single (cohort, months-on-book) cell
type CurvePoint struct {
	MonthsOnBook   int     `csv:"months_on_book"`
	Observations   int     `csv:"observations"`
	Defaults       int     `csv:"defaults"`
	DefaultRate    float64 `csv:"default_rate"`
	CumulativeRate float64 `csv:"cumulative_rate"`
}

type CohortCurve struct {
	Cohort string
	Loans  int
	Points []CurvePoint
}

// PointAt returns the cell for a months-on-book value, if it was observed
func (c CohortCurve) PointAt(mob int) (CurvePoint, bool) {
	for _, p := range c.Points {
		if p.MonthsOnBook == mob {
			return p, true
		}
	}
	return CurvePoint{}, false
}

// CohortCurves is keyed by cohort, with Order holding the sorted keys
type CohortCurves struct {
	Granularity Granularity
	Order       []string
	Curves      map[string]CohortCurve
}

type ComparisonRow struct {
	MonthsOnBook int     `csv:"months_on_book"`
	RateA        float64 `csv:"rate_a"`
	RateB        float64 `csv:"rate_b"`
	Delta        float64 `csv:"delta"`
}

type CohortComparison struct {
	CohortsA     []string
	CohortsB     []string
	Rows         []ComparisonRow
	AverageRateA float64
	AverageRateB float64
	AverageDelta float64
}
