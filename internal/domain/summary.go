package domain

// CaseSummary is one scored case with its raw inputs
type CaseSummary struct {
	Label   string
	Key     string
	PD      float64
	Numeric map[string]float64
}

type FeatureContrast struct {
	Feature    string  `csv:"feature"`
	HighRisk   float64 `csv:"high_risk_value"`
	LowRisk    float64 `csv:"low_risk_value"`
	Difference float64 `csv:"difference"`
	Weight     float64 `csv:"weight"`
}

type CaseComparison struct {
	HighRisk  []CaseSummary
	LowRisk   []CaseSummary
	Contrasts []FeatureContrast
}

type DeploymentSummary struct {
	AUC                 float64
	Gini                float64
	KS                  float64
	DiscriminationGrade string
	MaxCalibrationGap   float64
	// StressIncreasePct is indexed by scenario position, baseline at 0
	StressIncreasePct []float64
	VintageTrend      float64
	Recommendations   []string
}

// FeatureSummary is descriptive statistics for one numeric column
type FeatureSummary struct {
	Feature     string  `csv:"feature"`
	Count       int     `csv:"count"`
	Missing     int     `csv:"missing"`
	Mean        float64 `csv:"mean"`
	Stdev       float64 `csv:"stdev"`
	Min         float64 `csv:"min"`
	P25         float64 `csv:"p25"`
	Median      float64 `csv:"median"`
	P75         float64 `csv:"p75"`
	Max         float64 `csv:"max"`
	Correlation float64 `csv:"target_correlation"`
}
