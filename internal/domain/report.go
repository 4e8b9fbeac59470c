package domain

import "time"

// ModelReport is everything produced for one trained model
type ModelReport struct {
	Name       string
	Dataset    string
	SplitMode  string
	TrainRows  int
	TestRows   int
	Evaluation *Evaluation
	Importance []FeatureImportance
}

// Report collects the artifacts of a pipeline run for persistence
type Report struct {
	RunID     string
	StartedAt time.Time
	AsOf      time.Time
	Censoring CensoringReport

	OriginationRows int
	MonitoringRows  int
	Origination     Dataset
	Monitoring      Dataset

	Curves   CohortCurves
	// Vintages holds the monthly and quarterly curves regardless of the
	// configured granularity
	Vintages []CohortCurves

	Comparison *CohortComparison
	Features   []FeatureSummary

	OriginationModel ModelReport
	MonitoringModel  *ModelReport

	Calibration *CalibrationTable
	// CalibrationWarning is set when fewer bands than requested were built
	CalibrationWarning string

	Stress              []ScenarioResult
	ScenarioPredictions []ScenarioPredictions
	// TestKeys aligns with every ScenarioPredictions.PD vector
	TestKeys []string

	Cases      *CaseComparison
	Deployment *DeploymentSummary
	Profile    *Profile
}
