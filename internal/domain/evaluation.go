package domain

// Evaluation holds held-out metrics for a trained model. predictions and
// labels are unexported so callers can't mutate them through a shared
// slice
type Evaluation struct {
	Algorithm     Algorithm
	Target        string
	AUC           float64
	Gini          float64
	KS            float64
	LogLoss       float64
	Brier         float64
	MeanPredicted float64
	ObservedRate  float64
	Count         int
	Defaults      int

	predictions []float64
	labels      []int
}

func NewEvaluation(e Evaluation, predictions []float64, labels []int) *Evaluation {
	e.predictions = append([]float64{}, predictions...)
	e.labels = append([]int{}, labels...)
	return &e
}

func (e Evaluation) Predictions() []float64 {
	return append([]float64{}, e.predictions...)
}

func (e Evaluation) Labels() []int {
	return append([]int{}, e.labels...)
}
