package l2_service

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const (
	logisticMaxIterations     = 200
	logisticGradientThreshold = 1e-6
	logisticL2                = 1e-3
)

type logisticLearner struct {
	maxIterations     int
	gradientThreshold float64
	l2                float64
}

func newLogisticLearner() logisticLearner {
	return logisticLearner{
		maxIterations:     logisticMaxIterations,
		gradientThreshold: logisticGradientThreshold,
		l2:                logisticL2,
	}
}

type logisticPredictor struct {
	means     []float64
	scales    []float64
	weights   []float64
	intercept float64
}

// logisticObjective is the mean log-loss over standardized rows plus an l2
// penalty on the weights. theta[0] is the intercept
type logisticObjective struct {
	z  [][]float64
	y  []int
	l2 float64
}

func (o logisticObjective) loss(theta []float64) float64 {
	w := theta[1:]
	total := 0.0
	for i, row := range o.z {
		s := theta[0] + floats.Dot(w, row)
		total += softplus(s) - float64(o.y[i])*s
	}
	return total/float64(len(o.z)) + 0.5*o.l2*floats.Dot(w, w)
}

func (o logisticObjective) gradient(grad, theta []float64) {
	for j := range grad {
		grad[j] = 0
	}
	w, gw := theta[1:], grad[1:]
	for i, row := range o.z {
		residual := sigmoid(theta[0]+floats.Dot(w, row)) - float64(o.y[i])
		grad[0] += residual
		floats.AddScaled(gw, residual, row)
	}
	floats.Scale(1/float64(len(o.z)), grad)
	floats.AddScaled(gw, o.l2, w)
}

// Fit minimizes the penalized log-loss with L-BFGS on standardized columns
func (l logisticLearner) Fit(x [][]float64, y []int) (Predictor, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("cannot fit logistic regression on 0 rows")
	}
	n, p := len(x), len(x[0])

	means := make([]float64, p)
	scales := make([]float64, p)
	for j := 0; j < p; j++ {
		col := make(stats.Float64Data, n)
		for i := range x {
			col[i] = x[i][j]
		}
		mean, err := col.Mean()
		if err != nil {
			return nil, err
		}
		sd, err := col.StandardDeviationPopulation()
		if err != nil {
			return nil, err
		}
		if sd == 0 {
			sd = 1
		}
		means[j], scales[j] = mean, sd
	}

	z := make([][]float64, n)
	for i := range x {
		z[i] = make([]float64, p)
		for j := range x[i] {
			z[i][j] = (x[i][j] - means[j]) / scales[j]
		}
	}

	objective := logisticObjective{z: z, y: y, l2: l.l2}
	problem := optimize.Problem{
		Func: objective.loss,
		Grad: objective.gradient,
	}
	settings := &optimize.Settings{
		GradientThreshold: l.gradientThreshold,
		MajorIterations:   l.maxIterations,
	}

	init := make([]float64, p+1)
	init[0] = logit(meanLabel(y))
	result, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})
	if result == nil {
		return nil, fmt.Errorf("failed to fit logistic regression: %w", err)
	}
	// a line search can stall right at the optimum, which is still a usable fit
	if err != nil && floats.Norm(result.Gradient, math.Inf(1)) > math.Sqrt(l.gradientThreshold) {
		return nil, fmt.Errorf("failed to fit logistic regression after %d iterations: %w", result.MajorIterations, err)
	}

	return logisticPredictor{
		means:     means,
		scales:    scales,
		weights:   append([]float64{}, result.X[1:]...),
		intercept: result.X[0],
	}, nil
}

func (m logisticPredictor) PredictProba(row []float64) float64 {
	s := m.intercept
	for j, v := range row {
		s += m.weights[j] * (v - m.means[j]) / m.scales[j]
	}
	return sigmoid(s)
}

// Importances is the absolute standardized coefficient
func (m logisticPredictor) Importances() []float64 {
	out := make([]float64, len(m.weights))
	for j, w := range m.weights {
		out[j] = math.Abs(w)
	}
	return out
}

// softplus is log(1+e^v) without overflow
func softplus(v float64) float64 {
	if v > 0 {
		return v + math.Log1p(math.Exp(-v))
	}
	return math.Log1p(math.Exp(v))
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

func logit(p float64) float64 {
	p = math.Min(math.Max(p, 1e-6), 1-1e-6)
	return math.Log(p / (1 - p))
}

func meanLabel(y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	s := 0
	for _, v := range y {
		s += v
	}
	return float64(s) / float64(len(y))
}
