package l2_service

import (
	"fmt"
)

const (
	boostingRounds       = 150
	boostingLearningRate = 0.1
	boostingMaxDepth     = 3
	boostingMinLeaf      = 20
	boostingLambda       = 1.0
)

type boostingLearner struct {
	rounds       int
	learningRate float64
	params       treeParams
}

func newBoostingLearner() boostingLearner {
	return boostingLearner{
		rounds:       boostingRounds,
		learningRate: boostingLearningRate,
		params: treeParams{
			maxDepth: boostingMaxDepth,
			minLeaf:  boostingMinLeaf,
			lambda:   boostingLambda,
		},
	}
}

type boostingPredictor struct {
	base         float64
	learningRate float64
	trees        []regressionTree
	importances  []float64
}

// Fit does newton boosting on log loss. each round fits a tree to the
// gradient y-p with hessian p(1-p)
func (l boostingLearner) Fit(x [][]float64, y []int) (Predictor, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("cannot fit gradient boosting on 0 rows")
	}
	m := newBinnedMatrix(x)
	n := m.n

	base := logit(meanLabel(y))
	f := make([]float64, n)
	for i := range f {
		f[i] = base
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}

	g := make([]float64, n)
	h := make([]float64, n)
	gains := make([]float64, m.p)
	trees := make([]regressionTree, 0, l.rounds)
	for r := 0; r < l.rounds; r++ {
		for i := range f {
			p := sigmoid(f[i])
			g[i] = float64(y[i]) - p
			h[i] = p * (1 - p)
		}
		tree := buildTree(m, g, h, rows, l.params, nil, gains)
		trees = append(trees, tree)
		for i := range f {
			f[i] += l.learningRate * tree.predict(x[i])
		}
	}

	return boostingPredictor{
		base:         base,
		learningRate: l.learningRate,
		trees:        trees,
		importances:  normalize(gains),
	}, nil
}

func (b boostingPredictor) PredictProba(row []float64) float64 {
	s := b.base
	for _, t := range b.trees {
		s += b.learningRate * t.predict(row)
	}
	return sigmoid(s)
}

func (b boostingPredictor) Importances() []float64 {
	return append([]float64{}, b.importances...)
}
