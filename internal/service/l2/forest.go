package l2_service

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

const (
	forestTrees    = 100
	forestMaxDepth = 8
	forestMinLeaf  = 10
	forestSeedStep = 7919
)

type forestLearner struct {
	trees    int
	maxDepth int
	minLeaf  int
	seed     int64
}

func newForestLearner(seed int64) forestLearner {
	return forestLearner{
		trees:    forestTrees,
		maxDepth: forestMaxDepth,
		minLeaf:  forestMinLeaf,
		seed:     seed,
	}
}

type forestPredictor struct {
	trees       []regressionTree
	importances []float64
}

// Fit bags regression trees on the 0/1 label. each tree draws its own
// bootstrap and feature subsets from a seed derived from its index, so
// the result does not depend on scheduling
func (l forestLearner) Fit(x [][]float64, y []int) (Predictor, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("cannot fit random forest on 0 rows")
	}
	m := newBinnedMatrix(x)
	n := m.n

	g := make([]float64, n)
	h := make([]float64, n)
	for i := range y {
		g[i] = float64(y[i])
		h[i] = 1
	}

	params := treeParams{
		maxDepth: l.maxDepth,
		minLeaf:  l.minLeaf,
		lambda:   0,
		mtry:     int(math.Round(math.Sqrt(float64(m.p)))),
	}

	trees := make([]regressionTree, l.trees)
	gains := make([][]float64, l.trees)

	eg := errgroup.Group{}
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for t := 0; t < l.trees; t++ {
		eg.Go(func() error {
			rng := rand.New(rand.NewSource(l.seed + int64(t)*forestSeedStep))
			rows := make([]int, n)
			for i := range rows {
				rows[i] = rng.Intn(n)
			}
			gains[t] = make([]float64, m.p)
			trees[t] = buildTree(m, g, h, rows, params, rng, gains[t])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return forestPredictor{
		trees:       trees,
		importances: normalize(sumColumns(gains, m.p)),
	}, nil
}

func (f forestPredictor) PredictProba(row []float64) float64 {
	s := 0.0
	for _, t := range f.trees {
		s += t.predict(row)
	}
	p := s / float64(len(f.trees))
	return math.Min(math.Max(p, 0), 1)
}

func (f forestPredictor) Importances() []float64 {
	return append([]float64{}, f.importances...)
}

func sumColumns(rows [][]float64, p int) []float64 {
	out := make([]float64, p)
	for _, r := range rows {
		for j, v := range r {
			out[j] += v
		}
	}
	return out
}

func normalize(v []float64) []float64 {
	total := 0.0
	for _, x := range v {
		total += x
	}
	out := make([]float64, len(v))
	if total == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / total
	}
	return out
}
