package l2_service

import (
	"math/rand"
	"sort"
)

const (
	maxBins = 32
	minGain = 1e-12
)

// binnedMatrix is a column-major quantile binning of the training matrix.
// bin b of feature j holds values in (edges[j][b-1], edges[j][b]]
type binnedMatrix struct {
	n, p  int
	edges [][]float64
	bins  [][]uint8
}

func newBinnedMatrix(x [][]float64) *binnedMatrix {
	n := len(x)
	p := 0
	if n > 0 {
		p = len(x[0])
	}
	m := &binnedMatrix{
		n:     n,
		p:     p,
		edges: make([][]float64, p),
		bins:  make([][]uint8, p),
	}
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		m.edges[j] = quantileEdges(col)
		m.bins[j] = make([]uint8, n)
		for i := range x {
			m.bins[j][i] = binOf(m.edges[j], x[i][j])
		}
	}
	return m
}

func quantileEdges(col []float64) []float64 {
	sorted := append([]float64{}, col...)
	sort.Float64s(sorted)

	distinct := []float64{}
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) <= maxBins {
		return distinct
	}

	edges := []float64{}
	for k := 1; k < maxBins; k++ {
		v := sorted[k*len(sorted)/maxBins]
		if len(edges) == 0 || v > edges[len(edges)-1] {
			edges = append(edges, v)
		}
	}
	if last := sorted[len(sorted)-1]; last > edges[len(edges)-1] {
		edges = append(edges, last)
	}
	return edges
}

func binOf(edges []float64, v float64) uint8 {
	b := sort.SearchFloat64s(edges, v)
	if b >= len(edges) {
		b = len(edges) - 1
	}
	return uint8(b)
}

type treeParams struct {
	maxDepth int
	minLeaf  int
	lambda   float64
	// mtry <= 0 means every feature is a split candidate
	mtry int
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      int
	right     int
}

// regressionTree fits leaf values G/(H+lambda) from per-row gradient and
// hessian sums, the same builder serves forests and boosting
type regressionTree struct {
	nodes []treeNode
}

func (t regressionTree) predict(row []float64) float64 {
	i := 0
	for !t.nodes[i].leaf {
		n := t.nodes[i]
		if row[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
	return t.nodes[i].value
}

type treeBuilder struct {
	m      *binnedMatrix
	g, h   []float64
	params treeParams
	rng    *rand.Rand
	gains  []float64
	nodes  []treeNode
}

// buildTree grows a tree over rows, which may contain repeated indices
// for bootstrap samples. split gains are added into gains
func buildTree(m *binnedMatrix, g, h []float64, rows []int, params treeParams, rng *rand.Rand, gains []float64) regressionTree {
	if params.minLeaf < 1 {
		params.minLeaf = 1
	}
	b := &treeBuilder{
		m:      m,
		g:      g,
		h:      h,
		params: params,
		rng:    rng,
		gains:  gains,
	}
	b.grow(rows, 0)
	return regressionTree{nodes: b.nodes}
}

type splitCandidate struct {
	feature int
	bin     int
	gain    float64
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{})

	G, H := 0.0, 0.0
	for _, i := range rows {
		G += b.g[i]
		H += b.h[i]
	}
	leafValue := G / (H + b.params.lambda)

	if depth >= b.params.maxDepth || len(rows) < 2*b.params.minLeaf {
		b.nodes[id] = treeNode{leaf: true, value: leafValue}
		return id
	}

	best, ok := b.bestSplit(rows, G, H)
	if !ok {
		b.nodes[id] = treeNode{leaf: true, value: leafValue}
		return id
	}
	b.gains[best.feature] += best.gain

	left, right := []int{}, []int{}
	bins := b.m.bins[best.feature]
	for _, i := range rows {
		if int(bins[i]) <= best.bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = treeNode{
		feature:   best.feature,
		threshold: b.m.edges[best.feature][best.bin],
		left:      l,
		right:     r,
	}
	return id
}

func (b *treeBuilder) candidateFeatures() []int {
	p := b.m.p
	if b.params.mtry <= 0 || b.params.mtry >= p {
		out := make([]int, p)
		for j := range out {
			out[j] = j
		}
		return out
	}
	out := b.rng.Perm(p)[:b.params.mtry]
	sort.Ints(out)
	return out
}

func (b *treeBuilder) score(g, h float64) float64 {
	return g * g / (h + b.params.lambda)
}

// bestSplit scans histogram bins per candidate feature. the first
// feature and bin reaching the best gain wins ties
func (b *treeBuilder) bestSplit(rows []int, G, H float64) (splitCandidate, bool) {
	parent := b.score(G, H)
	best := splitCandidate{gain: minGain}
	found := false

	var gHist, hHist [maxBins]float64
	var cHist [maxBins]int
	for _, j := range b.candidateFeatures() {
		nb := len(b.m.edges[j])
		if nb < 2 {
			continue
		}
		for k := 0; k < nb; k++ {
			gHist[k], hHist[k], cHist[k] = 0, 0, 0
		}
		bins := b.m.bins[j]
		for _, i := range rows {
			k := bins[i]
			gHist[k] += b.g[i]
			hHist[k] += b.h[i]
			cHist[k]++
		}

		gl, hl, cl := 0.0, 0.0, 0
		for k := 0; k < nb-1; k++ {
			gl += gHist[k]
			hl += hHist[k]
			cl += cHist[k]
			cr := len(rows) - cl
			if cl < b.params.minLeaf {
				continue
			}
			if cr < b.params.minLeaf {
				break
			}
			if hl+b.params.lambda <= 0 || H-hl+b.params.lambda <= 0 {
				continue
			}
			gain := b.score(gl, hl) + b.score(G-gl, H-hl) - parent
			if gain > best.gain {
				best = splitCandidate{feature: j, bin: k, gain: gain}
				found = true
			}
		}
	}
	return best, found
}
