package calculator

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

const probabilityEpsilon = 1e-15

type ClassificationMetrics struct {
	AUC           float64
	Gini          float64
	KS            float64
	LogLoss       float64
	Brier         float64
	MeanPredicted float64
	ObservedRate  float64
	Count         int
	Positives     int
}

// CalculateClassificationMetrics scores binary labels against predicted
// probabilities. it needs both classes present for the ranking metrics
func CalculateClassificationMetrics(y []int, p []float64) (*ClassificationMetrics, error) {
	if len(y) != len(p) {
		return nil, fmt.Errorf("got %d labels but %d predictions", len(y), len(p))
	}
	if len(y) == 0 {
		return nil, fmt.Errorf("cannot calculate metrics on 0 observations")
	}

	auc, err := AUC(y, p)
	if err != nil {
		return nil, err
	}
	ks, err := KS(y, p)
	if err != nil {
		return nil, err
	}

	labels := make(stats.Float64Data, len(y))
	positives := 0
	logLoss, brier := 0.0, 0.0
	for i := range y {
		labels[i] = float64(y[i])
		positives += y[i]
		q := math.Min(math.Max(p[i], probabilityEpsilon), 1-probabilityEpsilon)
		logLoss -= labels[i]*math.Log(q) + (1-labels[i])*math.Log(1-q)
		brier += (p[i] - labels[i]) * (p[i] - labels[i])
	}
	n := float64(len(y))

	meanPredicted, err := stats.Mean(p)
	if err != nil {
		return nil, err
	}
	observed, err := labels.Mean()
	if err != nil {
		return nil, err
	}

	return &ClassificationMetrics{
		AUC:           auc,
		Gini:          2*auc - 1,
		KS:            ks,
		LogLoss:       logLoss / n,
		Brier:         brier / n,
		MeanPredicted: meanPredicted,
		ObservedRate:  observed,
		Count:         len(y),
		Positives:     positives,
	}, nil
}

func countClasses(y []int) (pos, neg int, err error) {
	for _, v := range y {
		switch v {
		case 1:
			pos++
		case 0:
			neg++
		default:
			return 0, 0, fmt.Errorf("labels must be 0 or 1, got %d", v)
		}
	}
	if pos == 0 || neg == 0 {
		return pos, neg, fmt.Errorf("need both classes, got %d positive and %d negative", pos, neg)
	}
	return pos, neg, nil
}

// AUC is the Mann-Whitney statistic with tied scores sharing the
// average rank
func AUC(y []int, p []float64) (float64, error) {
	pos, neg, err := countClasses(y)
	if err != nil {
		return 0, err
	}
	idx := sortedIndex(p)

	rankSumPos := 0.0
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && p[idx[j]] == p[idx[i]] {
			j++
		}
		// ranks are 1-based, average of i+1..j
		avgRank := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			if y[idx[k]] == 1 {
				rankSumPos += avgRank
			}
		}
		i = j
	}

	nPos, nNeg := float64(pos), float64(neg)
	return (rankSumPos - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

// KS is the maximum distance between the cumulative score distributions
// of positives and negatives
func KS(y []int, p []float64) (float64, error) {
	pos, neg, err := countClasses(y)
	if err != nil {
		return 0, err
	}
	idx := sortedIndex(p)

	cumPos, cumNeg, best := 0, 0, 0.0
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && p[idx[j]] == p[idx[i]] {
			if y[idx[j]] == 1 {
				cumPos++
			} else {
				cumNeg++
			}
			j++
		}
		d := math.Abs(float64(cumPos)/float64(pos) - float64(cumNeg)/float64(neg))
		if d > best {
			best = d
		}
		i = j
	}
	return best, nil
}

func sortedIndex(p []float64) []int {
	idx := make([]int, len(p))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return p[idx[a]] < p[idx[b]]
	})
	return idx
}
