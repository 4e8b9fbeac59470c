package l2_service

import (
	"creditrisk/internal/domain"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

type SplitMode string

const (
	SplitTemporal SplitMode = "temporal"
	SplitRandom   SplitMode = "random"
)

type SplitOptions struct {
	Mode         SplitMode
	TestFraction float64
	Seed         int64
}

type SplitResult struct {
	TrainX []domain.Sample
	TrainY []int
	TestX  []domain.Sample
	TestY  []int
}

func split(x []domain.Sample, y []int, opts SplitOptions) (*SplitResult, error) {
	if len(x) != len(y) {
		return nil, domain.SchemaError{Table: "split", Message: fmt.Sprintf("got %d samples but %d labels", len(x), len(y))}
	}
	if opts.TestFraction <= 0 || opts.TestFraction >= 1 {
		return nil, fmt.Errorf("test fraction must be in (0, 1), got %f", opts.TestFraction)
	}
	if len(x) < 2 {
		return nil, domain.EmptyResultError{Stage: "split", Reason: fmt.Sprintf("need at least 2 samples, got %d", len(x))}
	}

	var test []bool
	switch opts.Mode {
	case SplitTemporal, "":
		test = temporalMask(x, opts.TestFraction)
	case SplitRandom:
		test = stratifiedMask(y, opts.TestFraction, opts.Seed)
	default:
		return nil, fmt.Errorf("unknown split mode %q", opts.Mode)
	}

	out := &SplitResult{}
	for i := range x {
		if test[i] {
			out.TestX = append(out.TestX, x[i])
			out.TestY = append(out.TestY, y[i])
		} else {
			out.TrainX = append(out.TrainX, x[i])
			out.TrainY = append(out.TrainY, y[i])
		}
	}
	if len(out.TrainX) == 0 || len(out.TestX) == 0 {
		return nil, domain.EmptyResultError{
			Stage:  "split",
			Reason: fmt.Sprintf("%d train and %d test samples", len(out.TrainX), len(out.TestX)),
		}
	}
	return out, nil
}

func testSize(n int, fraction float64) int {
	k := int(math.Round(fraction * float64(n)))
	if k < 1 {
		k = 1
	}
	if k > n-1 {
		k = n - 1
	}
	return k
}

// temporalMask puts the latest rows in test. equal times are ordered by
// key so the split does not depend on input order
func temporalMask(x []domain.Sample, fraction float64) []bool {
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		xa, xb := x[order[a]], x[order[b]]
		if !xa.Time.Equal(xb.Time) {
			return xa.Time.Before(xb.Time)
		}
		return xa.Key < xb.Key
	})

	nTest := testSize(len(x), fraction)
	test := make([]bool, len(x))
	for _, i := range order[len(order)-nTest:] {
		test[i] = true
	}
	return test
}

// stratifiedMask samples the test fraction within each class so both
// sides keep the overall default rate
func stratifiedMask(y []int, fraction float64, seed int64) []bool {
	byClass := map[int][]int{}
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	test := make([]bool, len(y))
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		k := int(math.Round(fraction * float64(len(idx))))
		for _, i := range idx[:k] {
			test[i] = true
		}
	}
	return test
}
