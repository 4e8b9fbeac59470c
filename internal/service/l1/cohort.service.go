package l1_service

import (
	"creditrisk/internal/domain"
	"creditrisk/internal/util"
	"fmt"
	"sort"
	"time"
)

const minCohortsPerSide = 2

type CohortService interface {
	DefaultCurves(ds domain.Dataset, granularity domain.Granularity) (*domain.CohortCurves, error)
	Compare(curves domain.CohortCurves, cohortsA, cohortsB []string) (*domain.CohortComparison, error)
	EarlyVsRecent(curves domain.CohortCurves, n int) (early []string, recent []string, err error)
}

type cohortServiceHandler struct{}

func NewCohortService() CohortService {
	return cohortServiceHandler{}
}

func cohortKey(t time.Time, g domain.Granularity) (string, error) {
	switch g {
	case domain.GranularityMonth:
		return util.MonthKey(t), nil
	case domain.GranularityQuarter:
		return util.QuarterKey(t), nil
	}
	return "", fmt.Errorf("unknown cohort granularity %q", g)
}

type loanOutcome struct {
	firstDefault int
	lastMOB      int
}

// DefaultCurves computes the default rate of every (cohort, months on
// book) cell that has at least one observation. unobserved cells are
// omitted, not zero filled
func (h cohortServiceHandler) DefaultCurves(ds domain.Dataset, granularity domain.Granularity) (*domain.CohortCurves, error) {
	if len(ds.Rows) == 0 {
		return nil, domain.EmptyResultError{Stage: "cohort curves", Reason: "dataset has no rows"}
	}

	type cell struct {
		observations int
		defaults     int
	}
	cells := map[string]map[int]*cell{}
	outcomes := map[string][]loanOutcome{}

	for _, row := range ds.Rows {
		key, err := cohortKey(row.OriginatedAt, granularity)
		if err != nil {
			return nil, err
		}
		if _, ok := cells[key]; !ok {
			cells[key] = map[int]*cell{}
		}
		outcome := loanOutcome{firstDefault: -1, lastMOB: -1}
		for _, obs := range row.History {
			c, ok := cells[key][obs.MonthsOnBook]
			if !ok {
				c = &cell{}
				cells[key][obs.MonthsOnBook] = c
			}
			c.observations++
			if obs.Defaulted {
				c.defaults++
				if outcome.firstDefault < 0 || obs.MonthsOnBook < outcome.firstDefault {
					outcome.firstDefault = obs.MonthsOnBook
				}
			}
			if obs.MonthsOnBook > outcome.lastMOB {
				outcome.lastMOB = obs.MonthsOnBook
			}
		}
		outcomes[key] = append(outcomes[key], outcome)
	}

	out := &domain.CohortCurves{
		Granularity: granularity,
		Curves:      map[string]domain.CohortCurve{},
	}
	for key, byMOB := range cells {
		mobs := make([]int, 0, len(byMOB))
		for m := range byMOB {
			mobs = append(mobs, m)
		}
		sort.Ints(mobs)

		curve := domain.CohortCurve{
			Cohort: key,
			Loans:  len(outcomes[key]),
		}
		for _, m := range mobs {
			c := byMOB[m]
			curve.Points = append(curve.Points, domain.CurvePoint{
				MonthsOnBook:   m,
				Observations:   c.observations,
				Defaults:       c.defaults,
				DefaultRate:    float64(c.defaults) / float64(c.observations),
				CumulativeRate: cumulativeRate(outcomes[key], m),
			})
		}
		out.Curves[key] = curve
		out.Order = append(out.Order, key)
	}
	sort.Strings(out.Order)

	return out, nil
}

// cumulativeRate is the share of loans that defaulted by month m among
// loans still observed at m or already defaulted
func cumulativeRate(outcomes []loanOutcome, m int) float64 {
	atRisk, defaulted := 0, 0
	for _, o := range outcomes {
		hasDefaulted := o.firstDefault >= 0 && o.firstDefault <= m
		if hasDefaulted {
			defaulted++
			atRisk++
		} else if o.lastMOB >= m {
			atRisk++
		}
	}
	if atRisk == 0 {
		return 0
	}
	return float64(defaulted) / float64(atRisk)
}

// Compare aligns two cohort sets on the months on book observed in every
// cohort of both sets and reports B - A per month. each side's rate is
// pooled across its cohorts
func (h cohortServiceHandler) Compare(curves domain.CohortCurves, cohortsA, cohortsB []string) (*domain.CohortComparison, error) {
	if err := validateCohortSet(curves, "A", cohortsA); err != nil {
		return nil, err
	}
	if err := validateCohortSet(curves, "B", cohortsB); err != nil {
		return nil, err
	}
	inA := toSet(cohortsA)
	for _, c := range cohortsB {
		if inA[c] {
			return nil, fmt.Errorf("cohort %s appears in both comparison sets", c)
		}
	}

	all := append(append([]string{}, cohortsA...), cohortsB...)
	common := map[int]int{}
	for _, c := range all {
		for _, p := range curves.Curves[c].Points {
			common[p.MonthsOnBook]++
		}
	}
	mobs := []int{}
	for m, n := range common {
		if n == len(all) {
			mobs = append(mobs, m)
		}
	}
	sort.Ints(mobs)
	if len(mobs) == 0 {
		return nil, domain.EmptyResultError{Stage: "cohort comparison", Reason: "no months on book shared by every cohort"}
	}

	out := &domain.CohortComparison{
		CohortsA: cohortsA,
		CohortsB: cohortsB,
	}
	for _, m := range mobs {
		a := pooledRate(curves, cohortsA, m)
		b := pooledRate(curves, cohortsB, m)
		out.Rows = append(out.Rows, domain.ComparisonRow{
			MonthsOnBook: m,
			RateA:        a,
			RateB:        b,
			Delta:        b - a,
		})
		out.AverageRateA += a
		out.AverageRateB += b
	}
	n := float64(len(out.Rows))
	out.AverageRateA /= n
	out.AverageRateB /= n
	out.AverageDelta = out.AverageRateB - out.AverageRateA

	return out, nil
}

func validateCohortSet(curves domain.CohortCurves, side string, cohorts []string) error {
	if len(cohorts) < minCohortsPerSide {
		return domain.InsufficientCohortsError{Side: side, Cohorts: cohorts, Required: minCohortsPerSide}
	}
	seen := map[string]bool{}
	for _, c := range cohorts {
		if _, ok := curves.Curves[c]; !ok {
			return domain.InsufficientCohortsError{Side: side, Cohorts: cohorts, Required: minCohortsPerSide, Reason: fmt.Sprintf("cohort %s not found", c)}
		}
		if seen[c] {
			return domain.InsufficientCohortsError{Side: side, Cohorts: cohorts, Required: minCohortsPerSide, Reason: fmt.Sprintf("cohort %s listed twice", c)}
		}
		seen[c] = true
	}
	return nil
}

func pooledRate(curves domain.CohortCurves, cohorts []string, mob int) float64 {
	obs, defaults := 0, 0
	for _, c := range cohorts {
		p, _ := curves.Curves[c].PointAt(mob)
		obs += p.Observations
		defaults += p.Defaults
	}
	return float64(defaults) / float64(obs)
}

// EarlyVsRecent picks the n earliest and n latest cohorts
func (h cohortServiceHandler) EarlyVsRecent(curves domain.CohortCurves, n int) ([]string, []string, error) {
	if n < minCohortsPerSide {
		n = minCohortsPerSide
	}
	if len(curves.Order) < 2*n {
		return nil, nil, domain.InsufficientCohortsError{
			Side:     "A+B",
			Cohorts:  curves.Order,
			Required: 2 * n,
			Reason:   "not enough cohorts for an early vs recent comparison",
		}
	}
	early := append([]string{}, curves.Order[:n]...)
	recent := append([]string{}, curves.Order[len(curves.Order)-n:]...)
	return early, recent, nil
}
