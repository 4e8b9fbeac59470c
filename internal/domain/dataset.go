package domain

import (
	"sort"
	"time"
)

const (
	TargetDefault12m     = "default_12m"
	TargetDefaultNext12m = "default_next_12m"

	SourceApplication = "application"
	SourcePerformance = "performance"
	SourceMacro       = "macro"
)

// SourceStamp records which table a row's values came from and when
// that table's record was dated
type SourceStamp struct {
	Source string
	At     time.Time
}

// Observation is one month of loan history relative to origination
type Observation struct {
	MonthsOnBook int
	Defaulted    bool
}

type Row struct {
	Key           string
	ApplicationID string
	OriginatedAt  time.Time
	// AsOf is the origination time for origination rows and the
	// snapshot time for monitoring rows
	AsOf         time.Time
	MonthsOnBook int
	Numeric      map[string]float64
	Categorical  map[string]string
	Labels       map[string]int
	Sources      []SourceStamp
	// only populated on origination rows
	History []Observation
}

type Dataset struct {
	Name   string
	Target string
	Rows   []Row
}

// NumericColumns returns every numeric column across the dataset, sorted
func (d Dataset) NumericColumns() []string {
	seen := map[string]struct{}{}
	for _, r := range d.Rows {
		for k := range r.Numeric {
			seen[k] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func (d Dataset) CategoricalColumns() []string {
	seen := map[string]struct{}{}
	for _, r := range d.Rows {
		for k := range r.Categorical {
			seen[k] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func (d Dataset) DefaultRate() float64 {
	if len(d.Rows) == 0 {
		return 0
	}
	n := 0
	for _, r := range d.Rows {
		n += r.Labels[d.Target]
	}
	return float64(n) / float64(len(d.Rows))
}

// CensoringReport counts rows dropped while building datasets so they
// can be surfaced instead of silently discarded
type CensoringReport struct {
	Applications         int
	RejectedApplications int
	WithoutPerformance   int
	CensoredOrigination  int
	CensoredMonitoring   int
	DefaultedSnapshots   int
	SampledOutMonitoring int
	AsOf                 time.Time
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
