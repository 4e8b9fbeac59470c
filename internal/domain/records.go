package domain

import "time"

// Application is a single loan application with the static features known
// at origination
type Application struct {
	ID           string
	OriginatedAt time.Time
	Approved     bool
	Numeric      map[string]float64
	Categorical  map[string]string
}

// PerformanceRecord is the state of a loan at one observation date
type PerformanceRecord struct {
	ApplicationID string
	ObservedAt    time.Time
	Defaulted     bool
	Numeric       map[string]float64
	Categorical   map[string]string
}

// MacroRecord holds macroeconomic indicators published for a date
type MacroRecord struct {
	Date   time.Time
	Values map[string]float64
}

// RawTable is an untyped tabular input, as loaded from a file
type RawTable struct {
	Name    string
	Columns []string
	Rows    []map[string]string
}

func (t RawTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}
