package domain

// Band is one equal-population bucket of scored observations. Index
// starts at 1 for the lowest scores
type Band struct {
	Index            int                `csv:"band"`
	Count            int                `csv:"count"`
	Defaults         int                `csv:"defaults"`
	MinScore         float64            `csv:"min_pd"`
	MaxScore         float64            `csv:"max_pd"`
	MeanPD           float64            `csv:"mean_pd"`
	ObservedRate     float64            `csv:"observed_rate"`
	CalibrationRatio float64            `csv:"calibration_ratio"`
	Auxiliary        map[string]float64 `csv:"-"`
}

type CalibrationTable struct {
	Requested int
	Bands     []Band
}

func (t CalibrationTable) Population() int {
	n := 0
	for _, b := range t.Bands {
		n += b.Count
	}
	return n
}
