package l3_service

import (
	"creditrisk/internal/domain"
	"fmt"
	"sort"
)

type CalibrationService interface {
	// BandedCalibration groups scored observations into nBands equal
	// population bands by ascending PD. when fewer bands can be formed
	// the table is still returned, together with a DegenerateBandingError
	BandedCalibration(yTrue []int, proba []float64, aux map[string][]float64, nBands int) (*domain.CalibrationTable, error)
}

type calibrationServiceHandler struct{}

func NewCalibrationService() CalibrationService {
	return calibrationServiceHandler{}
}

func (h calibrationServiceHandler) BandedCalibration(yTrue []int, proba []float64, aux map[string][]float64, nBands int) (*domain.CalibrationTable, error) {
	if nBands < 1 {
		return nil, fmt.Errorf("number of bands must be positive, got %d", nBands)
	}
	if len(yTrue) != len(proba) {
		return nil, domain.SchemaError{Table: "calibration", Message: fmt.Sprintf("got %d labels but %d predictions", len(yTrue), len(proba))}
	}
	for name, col := range aux {
		if len(col) != len(proba) {
			return nil, domain.SchemaError{Table: "calibration", Column: name, Message: fmt.Sprintf("got %d values for %d predictions", len(col), len(proba))}
		}
	}
	n := len(proba)
	if n == 0 {
		return nil, domain.EmptyResultError{Stage: "calibration", Reason: "no scored observations"}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return proba[order[a]] < proba[order[b]]
	})
	score := func(k int) float64 { return proba[order[k]] }

	auxNames := make([]string, 0, len(aux))
	for name := range aux {
		auxNames = append(auxNames, name)
	}
	sort.Strings(auxNames)

	table := &domain.CalibrationTable{Requested: nBands}
	start := 0
	for b := 1; b <= nBands && start < n; b++ {
		end := b * n / nBands
		if b == nBands {
			end = n
		}
		if end <= start {
			continue
		}
		// a cut inside a run of equal scores moves up so the run stays
		// in the lower band
		for end < n && score(end) == score(end-1) {
			end++
		}
		table.Bands = append(table.Bands, newBand(len(table.Bands)+1, order[start:end], yTrue, proba, aux, auxNames))
		start = end
	}

	if len(table.Bands) < nBands {
		return table, domain.DegenerateBandingError{
			Requested: nBands,
			Produced:  len(table.Bands),
			Distinct:  countDistinct(proba),
		}
	}
	return table, nil
}

func newBand(index int, rows []int, yTrue []int, proba []float64, aux map[string][]float64, auxNames []string) domain.Band {
	band := domain.Band{
		Index:    index,
		Count:    len(rows),
		MinScore: proba[rows[0]],
		MaxScore: proba[rows[len(rows)-1]],
	}
	sumPD := 0.0
	for _, i := range rows {
		sumPD += proba[i]
		band.Defaults += yTrue[i]
	}
	count := float64(len(rows))
	band.MeanPD = sumPD / count
	band.ObservedRate = float64(band.Defaults) / count
	if band.MeanPD > 0 {
		band.CalibrationRatio = band.ObservedRate / band.MeanPD
	}

	if len(auxNames) > 0 {
		band.Auxiliary = map[string]float64{}
		for _, name := range auxNames {
			s := 0.0
			for _, i := range rows {
				s += aux[name][i]
			}
			band.Auxiliary[name] = s / count
		}
	}
	return band
}

func countDistinct(values []float64) int {
	seen := map[float64]struct{}{}
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}
