package l1_service

import (
	"creditrisk/internal/config"
	"creditrisk/internal/domain"
	"creditrisk/internal/util"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseApplications validates the application table against the
// configured columns and types every remaining column as a feature.
// a column is numeric when all of its non-empty values parse as floats
func ParseApplications(t domain.RawTable, cols config.Columns, dateLayout string) ([]domain.Application, error) {
	required := []string{cols.ApplicationID, cols.OriginationDate}
	if cols.Approved != "" && t.HasColumn(cols.Approved) {
		required = append(required, cols.Approved)
	}
	if err := requireColumns(t, required); err != nil {
		return nil, err
	}
	reserved := toSet(required)
	numeric, categorical := classifyColumns(t, reserved)

	out := make([]domain.Application, 0, len(t.Rows))
	for i, row := range t.Rows {
		id := strings.TrimSpace(row[cols.ApplicationID])
		if id == "" {
			return nil, domain.SchemaError{Table: t.Name, Column: cols.ApplicationID, Message: fmt.Sprintf("empty identifier on row %d", i+1)}
		}
		orig, err := util.ParseDate(row[cols.OriginationDate], dateLayout)
		if err != nil {
			return nil, domain.SchemaError{Table: t.Name, Column: cols.OriginationDate, Message: fmt.Sprintf("row %d: %s", i+1, err.Error())}
		}
		approved := true
		if reserved[cols.Approved] {
			approved, err = parseFlag(row[cols.Approved])
			if err != nil {
				return nil, domain.SchemaError{Table: t.Name, Column: cols.Approved, Message: fmt.Sprintf("row %d: %s", i+1, err.Error())}
			}
		}
		app := domain.Application{
			ID:           id,
			OriginatedAt: orig,
			Approved:     approved,
			Numeric:      parseNumeric(row, numeric),
			Categorical:  parseCategorical(row, categorical),
		}
		out = append(out, app)
	}
	return out, nil
}

func ParsePerformance(t domain.RawTable, cols config.Columns, dateLayout string) ([]domain.PerformanceRecord, error) {
	required := []string{cols.ApplicationID, cols.ObservationDate, cols.DefaultFlag}
	if err := requireColumns(t, required); err != nil {
		return nil, err
	}
	numeric, categorical := classifyColumns(t, toSet(required))

	out := make([]domain.PerformanceRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		id := strings.TrimSpace(row[cols.ApplicationID])
		if id == "" {
			return nil, domain.SchemaError{Table: t.Name, Column: cols.ApplicationID, Message: fmt.Sprintf("empty identifier on row %d", i+1)}
		}
		observed, err := util.ParseDate(row[cols.ObservationDate], dateLayout)
		if err != nil {
			return nil, domain.SchemaError{Table: t.Name, Column: cols.ObservationDate, Message: fmt.Sprintf("row %d: %s", i+1, err.Error())}
		}
		defaulted, err := parseFlag(row[cols.DefaultFlag])
		if err != nil {
			return nil, domain.SchemaError{Table: t.Name, Column: cols.DefaultFlag, Message: fmt.Sprintf("row %d: %s", i+1, err.Error())}
		}
		out = append(out, domain.PerformanceRecord{
			ApplicationID: id,
			ObservedAt:    observed,
			Defaulted:     defaulted,
			Numeric:       parseNumeric(row, numeric),
			Categorical:   parseCategorical(row, categorical),
		})
	}
	return out, nil
}

// ParseMacro requires every non-date column to be numeric
func ParseMacro(t domain.RawTable, cols config.Columns, dateLayout string) ([]domain.MacroRecord, error) {
	if err := requireColumns(t, []string{cols.MacroDate}); err != nil {
		return nil, err
	}
	numeric, categorical := classifyColumns(t, toSet([]string{cols.MacroDate}))
	if len(categorical) > 0 {
		return nil, domain.SchemaError{Table: t.Name, Column: categorical[0], Message: "macro columns must be numeric"}
	}

	out := make([]domain.MacroRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		d, err := util.ParseDate(row[cols.MacroDate], dateLayout)
		if err != nil {
			return nil, domain.SchemaError{Table: t.Name, Column: cols.MacroDate, Message: fmt.Sprintf("row %d: %s", i+1, err.Error())}
		}
		out = append(out, domain.MacroRecord{
			Date:   d,
			Values: parseNumeric(row, numeric),
		})
	}
	return out, nil
}

func requireColumns(t domain.RawTable, cols []string) error {
	for _, c := range cols {
		if !t.HasColumn(c) {
			return domain.SchemaError{Table: t.Name, Column: c, Message: "required column is missing"}
		}
	}
	return nil
}

func classifyColumns(t domain.RawTable, reserved map[string]bool) (numeric []string, categorical []string) {
	for _, c := range t.Columns {
		if reserved[c] {
			continue
		}
		isNumeric := true
		for _, row := range t.Rows {
			v := strings.TrimSpace(row[c])
			if v == "" {
				continue
			}
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isNumeric = false
				break
			}
		}
		if isNumeric {
			numeric = append(numeric, c)
		} else {
			categorical = append(categorical, c)
		}
	}
	sort.Strings(numeric)
	sort.Strings(categorical)
	return numeric, categorical
}

// missing values are left out of the map rather than zero filled
func parseNumeric(row map[string]string, cols []string) map[string]float64 {
	out := make(map[string]float64, len(cols))
	for _, c := range cols {
		v := strings.TrimSpace(row[c])
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			out[c] = f
		}
	}
	return out
}

func parseCategorical(row map[string]string, cols []string) map[string]string {
	out := make(map[string]string, len(cols))
	for _, c := range cols {
		v := strings.TrimSpace(row[c])
		if v != "" {
			out[c] = v
		}
	}
	return out
}

func parseFlag(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "1.0", "true", "t", "yes", "y", "approved", "default", "defaulted":
		return true, nil
	case "0", "0.0", "false", "f", "no", "n", "rejected", "", "current":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized flag value %q", v)
}

func toSet(values []string) map[string]bool {
	out := map[string]bool{}
	for _, v := range values {
		out[v] = true
	}
	return out
}
