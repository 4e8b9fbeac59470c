package l1_service

import (
	"creditrisk/internal/config"
	"creditrisk/internal/domain"
	"creditrisk/internal/logger"
	"creditrisk/internal/util"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newApplication(id string, orig time.Time, approved bool, income float64) domain.Application {
	return domain.Application{
		ID:           id,
		OriginatedAt: orig,
		Approved:     approved,
		Numeric:      map[string]float64{"income": income},
		Categorical:  map[string]string{"purpose": "car"},
	}
}

// monthlyHistory observes a loan on the 28th of each month from fromMOB to
// toMOB. defaultAt < 0 means the loan never defaults; the history stops at
// the default month otherwise
func monthlyHistory(id string, orig time.Time, fromMOB, toMOB, defaultAt int) []domain.PerformanceRecord {
	out := []domain.PerformanceRecord{}
	for mob := fromMOB; mob <= toMOB; mob++ {
		d := time.Date(orig.Year(), orig.Month()+time.Month(mob), 28, 0, 0, 0, 0, time.UTC)
		out = append(out, domain.PerformanceRecord{
			ApplicationID: id,
			ObservedAt:    d,
			Defaulted:     mob == defaultAt,
			Numeric:       map[string]float64{"days_past_due": float64(mob)},
		})
		if mob == defaultAt {
			break
		}
	}
	return out
}

func concat(lists ...[]domain.PerformanceRecord) []domain.PerformanceRecord {
	out := []domain.PerformanceRecord{}
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func rowKeys(rows []domain.Row) []string {
	out := []string{}
	for _, r := range rows {
		out = append(out, r.Key)
	}
	return out
}

func TestDatasetService_Build(t *testing.T) {
	handler := NewDatasetService(logger.NewNop())
	jan2020 := util.NewDate(2020, 1, 15)

	t.Run("origination labels and censoring", func(t *testing.T) {
		asOf := util.NewDate(2021, 12, 1)
		out, err := handler.Build(BuildInput{
			Applications: []domain.Application{
				newApplication("A", jan2020, true, 100),
				newApplication("B", jan2020, true, 50),
				newApplication("C", jan2020, true, 70),
				newApplication("D", util.NewDate(2021, 6, 1), true, 80),
				newApplication("E", jan2020, false, 90),
				newApplication("F", jan2020, true, 60),
			},
			Performance: concat(
				monthlyHistory("A", jan2020, 1, 12, -1),
				monthlyHistory("B", jan2020, 1, 12, 5),
				monthlyHistory("C", jan2020, 1, 6, -1),
				monthlyHistory("D", util.NewDate(2021, 6, 1), 1, 6, -1),
			),
			AsOf: &asOf,
		})
		require.NoError(t, err)

		require.Equal(t, []string{"A", "B"}, rowKeys(out.Origination.Rows))
		require.Equal(t, 0, out.Origination.Rows[0].Labels[domain.TargetDefault12m])
		require.Equal(t, 1, out.Origination.Rows[1].Labels[domain.TargetDefault12m])

		require.Equal(t, 2, out.Report.CensoredOrigination)
		require.Equal(t, 1, out.Report.RejectedApplications)
		require.Equal(t, 1, out.Report.WithoutPerformance)
		require.Equal(t, asOf, out.Report.AsOf)

		// B defaulted at month 5, so its snapshots at months 1-4 are all
		// labelled as defaulting in the next 12 months
		require.Equal(
			t,
			"",
			cmp.Diff(
				[]string{"B@2020-02-28", "B@2020-03-28", "B@2020-04-28", "B@2020-05-28"},
				rowKeys(out.Monitoring.Rows),
			),
		)
		for _, r := range out.Monitoring.Rows {
			require.Equal(t, 1, r.Labels[domain.TargetDefaultNext12m])
		}
	})

	t.Run("origination features exclude performance data", func(t *testing.T) {
		out, err := handler.Build(BuildInput{
			Applications: []domain.Application{newApplication("A", jan2020, true, 100)},
			Performance:  monthlyHistory("A", jan2020, 1, 30, -1),
		})
		require.NoError(t, err)
		require.Len(t, out.Origination.Rows, 1)
		row := out.Origination.Rows[0]
		require.Equal(t, map[string]float64{"income": 100}, row.Numeric)
		require.Equal(t, jan2020, row.AsOf)
		require.Len(t, row.History, 30)
	})

	t.Run("monitoring windows require full forward history", func(t *testing.T) {
		out, err := handler.Build(BuildInput{
			Applications: []domain.Application{newApplication("A", jan2020, true, 100)},
			Performance:  monthlyHistory("A", jan2020, 1, 24, -1),
		})
		require.NoError(t, err)

		// snapshots at months 1-12 have 12 observed months ahead, 13-24 do not
		require.Len(t, out.Monitoring.Rows, 12)
		require.Equal(t, 12, out.Report.CensoredMonitoring)
		for i, r := range out.Monitoring.Rows {
			require.Equal(t, i+1, r.MonthsOnBook)
			require.Equal(t, float64(i+1), r.Numeric[MonthsOnBookFeature])
			require.Equal(t, float64(i+1), r.Numeric["days_past_due"])
			require.Equal(t, 0, r.Labels[domain.TargetDefaultNext12m])
		}
	})

	t.Run("snapshots stop once a loan defaults", func(t *testing.T) {
		out, err := handler.Build(BuildInput{
			Applications: []domain.Application{
				newApplication("A", jan2020, true, 100),
				newApplication("B", jan2020, true, 100),
			},
			Performance: concat(
				monthlyHistory("A", jan2020, 1, 30, -1),
				monthlyHistory("B", jan2020, 1, 30, 20),
			),
		})
		require.NoError(t, err)

		labels := map[int]int{}
		for _, r := range out.Monitoring.Rows {
			if r.ApplicationID == "B" {
				labels[r.MonthsOnBook] = r.Labels[domain.TargetDefaultNext12m]
			}
		}
		// month 19 is within 12 months of asOf and stays censored even
		// though its default is already visible
		require.Len(t, labels, 18)
		require.Equal(t, 0, labels[7])
		require.Equal(t, 1, labels[8])
		require.Equal(t, 1, labels[18])
		require.Equal(t, 1, out.Report.DefaultedSnapshots)
	})

	t.Run("macro is joined as of each row", func(t *testing.T) {
		out, err := handler.Build(BuildInput{
			Applications: []domain.Application{newApplication("A", jan2020, true, 100)},
			Performance:  monthlyHistory("A", jan2020, 1, 26, -1),
			Macro: []domain.MacroRecord{
				{Date: util.NewDate(2020, 2, 1), Values: map[string]float64{"unemployment_rate": 6}},
				{Date: util.NewDate(2020, 1, 1), Values: map[string]float64{"unemployment_rate": 5}},
				{Date: util.NewDate(2020, 6, 1), Values: map[string]float64{"unemployment_rate": 7}},
			},
		})
		require.NoError(t, err)

		require.Equal(t, float64(5), out.Origination.Rows[0].Numeric["unemployment_rate"])
		require.Equal(t, float64(6), out.Monitoring.Rows[0].Numeric["unemployment_rate"])
		require.Equal(t, float64(7), out.Monitoring.Rows[len(out.Monitoring.Rows)-1].Numeric["unemployment_rate"])

		for _, ds := range []domain.Dataset{out.Origination, out.Monitoring} {
			for _, r := range ds.Rows {
				for _, s := range r.Sources {
					require.False(t, s.At.After(r.AsOf), "row %s uses %s from %v", r.Key, s.Source, s.At)
				}
			}
		}
	})

	t.Run("observations after asOf are ignored", func(t *testing.T) {
		asOf := util.NewDate(2021, 3, 1)
		out, err := handler.Build(BuildInput{
			Applications: []domain.Application{newApplication("A", jan2020, true, 100)},
			Performance:  monthlyHistory("A", jan2020, 1, 30, 18),
			AsOf:         &asOf,
		})
		require.NoError(t, err)
		require.Equal(t, 0, out.Origination.Rows[0].Labels[domain.TargetDefault12m])
		require.Len(t, out.Origination.Rows[0].History, 13)
		// only month 1 has 12 observed months before asOf
		require.Len(t, out.Monitoring.Rows, 1)
	})

	t.Run("performance before origination fails the leakage guard", func(t *testing.T) {
		records := monthlyHistory("A", jan2020, 1, 24, -1)
		records = append(records, domain.PerformanceRecord{
			ApplicationID: "A",
			ObservedAt:    util.NewDate(2019, 12, 1),
		})
		_, err := handler.Build(BuildInput{
			Applications: []domain.Application{newApplication("A", jan2020, true, 100)},
			Performance:  records,
		})
		leak := domain.LeakageGuardError{}
		require.True(t, errors.As(err, &leak))
		require.Equal(t, "A", leak.RowKey)
	})

	t.Run("every row censored", func(t *testing.T) {
		_, err := handler.Build(BuildInput{
			Applications: []domain.Application{newApplication("A", jan2020, true, 100)},
			Performance:  monthlyHistory("A", jan2020, 1, 6, -1),
		})
		empty := domain.EmptyResultError{}
		require.True(t, errors.As(err, &empty))
		require.Equal(t, "origination dataset", empty.Stage)
	})

	t.Run("short histories leave monitoring empty", func(t *testing.T) {
		result, err := handler.Build(BuildInput{
			Applications: []domain.Application{
				newApplication("A", jan2020, true, 100),
				newApplication("B", jan2020, true, 100),
				newApplication("C", jan2020, true, 100),
			},
			Performance: concat(
				monthlyHistory("A", jan2020, 1, 12, -1),
				monthlyHistory("B", jan2020, 1, 12, -1),
				monthlyHistory("C", jan2020, 1, 12, -1),
			),
		})
		require.NoError(t, err)
		require.Len(t, result.Origination.Rows, 3)
		require.Empty(t, result.Monitoring.Rows)
		require.Equal(t, 36, result.Report.CensoredMonitoring)
	})

	t.Run("nil logger", func(t *testing.T) {
		_, err := NewDatasetService(nil).Build(BuildInput{
			Applications: []domain.Application{newApplication("A", jan2020, true, 100)},
			Performance:  monthlyHistory("A", jan2020, 1, 30, -1),
		})
		require.NoError(t, err)
	})

	t.Run("monitoring sample is seeded", func(t *testing.T) {
		in := BuildInput{
			Applications: []domain.Application{
				newApplication("A", jan2020, true, 100),
				newApplication("B", jan2020, true, 100),
			},
			Performance: concat(
				monthlyHistory("A", jan2020, 1, 30, -1),
				monthlyHistory("B", jan2020, 1, 30, -1),
			),
			MonitoringSampleSize: 5,
			Seed:                 3,
		}
		first, err := handler.Build(in)
		require.NoError(t, err)
		second, err := handler.Build(in)
		require.NoError(t, err)

		require.Len(t, first.Monitoring.Rows, 5)
		require.Equal(t, rowKeys(first.Monitoring.Rows), rowKeys(second.Monitoring.Rows))
		require.Equal(t, 31, first.Report.SampledOutMonitoring)
	})
}

func TestParseApplications(t *testing.T) {
	cols := testColumns()

	t.Run("types feature columns", func(t *testing.T) {
		apps, err := ParseApplications(domain.RawTable{
			Name:    "applications",
			Columns: []string{"application_id", "origination_date", "approved", "income", "purpose"},
			Rows: []map[string]string{
				{"application_id": "1", "origination_date": "2020-01-15", "approved": "1", "income": "100.5", "purpose": "car"},
				{"application_id": "2", "origination_date": "2020-02-15", "approved": "0", "income": "", "purpose": "home"},
			},
		}, cols, "")
		require.NoError(t, err)
		require.Len(t, apps, 2)
		require.Equal(t, map[string]float64{"income": 100.5}, apps[0].Numeric)
		require.Equal(t, map[string]string{"purpose": "car"}, apps[0].Categorical)
		require.True(t, apps[0].Approved)
		require.False(t, apps[1].Approved)
		require.Empty(t, apps[1].Numeric)
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := ParseApplications(domain.RawTable{
			Name:    "applications",
			Columns: []string{"application_id"},
		}, cols, "")
		schemaErr := domain.SchemaError{}
		require.True(t, errors.As(err, &schemaErr))
		require.Equal(t, "origination_date", schemaErr.Column)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := ParseApplications(domain.RawTable{
			Name:    "applications",
			Columns: []string{"application_id", "origination_date"},
			Rows:    []map[string]string{{"application_id": "1", "origination_date": "soon"}},
		}, cols, "")
		require.ErrorAs(t, err, &domain.SchemaError{})
	})
}

func TestParsePerformance(t *testing.T) {
	records, err := ParsePerformance(domain.RawTable{
		Name:    "performance",
		Columns: []string{"application_id", "observation_date", "default_flag", "balance"},
		Rows: []map[string]string{
			{"application_id": "1", "observation_date": "2020-02-01", "default_flag": "0", "balance": "900"},
			{"application_id": "1", "observation_date": "2020-03-01", "default_flag": "1", "balance": "950"},
		},
	}, testColumns(), "")
	require.NoError(t, err)
	require.False(t, records[0].Defaulted)
	require.True(t, records[1].Defaulted)
	require.Equal(t, float64(950), records[1].Numeric["balance"])

	_, err = ParsePerformance(domain.RawTable{
		Name:    "performance",
		Columns: []string{"application_id", "observation_date", "default_flag"},
		Rows:    []map[string]string{{"application_id": "1", "observation_date": "2020-02-01", "default_flag": "maybe"}},
	}, testColumns(), "")
	require.ErrorAs(t, err, &domain.SchemaError{})
}

func TestParseMacro(t *testing.T) {
	_, err := ParseMacro(domain.RawTable{
		Name:    "macro",
		Columns: []string{"date", "regime"},
		Rows:    []map[string]string{{"date": "2020-01-01", "regime": "boom"}},
	}, testColumns(), "")
	require.ErrorAs(t, err, &domain.SchemaError{})
}

func testColumns() config.Columns {
	return config.Columns{
		ApplicationID:   "application_id",
		OriginationDate: "origination_date",
		Approved:        "approved",
		ObservationDate: "observation_date",
		DefaultFlag:     "default_flag",
		MacroDate:       "date",
	}
}
