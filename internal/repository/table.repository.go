package repository

import (
	"creditrisk/internal/domain"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
)

// TableRepository loads raw CSV input tables as rows of named string
// columns. typing happens later in the dataset builder
type TableRepository interface {
	Load(name, path string) (*domain.RawTable, error)
	Read(name string, r io.Reader) (*domain.RawTable, error)
}

type tableRepositoryHandler struct{}

func NewTableRepository() TableRepository {
	return tableRepositoryHandler{}
}

func (h tableRepositoryHandler) Load(name, path string) (*domain.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s table: %w", name, err)
	}
	defer f.Close()

	return h.Read(name, f)
}

func (h tableRepositoryHandler) Read(name string, r io.Reader) (*domain.RawTable, error) {
	rows, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s table: %w", name, err)
	}

	seen := map[string]struct{}{}
	for i, row := range rows {
		trimmed := make(map[string]string, len(row))
		for k, v := range row {
			k = strings.TrimSpace(strings.TrimPrefix(k, "\ufeff"))
			trimmed[k] = strings.TrimSpace(v)
			seen[k] = struct{}{}
		}
		rows[i] = trimmed
	}

	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	return &domain.RawTable{
		Name:    name,
		Columns: columns,
		Rows:    rows,
	}, nil
}
