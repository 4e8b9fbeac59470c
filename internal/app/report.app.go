package app

import (
	"creditrisk/internal/domain"
	"creditrisk/internal/metrics"
	"creditrisk/internal/repository"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

// ReportApp persists a finished run: csv tables and a workbook under
// <outDir>/<runID>, plus an optional prometheus textfile
type ReportApp interface {
	Save(report domain.Report, outDir, metricsFile string) (string, error)
}

type reportAppHandler struct {
	ResultsRepository  repository.ResultsRepository
	WorkbookRepository repository.WorkbookRepository
	Logger             *zap.SugaredLogger
}

func NewReportApp(
	resultsRepository repository.ResultsRepository,
	workbookRepository repository.WorkbookRepository,
	logger *zap.SugaredLogger,
) ReportApp {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return reportAppHandler{
		ResultsRepository:  resultsRepository,
		WorkbookRepository: workbookRepository,
		Logger:             logger,
	}
}

func (h reportAppHandler) Save(report domain.Report, outDir, metricsFile string) (string, error) {
	dir := filepath.Join(outDir, report.RunID)
	written, err := h.ResultsRepository.Write(dir, report)
	if err != nil {
		return "", fmt.Errorf("failed to write results: %w", err)
	}

	workbook := filepath.Join(dir, "results.xlsx")
	if err := h.WorkbookRepository.Write(workbook, report); err != nil {
		return "", fmt.Errorf("failed to write workbook: %w", err)
	}

	if metricsFile != "" {
		m := metrics.NewRunMetrics(report.RunID)
		m.Observe(report)
		if err := m.WriteTextfile(metricsFile); err != nil {
			return "", err
		}
	}

	h.Logger.Infow(
		"saved results",
		"dir", dir,
		"files", len(written)+1,
	)
	return dir, nil
}
