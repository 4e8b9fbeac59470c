package cmd

import (
	"context"
	"creditrisk/internal/app"
	"creditrisk/internal/config"
	"creditrisk/internal/domain"
	"creditrisk/internal/logger"
	"creditrisk/internal/repository"
	"fmt"

	"go.uber.org/zap"
)

// RunArgs are the file locations for one pipeline run
type RunArgs struct {
	ConfigPath       string
	ApplicationsPath string
	PerformancePath  string
	MacroPath        string
	OutDir           string
	MetricsFile      string
}

type Dependencies struct {
	Config          config.Config
	Logger          *zap.SugaredLogger
	TableRepository repository.TableRepository
	PipelineApp     app.PipelineApp
	ReportApp       app.ReportApp
}

func InitializeDependencies(configPath string) (*Dependencies, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return nil, err
	}

	lg := logger.New()
	return &Dependencies{
		Config:          cfg,
		Logger:          lg,
		TableRepository: repository.NewTableRepository(),
		PipelineApp:     app.NewPipelineApp(cfg, lg),
		ReportApp: app.NewReportApp(
			repository.NewResultsRepository(),
			repository.NewWorkbookRepository(),
			lg,
		),
	}, nil
}

func (d Dependencies) LoadInput(args RunArgs) (*app.PipelineInput, error) {
	applications, err := d.TableRepository.Load("applications", args.ApplicationsPath)
	if err != nil {
		return nil, err
	}
	performance, err := d.TableRepository.Load("performance", args.PerformancePath)
	if err != nil {
		return nil, err
	}
	in := &app.PipelineInput{
		Applications: *applications,
		Performance:  *performance,
	}
	if args.MacroPath != "" {
		macro, err := d.TableRepository.Load("macro", args.MacroPath)
		if err != nil {
			return nil, err
		}
		in.Macro = macro
	}
	return in, nil
}

// Run executes the whole pipeline and returns the results directory
func Run(ctx context.Context, args RunArgs) (string, error) {
	deps, err := InitializeDependencies(args.ConfigPath)
	if err != nil {
		return "", err
	}
	defer deps.Logger.Sync()

	in, err := deps.LoadInput(args)
	if err != nil {
		return "", err
	}

	profile, endProfile := domain.NewProfile()
	ctx = logger.WithLogger(ctx, deps.Logger)
	ctx = domain.WithProfile(ctx, profile)

	report, err := deps.PipelineApp.Run(ctx, *in)
	if err != nil {
		return "", fmt.Errorf("pipeline failed: %w", err)
	}
	endProfile()

	return deps.ReportApp.Save(*report, args.OutDir, args.MetricsFile)
}
