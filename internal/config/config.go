package config

import (
	"creditrisk/internal/domain"
	"creditrisk/internal/util"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "CREDITRISK"

// Columns maps the raw table contract onto column names
type Columns struct {
	ApplicationID   string `yaml:"applicationId" default:"application_id" validate:"required"`
	OriginationDate string `yaml:"originationDate" default:"origination_date" validate:"required"`
	// empty means every application is treated as approved
	Approved        string `yaml:"approved" default:"approved"`
	ObservationDate string `yaml:"observationDate" default:"observation_date" validate:"required"`
	DefaultFlag     string `yaml:"defaultFlag" default:"default_flag" validate:"required"`
	MacroDate       string `yaml:"macroDate" default:"date"`
}

type CohortComparison struct {
	A []string `yaml:"a"`
	B []string `yaml:"b"`
	// used when A and B are empty: earliest n cohorts vs latest n
	AutoSize int `yaml:"autoSize" default:"2" validate:"gte=2"`
}

type Config struct {
	Columns    Columns `yaml:"columns"`
	DateLayout string  `yaml:"dateLayout" default:"2006-01-02"`
	AsOf       string  `yaml:"asOf"`

	TestFraction         float64 `yaml:"testFraction" default:"0.3" validate:"gt=0,lt=1"`
	SplitMode            string  `yaml:"splitMode" default:"temporal" validate:"oneof=temporal random"`
	MonitoringSplitMode  string  `yaml:"monitoringSplitMode" default:"random" validate:"oneof=temporal random"`
	MonitoringSampleSize int     `yaml:"monitoringSampleSize" default:"100000" validate:"gte=0"`
	Seed                 int64   `yaml:"seed" default:"42"`
	Algorithm            string  `yaml:"algorithm" default:"gradient_boosting" validate:"oneof=logistic random_forest gradient_boosting"`
	TopFeatures          int     `yaml:"topFeatures" default:"15" validate:"gte=0"`

	ExcludeColumns []string `yaml:"excludeColumns"`

	NBands int `yaml:"nBands" default:"10" validate:"gte=1"`

	CohortGranularity string           `yaml:"cohortGranularity" default:"quarter" validate:"oneof=month quarter"`
	CompareCohorts    CohortComparison `yaml:"compareCohorts"`

	Scenarios       []domain.Scenario `yaml:"scenarios" validate:"dive"`
	ExposureFeature string            `yaml:"exposureFeature"`
	LGD             float64           `yaml:"lgd" default:"0.45" validate:"gte=0,lte=1"`
	PDThreshold     float64           `yaml:"pdThreshold" default:"0.2" validate:"gt=0,lt=1"`

	CaseCount int `yaml:"caseCount" default:"5" validate:"gte=1"`
}

// fillDerived runs after the file is read, so it sees what the file set
func (c *Config) fillDerived() {
	if len(c.Scenarios) == 0 {
		c.Scenarios = DefaultScenarios()
	}
	for i := range c.Scenarios {
		for j := range c.Scenarios[i].Adjustments {
			if c.Scenarios[i].Adjustments[j].Kind == "" {
				c.Scenarios[i].Adjustments[j].Kind = domain.AdjustmentAdditive
			}
		}
	}
}

// DefaultScenarios are output overlays, so they apply to any feature set
func DefaultScenarios() []domain.Scenario {
	return []domain.Scenario{
		{Name: domain.BaselineScenario},
		{Name: "adverse", PDMultiplier: 1.25},
		{Name: "severe", PDMultiplier: 1.6},
	}
}

func (c Config) AsOfTime() (*time.Time, error) {
	if c.AsOf == "" {
		return nil, nil
	}
	t, err := util.ParseDate(c.AsOf, c.DateLayout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse asOf: %w", err)
	}
	return &t, nil
}

func (c Config) Granularity() domain.Granularity {
	return domain.Granularity(c.CohortGranularity)
}

// envOverrides are applied on top of the file. pointers stay nil when
// the variable is unset
type envOverrides struct {
	Algorithm    *string  `envconfig:"ALGORITHM"`
	SplitMode    *string  `envconfig:"SPLIT_MODE"`
	Seed         *int64   `envconfig:"SEED"`
	TestFraction *float64 `envconfig:"TEST_FRACTION"`
	NBands       *int     `envconfig:"N_BANDS"`
	AsOf         *string  `envconfig:"AS_OF"`
}

// Default returns the configuration used when no file is given
func Default() (Config, error) {
	c, err := withTagDefaults()
	if err != nil {
		return Config{}, err
	}
	return finalize(c)
}

// Load reads a YAML file, fills defaults, applies CREDITRISK_* env
// overrides and validates the result
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(b)
}

// Parse fills tag defaults first and decodes the file over them, so an
// explicit zero in the file is kept
func Parse(b []byte) (Config, error) {
	c, err := withTagDefaults()
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return finalize(c)
}

func withTagDefaults() (Config, error) {
	c := Config{}
	if err := defaults.Set(&c); err != nil {
		return Config{}, fmt.Errorf("failed to set config defaults: %w", err)
	}
	return c, nil
}

func finalize(c Config) (Config, error) {
	c.fillDerived()

	env := envOverrides{}
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return Config{}, fmt.Errorf("failed to read env overrides: %w", err)
	}
	if env.Algorithm != nil {
		c.Algorithm = *env.Algorithm
	}
	if env.SplitMode != nil {
		c.SplitMode = *env.SplitMode
	}
	if env.Seed != nil {
		c.Seed = *env.Seed
	}
	if env.TestFraction != nil {
		c.TestFraction = *env.TestFraction
	}
	if env.NBands != nil {
		c.NBands = *env.NBands
	}
	if env.AsOf != nil {
		c.AsOf = *env.AsOf
	}

	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate config: %w", err)
	}
	return c, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if _, err := c.AsOfTime(); err != nil {
		return err
	}

	names := map[string]bool{}
	for _, s := range c.Scenarios {
		if names[s.Name] {
			return fmt.Errorf("duplicate scenario %q", s.Name)
		}
		names[s.Name] = true
		if s.Name == domain.BaselineScenario && !s.IsIdentity() {
			return fmt.Errorf("baseline scenario cannot carry adjustments")
		}
	}

	a, b := c.CompareCohorts.A, c.CompareCohorts.B
	if (len(a) == 0) != (len(b) == 0) {
		return fmt.Errorf("compareCohorts needs both a and b, or neither")
	}
	return nil
}
