package config

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/ntl-cli/internal/metrics"
	"github.com/sells-group/ntl-cli/internal/model"
	"github.com/sells-group/ntl-cli/internal/raster"
)

// Empty-year policies.
const (
	EmptyYearAbort = "abort"
	EmptyYearKeep  = "keep"
)

// Config holds the full application configuration.
type Config struct {
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AnalysisConfig is the complete, immutable set of parameters for one
// comparison series. It is recorded with every run so results can be
// recomputed from it alone.
type AnalysisConfig struct {
	Threshold             float64                `yaml:"threshold" mapstructure:"threshold"`
	ThresholdPolicy       raster.ThresholdPolicy `yaml:"threshold_policy" mapstructure:"threshold_policy"`
	BaselineYear          int                    `yaml:"baseline_year" mapstructure:"baseline_year"`
	BaselineThreshold     float64                `yaml:"baseline_threshold" mapstructure:"baseline_threshold"`
	SensitivityThresholds []float64              `yaml:"sensitivity_thresholds" mapstructure:"sensitivity_thresholds"`
	PixelSizeM            float64                `yaml:"pixel_size_m" mapstructure:"pixel_size_m"`
	CRS                   string                 `yaml:"crs" mapstructure:"crs"`
	RingBoundariesM       []float64              `yaml:"ring_boundaries_m" mapstructure:"ring_boundaries_m"`
	SectorCount           int                    `yaml:"sector_count" mapstructure:"sector_count"`
	Center                CenterConfig           `yaml:"center" mapstructure:"center"`
	EmptyYearPolicy       string                 `yaml:"empty_year_policy" mapstructure:"empty_year_policy"`
	Cleaning              CleaningConfig         `yaml:"cleaning" mapstructure:"cleaning"`
}

// CenterConfig selects the reference center shared by every year of a series.
type CenterConfig struct {
	Mode model.CenterMode `yaml:"mode" mapstructure:"mode"`
	Row  float64          `yaml:"row" mapstructure:"row"`
	Col  float64          `yaml:"col" mapstructure:"col"`
}

// CleaningConfig configures optional mask cleanup before measuring.
type CleaningConfig struct {
	Open            bool `yaml:"open" mapstructure:"open"`
	MinClusterCells int  `yaml:"min_cluster_cells" mapstructure:"min_cluster_cells"`
}

// InputConfig describes where yearly rasters are read from.
type InputConfig struct {
	Dir     string  `yaml:"dir" mapstructure:"dir"`
	Sheet   string  `yaml:"sheet" mapstructure:"sheet"`
	Scale   float64 `yaml:"scale" mapstructure:"scale"`
	OriginX float64 `yaml:"origin_x" mapstructure:"origin_x"`
	OriginY float64 `yaml:"origin_y" mapstructure:"origin_y"`
}

// OutputConfig configures the report writers.
type OutputConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	Workbook   bool   `yaml:"workbook" mapstructure:"workbook"`
	Shapefiles bool   `yaml:"shapefiles" mapstructure:"shapefiles"`
	Language   string `yaml:"language" mapstructure:"language"`
}

// ValidationConfig configures the cross-sensor comparison.
type ValidationConfig struct {
	RefThreshold  float64 `yaml:"ref_threshold" mapstructure:"ref_threshold"`
	RefPixelSizeM float64 `yaml:"ref_pixel_size_m" mapstructure:"ref_pixel_size_m"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// RetryAttempts bounds attempts for run writes that hit a busy database.
	RetryAttempts int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// BatchConfig configures concurrent processing.
type BatchConfig struct {
	MaxConcurrentYears int `yaml:"max_concurrent_years" mapstructure:"max_concurrent_years"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("analysis.threshold", 3.0)
	v.SetDefault("analysis.threshold_policy.allow_negative", false)
	v.SetDefault("analysis.baseline_year", 0)
	v.SetDefault("analysis.baseline_threshold", 3.0)
	v.SetDefault("analysis.sensitivity_thresholds", metrics.DefaultSensitivityThresholds)
	v.SetDefault("analysis.pixel_size_m", 463.0)
	v.SetDefault("analysis.crs", "EPSG:32648")
	v.SetDefault("analysis.ring_boundaries_m", metrics.DefaultRingBoundaries)
	v.SetDefault("analysis.sector_count", metrics.DefaultSectorCount)
	v.SetDefault("analysis.center.mode", string(model.CenterModeBaselineCentroid))
	v.SetDefault("analysis.empty_year_policy", EmptyYearAbort)
	v.SetDefault("analysis.cleaning.open", false)
	v.SetDefault("analysis.cleaning.min_cluster_cells", 0)
	v.SetDefault("input.dir", "data")
	v.SetDefault("input.scale", 1.0)
	v.SetDefault("output.dir", "outputs")
	v.SetDefault("output.workbook", true)
	v.SetDefault("output.shapefiles", false)
	v.SetDefault("output.language", "en")
	v.SetDefault("validation.ref_threshold", 0.1)
	v.SetDefault("validation.ref_pixel_size_m", 30.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "ntl.db")
	v.SetDefault("store.retry_attempts", 3)
	v.SetDefault("batch.max_concurrent_years", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Analysis modes
// also validate the full AnalysisConfig.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "analyze", "sensitivity", "validate":
		if err := c.Analysis.Validate(); err != nil {
			return err
		}
		if c.Input.Scale <= 0 || !finite(c.Input.Scale) {
			problems = append(problems, "input.scale must be > 0")
		}
		if mode == "validate" && (c.Validation.RefPixelSizeM <= 0 || !finite(c.Validation.RefPixelSizeM)) {
			problems = append(problems, "validation.ref_pixel_size_m must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "runs":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "analyze" && (c.Batch.MaxConcurrentYears < 1 || c.Batch.MaxConcurrentYears > 64) {
		problems = append(problems, "batch.max_concurrent_years must be between 1 and 64")
	}
	if mode != "sensitivity" && mode != "validate" {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			problems = append(problems, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	if len(problems) > 0 {
		return eris.Wrap(raster.InvalidConfig("%s", strings.Join(problems, "; ")), "config: validate "+mode)
	}
	return nil
}

// Validate checks every parameter of a comparison series. All failures are
// InvalidConfigError.
func (a AnalysisConfig) Validate() error {
	if err := a.ThresholdPolicy.CheckThreshold(a.Threshold); err != nil {
		return eris.Wrap(err, "config: analysis threshold")
	}
	for _, t := range a.SensitivityThresholds {
		if err := a.ThresholdPolicy.CheckThreshold(t); err != nil {
			return eris.Wrap(err, "config: sensitivity threshold")
		}
	}
	if len(a.SensitivityThresholds) > 0 && !slices.Contains(a.SensitivityThresholds, a.BaselineThreshold) {
		return eris.Wrap(raster.InvalidConfig("baseline threshold %v is not among sensitivity thresholds %v",
			a.BaselineThreshold, a.SensitivityThresholds), "config: analysis")
	}
	if math.IsNaN(a.PixelSizeM) || math.IsInf(a.PixelSizeM, 0) || a.PixelSizeM <= 0 {
		return eris.Wrap(raster.InvalidConfig("pixel size must be positive, got %v", a.PixelSizeM), "config: analysis")
	}
	if err := metrics.CheckBoundaries(a.RingBoundariesM); err != nil {
		return eris.Wrap(err, "config: ring boundaries")
	}
	if err := metrics.CheckSectorCount(a.SectorCount); err != nil {
		return eris.Wrap(err, "config: sectors")
	}
	switch a.Center.Mode {
	case model.CenterModeBaselineCentroid:
	case model.CenterModeFixed:
		if !finite(a.Center.Row) || !finite(a.Center.Col) {
			return eris.Wrap(raster.InvalidConfig("fixed center must be finite"), "config: center")
		}
	default:
		return eris.Wrap(raster.InvalidConfig("unknown center mode %q", a.Center.Mode), "config: center")
	}
	switch a.EmptyYearPolicy {
	case EmptyYearAbort, EmptyYearKeep:
	default:
		return eris.Wrap(raster.InvalidConfig("unknown empty year policy %q", a.EmptyYearPolicy), "config: analysis")
	}
	if a.Cleaning.MinClusterCells < 0 {
		return eris.Wrap(raster.InvalidConfig("min_cluster_cells must be ≥ 0, got %d", a.Cleaning.MinClusterCells), "config: cleaning")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
