package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Weights    WeightsConfig    `yaml:"weights" mapstructure:"weights"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// PathwayDir is where the server reads and writes pathway documents.
	PathwayDir string `yaml:"pathway_dir" mapstructure:"pathway_dir"`
}

// HTTPConfig configures the shared outbound HTTP client.
type HTTPConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyMB   int    `yaml:"max_body_mb" mapstructure:"max_body_mb"`
}

// SourcesConfig holds one block per upstream database.
type SourcesConfig struct {
	SabioRK      SourceConfig `yaml:"sabiork" mapstructure:"sabiork"`
	BioModels    SourceConfig `yaml:"biomodels" mapstructure:"biomodels"`
	KEGG         SourceConfig `yaml:"kegg" mapstructure:"kegg"`
	WikiPathways SourceConfig `yaml:"wikipathways" mapstructure:"wikipathways"`
}

// SourceConfig tunes one adapter.
type SourceConfig struct {
	Enabled       bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Reliability   float64 `yaml:"reliability" mapstructure:"reliability"`
	MinIntervalMs int     `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MinInterval is the configured spacing between calls.
func (s SourceConfig) MinInterval() time.Duration {
	return time.Duration(s.MinIntervalMs) * time.Millisecond
}

// Timeout is the configured per-call limit.
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// WeightsConfig holds the scoring coefficients.
type WeightsConfig struct {
	Completeness float64 `yaml:"completeness" mapstructure:"completeness"`
	Reliability  float64 `yaml:"reliability" mapstructure:"reliability"`
	Consistency  float64 `yaml:"consistency" mapstructure:"consistency"`
	Validation   float64 `yaml:"validation" mapstructure:"validation"`
}

// Model converts to scoring weights.
func (w WeightsConfig) Model() model.Weights {
	return model.Weights{
		Completeness: w.Completeness,
		Reliability:  w.Reliability,
		Consistency:  w.Consistency,
		Validation:   w.Validation,
	}
}

// EnrichmentConfig holds request defaults.
type EnrichmentConfig struct {
	MinQuality        float64 `yaml:"min_quality" mapstructure:"min_quality"`
	AllowPartial      bool    `yaml:"allow_partial" mapstructure:"allow_partial"`
	CoverageThreshold float64 `yaml:"coverage_threshold" mapstructure:"coverage_threshold"`
	FetchTimeoutSecs  int     `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	// PolicyPath points at the per-category policy YAML. Optional.
	PolicyPath string `yaml:"policy_path" mapstructure:"policy_path"`
	Organism   string `yaml:"organism" mapstructure:"organism"`
}

// RetryConfig configures retries of transient source failures.
type RetryConfig struct {
	Attempts  int     `yaml:"attempts" mapstructure:"attempts"`
	InitialMs int     `yaml:"initial_ms" mapstructure:"initial_ms"`
	MaxMs     int     `yaml:"max_ms" mapstructure:"max_ms"`
	Factor    float64 `yaml:"factor" mapstructure:"factor"`
	Jitter    float64 `yaml:"jitter" mapstructure:"jitter"`
}

// CircuitConfig configures the per-host circuit breakers.
type CircuitConfig struct {
	Threshold    int `yaml:"threshold" mapstructure:"threshold"`
	CooldownSecs int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "enrich.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.pathway_dir", "pathways")
	v.SetDefault("http.user_agent", "pathway-enrich/1.0")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.max_body_mb", 64)
	for name, ms := range map[string]int{
		"sabiork":      1000,
		"biomodels":    200,
		"kegg":         334,
		"wikipathways": 200,
	} {
		v.SetDefault("sources."+name+".enabled", true)
		v.SetDefault("sources."+name+".min_interval_ms", ms)
		v.SetDefault("sources."+name+".timeout_secs", 30)
	}
	def := model.DefaultWeights()
	v.SetDefault("weights.completeness", def.Completeness)
	v.SetDefault("weights.reliability", def.Reliability)
	v.SetDefault("weights.consistency", def.Consistency)
	v.SetDefault("weights.validation", def.Validation)
	v.SetDefault("enrichment.min_quality", 0.0)
	v.SetDefault("enrichment.allow_partial", true)
	v.SetDefault("enrichment.coverage_threshold", 0.30)
	v.SetDefault("enrichment.fetch_timeout_secs", 120)
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.initial_ms", 500)
	v.SetDefault("retry.max_ms", 10000)
	v.SetDefault("retry.factor", 2.0)
	v.SetDefault("retry.jitter", 0.25)
	v.SetDefault("circuit.threshold", 5)
	v.SetDefault("circuit.cooldown_secs", 30)

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

// Validate checks the settings a command mode depends on. Modes are
// "enrich", "serve" and "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}
	checkEnrichment := func() {
		w := c.Weights
		if w.Completeness < 0 || w.Reliability < 0 || w.Consistency < 0 || w.Validation < 0 {
			errs = append(errs, "weights values must be >= 0")
		} else if err := w.Model().Validate(); err != nil {
			errs = append(errs, err.Error())
		}
		if c.Enrichment.MinQuality < 0 || c.Enrichment.MinQuality > 1 {
			errs = append(errs, "enrichment.min_quality must be between 0 and 1")
		}
		if c.Enrichment.CoverageThreshold <= 0 || c.Enrichment.CoverageThreshold > 1 {
			errs = append(errs, "enrichment.coverage_threshold must be in (0, 1]")
		}
		for name, s := range map[string]SourceConfig{
			"sabiork":      c.Sources.SabioRK,
			"biomodels":    c.Sources.BioModels,
			"kegg":         c.Sources.KEGG,
			"wikipathways": c.Sources.WikiPathways,
		} {
			if s.Reliability < 0 || s.Reliability > 1 {
				errs = append(errs, "sources."+name+".reliability must be between 0 and 1")
			}
		}
		if !c.Sources.SabioRK.Enabled && !c.Sources.BioModels.Enabled &&
			!c.Sources.KEGG.Enabled && !c.Sources.WikiPathways.Enabled {
			errs = append(errs, "at least one source must be enabled")
		}
	}

	switch mode {
	case "enrich":
		checkStore()
		checkEnrichment()
	case "serve":
		checkStore()
		checkEnrichment()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "store":
		checkStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
