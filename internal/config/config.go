package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	PDF     PDFConfig     `yaml:"pdf" mapstructure:"pdf"`
	Match   MatchConfig   `yaml:"match" mapstructure:"match"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ExtractConfig configures per-file extraction.
type ExtractConfig struct {
	FileTimeoutSecs    int    `yaml:"file_timeout_secs" mapstructure:"file_timeout_secs"`
	MaxConcurrentFiles int    `yaml:"max_concurrent_files" mapstructure:"max_concurrent_files"`
	MaxFileSizeMB      int    `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb"`
	AliasFile          string `yaml:"alias_file" mapstructure:"alias_file"`
}

// FileTimeout returns the per-file extraction budget.
func (c ExtractConfig) FileTimeout() time.Duration {
	return time.Duration(c.FileTimeoutSecs) * time.Second
}

// MaxFileSize returns the upload size limit in bytes.
func (c ExtractConfig) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// PDFConfig configures PDF text extraction.
type PDFConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// MatchConfig tunes duplicate detection.
type MatchConfig struct {
	Threshold            float64 `yaml:"threshold" mapstructure:"threshold"`
	DimensionToleranceIn float64 `yaml:"dimension_tolerance_in" mapstructure:"dimension_tolerance_in"`
	TextWeight           float64 `yaml:"text_weight" mapstructure:"text_weight"`
	CategoryWeight       float64 `yaml:"category_weight" mapstructure:"category_weight"`
	DimensionWeight      float64 `yaml:"dimension_weight" mapstructure:"dimension_weight"`
}

// ExportConfig configures the export artifact.
type ExportConfig struct {
	Format               string `yaml:"format" mapstructure:"format"`
	SheetName            string `yaml:"sheet_name" mapstructure:"sheet_name"`
	InstructionDelimiter string `yaml:"instruction_delimiter" mapstructure:"instruction_delimiter"`
	ListDelimiter        string `yaml:"list_delimiter" mapstructure:"list_delimiter"`
}

// ServerConfig configures the HTTP upload boundary.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins   []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	UploadRatePerSec float64  `yaml:"upload_rate_per_sec" mapstructure:"upload_rate_per_sec"`
	UploadBurst      int      `yaml:"upload_burst" mapstructure:"upload_burst"`
	RunTTLMinutes    int      `yaml:"run_ttl_minutes" mapstructure:"run_ttl_minutes"`
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
	v.SetEnvPrefix("QUOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("extract.file_timeout_secs", 30)
	v.SetDefault("extract.max_concurrent_files", 4)
	v.SetDefault("extract.max_file_size_mb", 50)
	v.SetDefault("extract.alias_file", "")
	v.SetDefault("pdf.provider", "pdfcpu")
	v.SetDefault("pdf.pdftotext_path", "pdftotext")
	v.SetDefault("match.threshold", 0.85)
	v.SetDefault("match.dimension_tolerance_in", 1.0)
	v.SetDefault("match.text_weight", 0.5)
	v.SetDefault("match.category_weight", 0.2)
	v.SetDefault("match.dimension_weight", 0.3)
	v.SetDefault("export.format", "xlsx")
	v.SetDefault("export.sheet_name", "Items")
	v.SetDefault("export.instruction_delimiter", "\n")
	v.SetDefault("export.list_delimiter", "; ")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.upload_rate_per_sec", 2.0)
	v.SetDefault("server.upload_burst", 4)
	v.SetDefault("server.run_ttl_minutes", 60)

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Match.Threshold <= 0 || c.Match.Threshold > 1 {
		return eris.Errorf("config: match.threshold must be in (0,1], got %v", c.Match.Threshold)
	}
	if c.Match.DimensionToleranceIn < 0 {
		return eris.Errorf("config: match.dimension_tolerance_in must not be negative, got %v", c.Match.DimensionToleranceIn)
	}
	if c.Match.TextWeight+c.Match.CategoryWeight+c.Match.DimensionWeight <= 0 {
		return eris.New("config: match weights must not all be zero")
	}
	if c.Extract.FileTimeoutSecs <= 0 {
		return eris.Errorf("config: extract.file_timeout_secs must be positive, got %d", c.Extract.FileTimeoutSecs)
	}
	switch c.Export.Format {
	case "xlsx", "csv":
	default:
		return eris.Errorf("config: export.format must be xlsx or csv, got %q", c.Export.Format)
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
