package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultKafkaGroupID      = "transitlens-default-group"
	defaultPositionsTopic    = "vehicle-positions"
	defaultObservationsTopic = "segment-observations"
	defaultWorkers           = 8
	defaultEvictInterval     = 30 * time.Second
	defaultMinSamples        = 1
	defaultKalmanMinSamples  = 3
	defaultInitialError      = 100.0
	defaultFilterEpsilon     = 0.1
	defaultBucketSeconds     = 30 * 60
	defaultTTLSeconds        = 60
	defaultLambda            = 0.75
	defaultBiasMode          = "none"
	defaultBiasBase          = 1.1
	defaultBiasSign          = 1
	defaultBiasRate          = 0.0006
	defaultMinTravelMillis   = 100
	defaultMaxTravelMillis   = 20 * 60 * 1000
	defaultMinDwellMillis    = 0
	defaultMaxDwellMillis    = 2 * 60 * 1000
	defaultAdherenceMillis   = 10 * 60 * 1000
	defaultMinHeadwayMillis  = 1000
	defaultMaxHeadwayMillis  = 60 * 60 * 1000
	defaultMetricsAddr       = ":9102"
	defaultLogLevel          = "info"
	defaultLogFormat         = "console"
	defaultLogFileEnabled    = false
	defaultLogDirectory      = "log"
	defaultLogFilename       = "app.log"
	defaultLogMaxSizeMB      = 100
	defaultLogMaxBackups     = 3
	defaultLogMaxAgeDays     = 7
	defaultLogCompress       = false

	// Environment variable prefix
	envPrefix = "TRANSITLENS"
)

type Config struct {
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Prediction PredictionConfig `mapstructure:"prediction"`
	Filter     FilterConfig     `mapstructure:"filter"`
	Log        LogConfig        `mapstructure:"log"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	PositionsTopic    string   `mapstructure:"positionsTopic"`
	ObservationsTopic string   `mapstructure:"observationsTopic"`
	// PredictionsTopic is optional; empty disables the prediction writer.
	PredictionsTopic string `mapstructure:"predictionsTopic"`
	GroupID          string `mapstructure:"groupID"`
}

type PipelineConfig struct {
	// Workers is the number of prediction workers; events for one vehicle
	// always land on the same worker so its updates stay ordered.
	Workers       int           `mapstructure:"workers"`
	EvictInterval time.Duration `mapstructure:"evictInterval"`
	MetricsAddr   string        `mapstructure:"metricsAddr"`
}

type PredictionConfig struct {
	MinSamples         int64   `mapstructure:"minSamples"`
	KalmanMinSamples   int64   `mapstructure:"kalmanMinSamples"`
	InitialFilterError float64 `mapstructure:"initialFilterError"`
	FilterEpsilon      float64 `mapstructure:"filterEpsilon"`
	BucketSizeSeconds  int     `mapstructure:"bucketSizeSeconds"`
	TTLSeconds         int     `mapstructure:"ttlSeconds"`
	RegressionLambda   float64 `mapstructure:"regressionLambda"`
	Bias               Bias    `mapstructure:"bias"`
}

type Bias struct {
	Mode string  `mapstructure:"mode"` // "none", "exponential" or "linear"
	Base float64 `mapstructure:"base"`
	Sign int     `mapstructure:"sign"`
	Rate float64 `mapstructure:"rate"`
}

type FilterConfig struct {
	MinTravelMillis  int64 `mapstructure:"minTravelMillis"`
	MaxTravelMillis  int64 `mapstructure:"maxTravelMillis"`
	MinDwellMillis   int64 `mapstructure:"minDwellMillis"`
	MaxDwellMillis   int64 `mapstructure:"maxDwellMillis"`
	AdherenceMillis  int64 `mapstructure:"adherenceMillis"`
	MinHeadwayMillis int64 `mapstructure:"minHeadwayMillis"`
	MaxHeadwayMillis int64 `mapstructure:"maxHeadwayMillis"`
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`    // Max size in MB
	MaxBackups         int    `mapstructure:"maxBackups"` // Max backup files
	MaxAge             int    `mapstructure:"maxAge"`     // Max days to retain
	Compress           bool   `mapstructure:"compress"`   // Compress rotated files?
}

// Load initializes viper, reads config, applies defaults, unmarshals, and
// validates. An empty configPath runs on defaults alone, so the engine
// starts with zero configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)

	// Defaults go in before the file so every knob has a value.
	setDefaults(v)

	if configPath != "" {
		if err := readConfigFile(v); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// configureViper sets up viper instance for file and environment variables.
func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults applies default configuration values using Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.positionsTopic", defaultPositionsTopic)
	v.SetDefault("kafka.observationsTopic", defaultObservationsTopic)
	v.SetDefault("kafka.predictionsTopic", "")
	v.SetDefault("kafka.groupID", defaultKafkaGroupID)

	v.SetDefault("pipeline.workers", defaultWorkers)
	v.SetDefault("pipeline.evictInterval", defaultEvictInterval)
	v.SetDefault("pipeline.metricsAddr", defaultMetricsAddr)

	v.SetDefault("prediction.minSamples", defaultMinSamples)
	v.SetDefault("prediction.kalmanMinSamples", defaultKalmanMinSamples)
	v.SetDefault("prediction.initialFilterError", defaultInitialError)
	v.SetDefault("prediction.filterEpsilon", defaultFilterEpsilon)
	v.SetDefault("prediction.bucketSizeSeconds", defaultBucketSeconds)
	v.SetDefault("prediction.ttlSeconds", defaultTTLSeconds)
	v.SetDefault("prediction.regressionLambda", defaultLambda)
	v.SetDefault("prediction.bias.mode", defaultBiasMode)
	v.SetDefault("prediction.bias.base", defaultBiasBase)
	v.SetDefault("prediction.bias.sign", defaultBiasSign)
	v.SetDefault("prediction.bias.rate", defaultBiasRate)

	v.SetDefault("filter.minTravelMillis", defaultMinTravelMillis)
	v.SetDefault("filter.maxTravelMillis", defaultMaxTravelMillis)
	v.SetDefault("filter.minDwellMillis", defaultMinDwellMillis)
	v.SetDefault("filter.maxDwellMillis", defaultMaxDwellMillis)
	v.SetDefault("filter.adherenceMillis", defaultAdherenceMillis)
	v.SetDefault("filter.minHeadwayMillis", defaultMinHeadwayMillis)
	v.SetDefault("filter.maxHeadwayMillis", defaultMaxHeadwayMillis)

	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", defaultLogFileEnabled)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", defaultLogCompress)
}

// readConfigFile attempts to read the configuration file specified in viper.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

// validateConfig fails fast on malformed values; nothing here is
// recoverable at request time.
func validateConfig(cfg *Config) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return ErrEmptyKafkaBrokers
	}
	if cfg.Kafka.PositionsTopic == "" {
		return ErrEmptyPositionsTopic
	}
	if cfg.Kafka.GroupID == "" {
		return ErrEmptyKafkaGroupID
	}
	if cfg.Pipeline.Workers <= 0 {
		return ErrInvalidWorkerCount
	}
	if cfg.Pipeline.EvictInterval <= 0 {
		return ErrInvalidEvictInterval
	}
	if cfg.Prediction.MinSamples < 1 {
		return ErrInvalidMinSamples
	}
	if cfg.Prediction.TTLSeconds <= 0 {
		return ErrInvalidTTL
	}
	if cfg.Prediction.BucketSizeSeconds <= 0 {
		return ErrInvalidBucketSize
	}
	if cfg.Prediction.FilterEpsilon <= 0 {
		return ErrInvalidEpsilon
	}
	if l := cfg.Prediction.RegressionLambda; l <= 0 || l > 1 {
		return ErrInvalidLambda
	}
	switch cfg.Prediction.Bias.Mode {
	case "none", "exponential", "linear":
	default:
		return ErrInvalidBiasMode
	}
	if s := cfg.Prediction.Bias.Sign; s != 1 && s != -1 {
		return ErrInvalidBiasSign
	}
	if cfg.Filter.MinTravelMillis > cfg.Filter.MaxTravelMillis ||
		cfg.Filter.MinDwellMillis > cfg.Filter.MaxDwellMillis ||
		cfg.Filter.MinHeadwayMillis > cfg.Filter.MaxHeadwayMillis {
		return ErrInvalidFilterBounds
	}
	return nil
}
