package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "vehicle-positions", cfg.Kafka.PositionsTopic)
	assert.EqualValues(t, 1, cfg.Prediction.MinSamples)
	assert.Equal(t, 60, cfg.Prediction.TTLSeconds)
	assert.Equal(t, 1800, cfg.Prediction.BucketSizeSeconds)
	assert.Equal(t, 0.75, cfg.Prediction.RegressionLambda)
	assert.Equal(t, "none", cfg.Prediction.Bias.Mode)
	assert.EqualValues(t, 20*60*1000, cfg.Filter.MaxTravelMillis)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
kafka:
  brokers: ["broker-1:9092", "broker-2:9092"]
  positionsTopic: avl-matched
prediction:
  minSamples: 5
  bias:
    mode: exponential
    base: 1.2
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "avl-matched", cfg.Kafka.PositionsTopic)
	assert.EqualValues(t, 5, cfg.Prediction.MinSamples)
	assert.Equal(t, "exponential", cfg.Prediction.Bias.Mode)
	assert.Equal(t, 1.2, cfg.Prediction.Bias.Base)
	// Untouched knobs keep their defaults.
	assert.Equal(t, 60, cfg.Prediction.TTLSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrReadingConfigFile)
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cases := map[string]struct {
		mutate  func(*Config)
		wantErr error
	}{
		"no brokers":      {func(c *Config) { c.Kafka.Brokers = nil }, ErrEmptyKafkaBrokers},
		"no topic":        {func(c *Config) { c.Kafka.PositionsTopic = "" }, ErrEmptyPositionsTopic},
		"zero workers":    {func(c *Config) { c.Pipeline.Workers = 0 }, ErrInvalidWorkerCount},
		"zero ttl":        {func(c *Config) { c.Prediction.TTLSeconds = 0 }, ErrInvalidTTL},
		"negative bucket": {func(c *Config) { c.Prediction.BucketSizeSeconds = -1 }, ErrInvalidBucketSize},
		"lambda too big":  {func(c *Config) { c.Prediction.RegressionLambda = 1.5 }, ErrInvalidLambda},
		"bad bias mode":   {func(c *Config) { c.Prediction.Bias.Mode = "quadratic" }, ErrInvalidBiasMode},
		"bad bias sign":   {func(c *Config) { c.Prediction.Bias.Sign = 0 }, ErrInvalidBiasSign},
		"inverted bounds": {func(c *Config) { c.Filter.MinTravelMillis = 1e6; c.Filter.MaxTravelMillis = 10 }, ErrInvalidFilterBounds},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			assert.ErrorIs(t, validateConfig(cfg), tc.wantErr)
		})
	}
}
