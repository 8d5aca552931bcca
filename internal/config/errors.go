package config

import "errors"

var (
	ErrReadingConfigFile    = errors.New("failed to read config file")
	ErrUnmarshallingConfig  = errors.New("failed to unmarshal config")
	ErrEmptyKafkaBrokers    = errors.New("kafka brokers list cannot be empty")
	ErrEmptyPositionsTopic  = errors.New("kafka positionsTopic cannot be empty")
	ErrEmptyKafkaGroupID    = errors.New("kafka groupID cannot be empty")
	ErrInvalidWorkerCount   = errors.New("pipeline workers must be positive")
	ErrInvalidEvictInterval = errors.New("pipeline evictInterval must be positive")
	ErrInvalidMinSamples    = errors.New("prediction minSamples must be at least 1")
	ErrInvalidTTL           = errors.New("prediction ttlSeconds must be positive")
	ErrInvalidBucketSize    = errors.New("prediction bucketSizeSeconds must be positive")
	ErrInvalidEpsilon       = errors.New("prediction filterEpsilon must be positive")
	ErrInvalidLambda        = errors.New("regression lambda must be in (0, 1]")
	ErrInvalidBiasMode      = errors.New(`bias mode must be "none", "exponential" or "linear"`)
	ErrInvalidBiasSign      = errors.New("bias sign must be +1 or -1")
	ErrInvalidFilterBounds  = errors.New("sample filter bounds must satisfy min <= max")
)
