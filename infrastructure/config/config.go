// Package config loads the engine's single application Config struct
// from environment variables, following the teacher's config.go pattern
// (env-first, sane defaults, no other tunables recognized). This is the
// application-level counterpart to domain/config.DomainConfig: it holds
// retrieval/storage tuning rather than business-rule bounds.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// fileOverlay mirrors the subset of Config an operator may override via
// YAML file, expressed in the same units as the documented environment
// variables (seconds/ms, not time.Duration) so the file format matches
// the env-var contract in spec §6.
type fileOverlay struct {
	DedupWindowSeconds       *int     `yaml:"dedup_window_seconds"`
	SalienceWeightsVersion   *string  `yaml:"salience_weights_version"`
	HotThresholdPerHour      *int     `yaml:"hot_threshold_per_hour"`
	HotTTLSeconds            *int     `yaml:"hot_ttl_seconds"`
	WarmTTLSeconds           *int     `yaml:"warm_ttl_seconds"`
	ColdTTLSeconds           *int     `yaml:"cold_ttl_seconds"`
	HotCacheCapacity         *int     `yaml:"hot_cache_capacity"`
	GateThreshold            *float64 `yaml:"gate_threshold"`
	GateMin                  *float64 `yaml:"gate_min"`
	PatternMinConfidence     *float64 `yaml:"pattern_min_confidence"`
	PatternWindowInitialDays *int     `yaml:"pattern_window_initial_days"`
	PatternWindowStableDays  *int     `yaml:"pattern_window_stable_days"`
	RetrievalOverfetchFactor *int     `yaml:"retrieval_overfetch_factor"`
	LoopGraceDays            *int     `yaml:"loop_grace_days"`
	FeatureTimeoutMS         *int     `yaml:"feature_timeout_ms"`
	VectorTimeoutMS          *int     `yaml:"vector_timeout_ms"`
	LLMTimeoutMS             *int     `yaml:"llm_timeout_ms"`
	LanguageBackend          *string  `yaml:"language_backend"`
	NotificationCooldownSecs *int     `yaml:"notification_cooldown_seconds"`
}

// LoadWithFileOverlay loads the env-derived Config and then applies any
// fields present in the optional YAML file at path, which take
// precedence over environment variables. Used when an operator supplies
// a config file instead of (or layered atop) env vars.
func LoadWithFileOverlay(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	var overlay fileOverlay
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return nil, err
	}
	applyOverlay(cfg, overlay)
	return cfg, nil
}

func applyOverlay(cfg *Config, o fileOverlay) {
	if o.DedupWindowSeconds != nil {
		cfg.DedupWindow = time.Duration(*o.DedupWindowSeconds) * time.Second
	}
	if o.SalienceWeightsVersion != nil {
		cfg.SalienceWeightsVersion = *o.SalienceWeightsVersion
	}
	if o.HotThresholdPerHour != nil {
		cfg.HotThresholdPerHour = *o.HotThresholdPerHour
	}
	if o.HotTTLSeconds != nil {
		cfg.HotTTL = time.Duration(*o.HotTTLSeconds) * time.Second
	}
	if o.WarmTTLSeconds != nil {
		cfg.WarmTTL = time.Duration(*o.WarmTTLSeconds) * time.Second
	}
	if o.ColdTTLSeconds != nil {
		cfg.ColdTTL = time.Duration(*o.ColdTTLSeconds) * time.Second
	}
	if o.HotCacheCapacity != nil {
		cfg.HotCacheCapacity = *o.HotCacheCapacity
	}
	if o.GateThreshold != nil {
		cfg.GateThreshold = *o.GateThreshold
	}
	if o.GateMin != nil {
		cfg.GateMin = *o.GateMin
	}
	if o.PatternMinConfidence != nil {
		cfg.PatternMinConfidence = *o.PatternMinConfidence
	}
	if o.PatternWindowInitialDays != nil {
		cfg.PatternWindowInitialDays = *o.PatternWindowInitialDays
	}
	if o.PatternWindowStableDays != nil {
		cfg.PatternWindowStableDays = *o.PatternWindowStableDays
	}
	if o.RetrievalOverfetchFactor != nil {
		cfg.RetrievalOverfetchFactor = *o.RetrievalOverfetchFactor
	}
	if o.LoopGraceDays != nil {
		cfg.LoopGraceDays = *o.LoopGraceDays
	}
	if o.FeatureTimeoutMS != nil {
		cfg.FeatureTimeout = time.Duration(*o.FeatureTimeoutMS) * time.Millisecond
	}
	if o.VectorTimeoutMS != nil {
		cfg.VectorTimeout = time.Duration(*o.VectorTimeoutMS) * time.Millisecond
	}
	if o.LLMTimeoutMS != nil {
		cfg.LLMTimeout = time.Duration(*o.LLMTimeoutMS) * time.Millisecond
	}
	if o.LanguageBackend != nil {
		cfg.LanguageBackend = LanguageBackendMode(*o.LanguageBackend)
	}
	if o.NotificationCooldownSecs != nil {
		cfg.NotificationCooldown = time.Duration(*o.NotificationCooldownSecs) * time.Second
	}
}

// LanguageBackendMode selects how the feature extractor resolves text
// (spec §6).
type LanguageBackendMode string

const (
	BackendPrimary     LanguageBackendMode = "primary"
	BackendSecondary   LanguageBackendMode = "secondary"
	BackendLexicalOnly LanguageBackendMode = "lexical_only"
)

// Config is the single recognized set of tunables (spec §6: "No other
// tunables are recognized").
type Config struct {
	DedupWindow time.Duration

	SalienceWeightsVersion string

	HotThresholdPerHour int
	HotTTL               time.Duration
	WarmTTL              time.Duration
	ColdTTL              time.Duration
	// HotCacheCapacity bounds the hot tier's resident item count (spec
	// §8 "Hot cache at capacity evicts by LRU-within-hot before
	// promoting").
	HotCacheCapacity int

	GateThreshold float64
	GateMin       float64

	PatternMinConfidence     float64
	PatternWindowInitialDays int
	PatternWindowStableDays  int

	RetrievalOverfetchFactor int

	LoopGraceDays int

	FeatureTimeout time.Duration
	VectorTimeout  time.Duration
	LLMTimeout     time.Duration

	LanguageBackend LanguageBackendMode

	NotificationCooldown time.Duration
}

// Default returns the engine's documented defaults (spec §6).
func Default() *Config {
	return &Config{
		DedupWindow:              60 * time.Second,
		SalienceWeightsVersion:   "v1",
		HotThresholdPerHour:      10,
		HotTTL:                   3600 * time.Second,
		WarmTTL:                  604800 * time.Second,
		ColdTTL:                  31_536_000 * time.Second,
		HotCacheCapacity:         10_000,
		GateThreshold:            0.5,
		GateMin:                  0.3,
		PatternMinConfidence:     0.3,
		PatternWindowInitialDays: 21,
		PatternWindowStableDays:  66,
		RetrievalOverfetchFactor: 5,
		LoopGraceDays:            7,
		FeatureTimeout:           5000 * time.Millisecond,
		VectorTimeout:            2000 * time.Millisecond,
		LLMTimeout:               10_000 * time.Millisecond,
		LanguageBackend:          BackendPrimary,
		NotificationCooldown:     14_400 * time.Second,
	}
}

// Load builds a Config from the documented environment variables,
// falling back to Default() for anything unset.
func Load() (*Config, error) {
	cfg := Default()

	if v, ok := os.LookupEnv("DEDUP_WINDOW_SECONDS"); ok {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.DedupWindow = time.Duration(secs) * time.Second
	}
	if v, ok := os.LookupEnv("SALIENCE_WEIGHTS_VERSION"); ok {
		cfg.SalienceWeightsVersion = v
	}
	if v, ok := os.LookupEnv("HOT_THRESHOLD_PER_HOUR"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.HotThresholdPerHour = n
	}
	if v, ok := os.LookupEnv("HOT_TTL_SECONDS"); ok {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.HotTTL = time.Duration(secs) * time.Second
	}
	if v, ok := os.LookupEnv("WARM_TTL_SECONDS"); ok {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.WarmTTL = time.Duration(secs) * time.Second
	}
	if v, ok := os.LookupEnv("COLD_TTL_SECONDS"); ok {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.ColdTTL = time.Duration(secs) * time.Second
	}
	if v, ok := os.LookupEnv("HOT_CACHE_CAPACITY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.HotCacheCapacity = n
	}
	if v, ok := os.LookupEnv("GATE_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, err
		}
		cfg.GateThreshold = f
	}
	if v, ok := os.LookupEnv("GATE_MIN"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, err
		}
		cfg.GateMin = f
	}
	if v, ok := os.LookupEnv("PATTERN_MIN_CONFIDENCE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, err
		}
		cfg.PatternMinConfidence = f
	}
	if v, ok := os.LookupEnv("PATTERN_WINDOW_INITIAL_DAYS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.PatternWindowInitialDays = n
	}
	if v, ok := os.LookupEnv("PATTERN_WINDOW_STABLE_DAYS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.PatternWindowStableDays = n
	}
	if v, ok := os.LookupEnv("RETRIEVAL_OVERFETCH_FACTOR"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.RetrievalOverfetchFactor = n
	}
	if v, ok := os.LookupEnv("LOOP_GRACE_DAYS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.LoopGraceDays = n
	}
	if v, ok := os.LookupEnv("FEATURE_TIMEOUT_MS"); ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.FeatureTimeout = time.Duration(ms) * time.Millisecond
	}
	if v, ok := os.LookupEnv("VECTOR_TIMEOUT_MS"); ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.VectorTimeout = time.Duration(ms) * time.Millisecond
	}
	if v, ok := os.LookupEnv("LLM_TIMEOUT_MS"); ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.LLMTimeout = time.Duration(ms) * time.Millisecond
	}
	if v, ok := os.LookupEnv("LANGUAGE_BACKEND"); ok {
		cfg.LanguageBackend = LanguageBackendMode(v)
	}
	if v, ok := os.LookupEnv("NOTIFICATION_COOLDOWN_SECONDS"); ok {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		cfg.NotificationCooldown = time.Duration(secs) * time.Second
	}

	return cfg, nil
}
