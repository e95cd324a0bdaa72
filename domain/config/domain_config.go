// Package config holds business-rule constants consumed directly by the
// domain layer (entities, aggregates) — as distinct from the
// environment-loaded application Config in infrastructure/config, which
// supplies these values at composition time. Mirrors the teacher's
// domain/config.DomainConfig (backend/domain/core/entities/node.go uses
// cfg.MaxConnectionsPerNode, cfg.AllowSelfConnections, etc).
package config

// DomainConfig bounds the business rules entities enforce on themselves,
// independent of storage or retrieval tuning (which lives in the
// application-level Config).
type DomainConfig struct {
	MaxTextLength        int
	MaxTagsPerMemory     int
	MaxEntitiesPerMemory int
	MaxSensitivities     int
	// RelationshipEMAAlpha is the exponential-moving-average smoothing
	// factor for folding a new interaction's valence into the rolling
	// mean (spec §4.4, default 0.1).
	RelationshipEMAAlpha float64
	// TrendWindow is how many recent interactions the relationship
	// updater considers when recomputing sentiment trend (spec §4.4).
	TrendWindow int
	// CareCirclePressureStreak is how many consecutive declining-trend
	// updates raise a CareCirclePressure event (spec §9 supplement).
	CareCirclePressureStreak int
}

// DefaultDomainConfig returns the engine's default business-rule bounds.
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxTextLength:            10000,
		MaxTagsPerMemory:         20,
		MaxEntitiesPerMemory:     20,
		MaxSensitivities:         20,
		RelationshipEMAAlpha:     0.1,
		TrendWindow:              5,
		CareCirclePressureStreak: 3,
	}
}
