// Package config holds the enrichment pipeline's fixed policy knobs:
// per-type retention windows, per-kind default data types, and the
// resolution order for run configurations.
package config

import (
	"time"

	"enrichd/internal/enrichment/models"
)

// Retention windows are fixed policy, not computed. A cache entry written
// now is fresh until now + window for its data type.
var retentionWindows = map[models.DataType]time.Duration{
	models.DataTypeDrivingRecord: 7 * 24 * time.Hour,
	models.DataTypePriorClaims:   30 * 24 * time.Hour,
	models.DataTypeCredit:        30 * 24 * time.Hour,
	models.DataTypeBackground:    7 * 24 * time.Hour,
}

// RetentionWindow returns the freshness window for a data type.
func RetentionWindow(dt models.DataType) time.Duration {
	if w, ok := retentionWindows[dt]; ok {
		return w
	}
	// Unknown types get the shortest window rather than living forever.
	return 7 * 24 * time.Hour
}

// ProviderTimeout bounds each individual provider fetch. A slow provider
// must not hold up sibling fetches past this.
const ProviderTimeout = 10 * time.Second

// StaleConfidencePenalty is the multiplier applied to a cache entry's
// confidence when it is substituted past its freshness window by the
// use_cached fallback.
const StaleConfidencePenalty = 0.5

// Breaker thresholds for per-provider circuit breakers. Five consecutive
// failures short-circuit a provider; two successes restore it.
const (
	BreakerFailureThreshold = 5
	BreakerSuccessThreshold = 2
)

// DefaultDataTypes returns the data types pursued when the caller supplies
// none. Claims exclude driving records.
func DefaultDataTypes(kind models.EntityKind) []models.DataType {
	switch kind {
	case models.EntityKindClaim:
		return []models.DataType{models.DataTypePriorClaims, models.DataTypeCredit, models.DataTypeBackground}
	default:
		return models.AllDataTypes()
	}
}

// NormalizeDataTypes applies entity-kind rules to a requested list: unknown
// types are dropped, duplicates removed, order preserved, and claim-kind
// runs never request driving records even when the caller asks for them.
func NormalizeDataTypes(kind models.EntityKind, requested []models.DataType) []models.DataType {
	if len(requested) == 0 {
		return DefaultDataTypes(kind)
	}

	seen := make(map[models.DataType]bool, len(requested))
	out := make([]models.DataType, 0, len(requested))
	for _, dt := range requested {
		if !dt.IsValid() || seen[dt] {
			continue
		}
		if kind == models.EntityKindClaim && dt == models.DataTypeDrivingRecord {
			continue
		}
		seen[dt] = true
		out = append(out, dt)
	}
	if len(out) == 0 {
		return DefaultDataTypes(kind)
	}
	return out
}

// DefaultRunConfig is the built-in fallback when neither the caller nor a
// persisted config record supplies one.
func DefaultRunConfig(kind models.EntityKind) models.RunConfig {
	return models.RunConfig{
		DataTypes:        DefaultDataTypes(kind),
		FallbackBehavior: models.FallbackSkip,
		AutoEnrich:       false,
	}
}
