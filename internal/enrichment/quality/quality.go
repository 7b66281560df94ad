// Package quality computes the composite data-quality score for a merged
// enrichment result. Scoring is pure: it reads the merged payloads and the
// age of each slice of data, and touches no stores.
package quality

import (
	"time"

	"enrichd/internal/enrichment/config"
	"enrichd/internal/enrichment/models"
)

// Input carries everything the scorer needs. Ages hold how old each
// obtained payload is (zero for a fresh fetch, cache age for a hit).
type Input struct {
	Data map[models.DataType]models.Payload
	Ages map[models.DataType]time.Duration
}

// Fields the scorer expects per data type. Completeness counts how many of
// these are present and non-nil; missing keys lower the score but are
// never an error.
var expectedFields = map[models.DataType][]string{
	models.DataTypeDrivingRecord: {"license_status", "violations", "accidents", "risk_tier", "reported_at"},
	models.DataTypePriorClaims:   {"claim_count", "open_claims", "total_paid", "risk_tier", "reported_at"},
	models.DataTypeCredit:        {"credit_score", "delinquencies", "risk_tier", "reported_at"},
	models.DataTypeBackground:    {"criminal_records", "bankruptcies", "risk_tier", "reported_at"},
}

var tierRank = map[string]int{"low": 0, "medium": 1, "high": 2}

const (
	accuracyBaseline       = 0.95
	tierContradictionCost  = 0.20
	lowCreditInconsistency = 0.30
	claimShapeCost         = 0.20
)

// Score returns the 0-100 composite for a merged result: the mean of four
// [0,1] sub-scores (completeness, accuracy, freshness, consistency),
// scaled and clamped. Only data actually obtained participates.
func Score(in Input) float64 {
	if len(in.Data) == 0 {
		return 0
	}
	sum := completeness(in.Data) + accuracy(in.Data) + freshness(in) + consistency(in.Data)
	return clamp(100 * sum / 4)
}

// FromCachedConfidence scores a run satisfied entirely from cache: the
// mean of the stored per-entry confidences, scaled to 0-100.
func FromCachedConfidence(confidences []float64) float64 {
	if len(confidences) == 0 {
		return 0
	}
	var sum float64
	for _, c := range confidences {
		sum += clamp01(c)
	}
	return clamp(100 * sum / float64(len(confidences)))
}

// completeness is the fraction of expected fields, across all obtained
// data types, that are present and non-nil.
func completeness(data map[models.DataType]models.Payload) float64 {
	var expected, present int
	for dt, payload := range data {
		fields, ok := expectedFields[dt]
		if !ok {
			continue
		}
		expected += len(fields)
		for _, f := range fields {
			if v, ok := payload[f]; ok && v != nil {
				present++
			}
		}
	}
	if expected == 0 {
		return 1
	}
	return float64(present) / float64(expected)
}

// accuracy starts at a high baseline and is penalized for each pair of
// sources whose risk tiers contradict by more than one step.
func accuracy(data map[models.DataType]models.Payload) float64 {
	ranks := make([]int, 0, len(data))
	for _, payload := range data {
		tier, ok := payload["risk_tier"].(string)
		if !ok {
			continue
		}
		if r, ok := tierRank[tier]; ok {
			ranks = append(ranks, r)
		}
	}

	score := accuracyBaseline
	for i := 0; i < len(ranks); i++ {
		for j := i + 1; j < len(ranks); j++ {
			if abs(ranks[i]-ranks[j]) > 1 {
				score -= tierContradictionCost
			}
		}
	}
	return clamp01(score)
}

// freshness penalizes each obtained payload by its age relative to the
// data type's retention window.
func freshness(in Input) float64 {
	if len(in.Data) == 0 {
		return 1
	}
	var sum float64
	for dt := range in.Data {
		ratio := float64(in.Ages[dt]) / float64(config.RetentionWindow(dt))
		sum += 1 - clamp01(ratio)
	}
	return sum / float64(len(in.Data))
}

// consistency penalizes internally implausible combinations: a very low
// credit score alongside zero risk indicators everywhere else, or a claim
// history whose open count exceeds its total.
func consistency(data map[models.DataType]models.Payload) float64 {
	score := 1.0

	if credit, ok := data[models.DataTypeCredit]; ok {
		if cs, ok := number(credit["credit_score"]); ok && cs < 500 && noRiskOutsideCredit(data) {
			score -= lowCreditInconsistency
		}
	}

	if claims, ok := data[models.DataTypePriorClaims]; ok {
		total, okTotal := number(claims["claim_count"])
		open, okOpen := number(claims["open_claims"])
		if okTotal && okOpen && open > total {
			score -= claimShapeCost
		}
	}

	return clamp01(score)
}

// noRiskOutsideCredit reports whether every non-credit source present
// shows zero risk indicators.
func noRiskOutsideCredit(data map[models.DataType]models.Payload) bool {
	sawOther := false
	for dt, payload := range data {
		switch dt {
		case models.DataTypeDrivingRecord:
			sawOther = true
			if !zero(payload, "violations") || !zero(payload, "accidents") {
				return false
			}
		case models.DataTypePriorClaims:
			sawOther = true
			if !zero(payload, "claim_count") {
				return false
			}
		case models.DataTypeBackground:
			sawOther = true
			if !zero(payload, "criminal_records") || !zero(payload, "bankruptcies") {
				return false
			}
		}
	}
	return sawOther
}

func zero(payload models.Payload, key string) bool {
	v, ok := number(payload[key])
	return ok && v == 0
}

// number converts the numeric shapes payloads arrive in (native ints from
// simulated providers, float64 from JSON decoding).
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
