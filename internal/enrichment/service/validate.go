package service

import (
	"fmt"

	"enrichd/internal/enrichment/models"
)

// Rule inspects the merged payloads and returns notices for suspicious
// cross-source combinations. Rules are soft: they annotate the result,
// never fail the run. New checks plug in via WithRules without touching
// the orchestrator.
type Rule func(data map[models.DataType]models.Payload) []models.ValidationNotice

// DefaultRules returns the built-in cross-source checks.
func DefaultRules() []Rule {
	return []Rule{
		RuleDrivingClaimsMismatch,
		RuleLowCreditNoRisk,
		RuleRiskTierContradiction,
	}
}

// RuleDrivingClaimsMismatch flags a heavy violation history paired with a
// spotless claims record; one of the sources is likely out of date.
func RuleDrivingClaimsMismatch(data map[models.DataType]models.Payload) []models.ValidationNotice {
	driving, ok := data[models.DataTypeDrivingRecord]
	if !ok {
		return nil
	}
	claims, ok := data[models.DataTypePriorClaims]
	if !ok {
		return nil
	}

	violations, okV := asNumber(driving["violations"])
	claimCount, okC := asNumber(claims["claim_count"])
	if okV && okC && violations >= 4 && claimCount == 0 {
		return []models.ValidationNotice{{
			Rule:    "driving_claims_mismatch",
			Message: fmt.Sprintf("%.0f driving violations but zero recorded claims", violations),
		}}
	}
	return nil
}

// RuleLowCreditNoRisk flags a very low credit score with no corroborating
// risk indicator from any other source.
func RuleLowCreditNoRisk(data map[models.DataType]models.Payload) []models.ValidationNotice {
	credit, ok := data[models.DataTypeCredit]
	if !ok {
		return nil
	}
	score, ok := asNumber(credit["credit_score"])
	if !ok || score >= 500 {
		return nil
	}

	others := 0
	for dt, payload := range data {
		switch dt {
		case models.DataTypeDrivingRecord:
			others++
			if !isZero(payload, "violations") || !isZero(payload, "accidents") {
				return nil
			}
		case models.DataTypePriorClaims:
			others++
			if !isZero(payload, "claim_count") {
				return nil
			}
		case models.DataTypeBackground:
			others++
			if !isZero(payload, "criminal_records") || !isZero(payload, "bankruptcies") {
				return nil
			}
		}
	}
	if others == 0 {
		return nil
	}
	return []models.ValidationNotice{{
		Rule:    "low_credit_no_risk",
		Message: fmt.Sprintf("credit score %.0f with zero risk indicators from every other source", score),
	}}
}

// RuleRiskTierContradiction flags sources whose risk tiers disagree by
// more than one step.
func RuleRiskTierContradiction(data map[models.DataType]models.Payload) []models.ValidationNotice {
	rank := map[string]int{"low": 0, "medium": 1, "high": 2}

	type tiered struct {
		dt   models.DataType
		rank int
	}
	var tiers []tiered
	for _, dt := range models.AllDataTypes() {
		payload, ok := data[dt]
		if !ok {
			continue
		}
		tier, ok := payload["risk_tier"].(string)
		if !ok {
			continue
		}
		if r, ok := rank[tier]; ok {
			tiers = append(tiers, tiered{dt: dt, rank: r})
		}
	}

	var notices []models.ValidationNotice
	for i := 0; i < len(tiers); i++ {
		for j := i + 1; j < len(tiers); j++ {
			diff := tiers[i].rank - tiers[j].rank
			if diff < 0 {
				diff = -diff
			}
			if diff > 1 {
				notices = append(notices, models.ValidationNotice{
					Rule:    "risk_tier_contradiction",
					Message: fmt.Sprintf("%s and %s risk tiers contradict", tiers[i].dt, tiers[j].dt),
				})
			}
		}
	}
	return notices
}

func asNumber(v any) (float64, bool) {
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

func isZero(payload models.Payload, key string) bool {
	v, ok := asNumber(payload[key])
	return ok && v == 0
}
