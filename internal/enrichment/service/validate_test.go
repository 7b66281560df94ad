package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"enrichd/internal/enrichment/models"
)

// =============================================================================
// Cross-Source Validation Rule Tests
// =============================================================================
// Justification for unit tests: rules are pure functions over merged
// payloads; table-style cases here are cheaper and clearer than driving
// each combination through the orchestrator.

func TestRuleDrivingClaimsMismatch(t *testing.T) {
	t.Run("flags heavy violations with zero claims", func(t *testing.T) {
		notices := RuleDrivingClaimsMismatch(map[models.DataType]models.Payload{
			models.DataTypeDrivingRecord: {"violations": 5},
			models.DataTypePriorClaims:   {"claim_count": 0},
		})
		assert.Len(t, notices, 1)
		assert.Equal(t, "driving_claims_mismatch", notices[0].Rule)
	})

	t.Run("quiet when either source is missing", func(t *testing.T) {
		assert.Empty(t, RuleDrivingClaimsMismatch(map[models.DataType]models.Payload{
			models.DataTypeDrivingRecord: {"violations": 5},
		}))
	})

	t.Run("quiet below the violation threshold", func(t *testing.T) {
		assert.Empty(t, RuleDrivingClaimsMismatch(map[models.DataType]models.Payload{
			models.DataTypeDrivingRecord: {"violations": 3},
			models.DataTypePriorClaims:   {"claim_count": 0},
		}))
	})
}

func TestRuleLowCreditNoRisk(t *testing.T) {
	t.Run("flags low credit with clean record everywhere else", func(t *testing.T) {
		notices := RuleLowCreditNoRisk(map[models.DataType]models.Payload{
			models.DataTypeCredit:        {"credit_score": 420},
			models.DataTypeDrivingRecord: {"violations": 0, "accidents": 0},
			models.DataTypeBackground:    {"criminal_records": 0, "bankruptcies": 0},
		})
		assert.Len(t, notices, 1)
		assert.Equal(t, "low_credit_no_risk", notices[0].Rule)
	})

	t.Run("quiet when another source corroborates risk", func(t *testing.T) {
		assert.Empty(t, RuleLowCreditNoRisk(map[models.DataType]models.Payload{
			models.DataTypeCredit:        {"credit_score": 420},
			models.DataTypeDrivingRecord: {"violations": 2, "accidents": 0},
		}))
	})

	t.Run("quiet when credit is the only source", func(t *testing.T) {
		assert.Empty(t, RuleLowCreditNoRisk(map[models.DataType]models.Payload{
			models.DataTypeCredit: {"credit_score": 420},
		}))
	})

	t.Run("quiet at or above 500", func(t *testing.T) {
		assert.Empty(t, RuleLowCreditNoRisk(map[models.DataType]models.Payload{
			models.DataTypeCredit:     {"credit_score": 500},
			models.DataTypeBackground: {"criminal_records": 0, "bankruptcies": 0},
		}))
	})
}

func TestRuleRiskTierContradiction(t *testing.T) {
	t.Run("flags low against high", func(t *testing.T) {
		notices := RuleRiskTierContradiction(map[models.DataType]models.Payload{
			models.DataTypeCredit:     {"risk_tier": "low"},
			models.DataTypeBackground: {"risk_tier": "high"},
		})
		assert.Len(t, notices, 1)
		assert.Equal(t, "risk_tier_contradiction", notices[0].Rule)
	})

	t.Run("adjacent tiers are fine", func(t *testing.T) {
		assert.Empty(t, RuleRiskTierContradiction(map[models.DataType]models.Payload{
			models.DataTypeCredit:     {"risk_tier": "low"},
			models.DataTypeBackground: {"risk_tier": "medium"},
		}))
	})

	t.Run("each contradicting pair reported once", func(t *testing.T) {
		notices := RuleRiskTierContradiction(map[models.DataType]models.Payload{
			models.DataTypeDrivingRecord: {"risk_tier": "high"},
			models.DataTypeCredit:        {"risk_tier": "low"},
			models.DataTypeBackground:    {"risk_tier": "low"},
		})
		assert.Len(t, notices, 2)
	})

	t.Run("ignores missing or malformed tiers", func(t *testing.T) {
		assert.Empty(t, RuleRiskTierContradiction(map[models.DataType]models.Payload{
			models.DataTypeCredit:     {"risk_tier": 3},
			models.DataTypeBackground: {},
		}))
	})
}
